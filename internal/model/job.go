package model

import (
	"time"

	"gorm.io/gorm"
)

// JobRecord 维护作业的历史记录。只记录作业本身，不保存聊天内容。
type JobRecord struct {
	gorm.Model
	ServerKey  string     `gorm:"size:50;index" json:"server_key"`
	Mode       string     `gorm:"size:20" json:"mode"` // save/stop/restart
	Backup     bool       `json:"backup"`
	Delay      int        `json:"delay"` // 倒计时分钟数
	Reason     string     `gorm:"size:200" json:"reason"`
	Source     string     `gorm:"size:20" json:"source"` // 发起方标签
	Result     string     `gorm:"size:50" json:"result"` // 完成/已中止/RCON失去连线
	FinishedAt *time.Time `json:"finished_at"`
}
