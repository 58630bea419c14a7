package config

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"

	"city.newnan/ark-console/pkg/rconsession"
)

// TimeEntry 定时任务表中的一项：每天的触发时刻与是否随后备份
type TimeEntry struct {
	Time   string `json:"time"`   // HH:MM格式
	Backup bool   `json:"backup"` // 完成后是否备份
}

// ArkConfig ARK服务器相关配置的不可变快照。
// 热重载时整体替换指针，持有旧快照的调用方不受影响。
type ArkConfig struct {
	Servers []rconsession.ServerConfig `json:"servers"`

	// 会话运行设置（消息模板、过滤表、备份保留等）
	rconsession.Settings

	// 定时任务
	TimeZone      int                    `json:"time_zone"`      // 相对UTC的小时偏移
	SaveDelay     int                    `json:"save_delay"`     // 定时任务的倒计时分钟数
	SaveTables    map[string][]TimeEntry `json:"save_tables"`    // 按服务器key的定时存档表
	RestartTables map[string][]TimeEntry `json:"restart_tables"` // 按服务器key的定时重启表
}

// Location 返回配置时区
func (a *ArkConfig) Location() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", a.TimeZone), a.TimeZone*3600)
}

// ArkStore 持有当前ARK配置快照并负责热重载
type ArkStore struct {
	path    string
	current atomic.Pointer[ArkConfig]
	mtime   time.Time
}

// OpenArkStore 读取配置文件并创建快照存储
func OpenArkStore(path string) (*ArkStore, error) {
	store := &ArkStore{path: path}
	if err := store.reload(); err != nil {
		return nil, err
	}
	return store, nil
}

// Snapshot 返回当前配置快照
func (s *ArkStore) Snapshot() *ArkConfig {
	return s.current.Load()
}

// Settings 返回会话设置快照的取值函数，交给rconsession在使用点调用
func (s *ArkStore) Settings() rconsession.SettingsFunc {
	return func() *rconsession.Settings {
		return &s.Snapshot().Settings
	}
}

// Watch 启动热重载循环，按间隔检查文件修改时间，变化时替换快照
func (s *ArkStore) Watch(interval time.Duration) {
	go func() {
		for {
			time.Sleep(interval)
			info, err := os.Stat(s.path)
			if err != nil {
				continue
			}
			if info.ModTime().Equal(s.mtime) {
				continue
			}
			if err := s.reload(); err != nil {
				log.Printf("重载ARK配置失败: %v", err)
				continue
			}
			log.Printf("ARK配置已重载: %s", s.path)
		}
	}()
}

// reload 解析配置文件并原子替换快照
func (s *ArkStore) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("读取ARK配置失败: %w", err)
	}

	var cfg ArkConfig
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("解析ARK配置失败: %w", err)
	}
	if len(cfg.Servers) == 0 {
		return fmt.Errorf("ARK配置中没有定义服务器")
	}

	info, err := os.Stat(s.path)
	if err == nil {
		s.mtime = info.ModTime()
	}
	s.current.Store(&cfg)
	return nil
}
