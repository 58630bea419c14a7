package service

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"city.newnan/ark-console/internal/db"
	"city.newnan/ark-console/internal/model"
	"city.newnan/ark-console/pkg/rconsession"
)

// JobService 记录维护作业的历史，供会话在作业开始与结束时调用
type JobService struct{}

// NewJobService 创建作业服务实例
func NewJobService() *JobService {
	return &JobService{}
}

// RecordStart 记录作业开始，返回记录ID
func (s *JobService) RecordStart(serverKey string, mode rconsession.Mode, backup bool, delay int, reason string, source rconsession.Tag) (uint, error) {
	record := model.JobRecord{
		ServerKey: serverKey,
		Mode:      mode.String(),
		Backup:    backup,
		Delay:     delay,
		Reason:    reason,
		Source:    source.String(),
	}
	if err := db.DB.Create(&record).Error; err != nil {
		return 0, err
	}
	return record.ID, nil
}

// RecordFinish 记录作业结束及其结果
func (s *JobService) RecordFinish(id uint, result string) error {
	now := time.Now()
	return db.DB.Model(&model.JobRecord{}).Where("id = ?", id).
		Updates(map[string]interface{}{"result": result, "finished_at": &now}).Error
}

// ListJobs 查询某个服务器最近的作业记录，serverKey为空时返回全部
func (s *JobService) ListJobs(serverKey string, limit int) ([]model.JobRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var records []model.JobRecord
	tx := db.DB.Model(&model.JobRecord{})
	if serverKey != "" {
		tx = tx.Where("server_key = ?", serverKey)
	}
	if err := tx.Order("id DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// GetJob 根据ID获取作业记录
func (s *JobService) GetJob(id uint) (*model.JobRecord, error) {
	var record model.JobRecord
	if err := db.DB.First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("作业记录不存在")
		}
		return nil, err
	}
	return &record, nil
}
