// Package schedule 按配置的时刻表对各服务器发起定时存档与定时重启。
// 时刻表精确到分钟，同一时刻同一天只触发一次。
package schedule

import (
	"log"
	"time"

	"city.newnan/ark-console/internal/config"
	"city.newnan/ark-console/pkg/rconsession"
)

// Server 定时任务需要的会话操作
type Server interface {
	Save(tag rconsession.Tag, backup bool, delay int, reason string)
	Restart(tag rconsession.Tag, backup bool, delay int, reason string)
}

// Lookup 根据服务器标识查找会话，由服务层实现
type Lookup func(key string) (Server, error)

// Runner 定时任务执行器
type Runner struct {
	store  *config.ArkStore
	source Lookup

	interval time.Duration
	// now可注入，便于测试
	now   func() time.Time
	fired map[string]struct{}
	stop  chan struct{}
}

// NewRunner 创建定时任务执行器
func NewRunner(store *config.ArkStore, source Lookup) *Runner {
	return &Runner{
		store:    store,
		source:   source,
		interval: 20 * time.Second,
		now:      time.Now,
		fired:    make(map[string]struct{}),
		stop:     make(chan struct{}),
	}
}

// Start 启动定时检查循环
func (r *Runner) Start() {
	go r.run()
}

// Stop 停止定时检查循环
func (r *Runner) Stop() {
	close(r.stop)
}

func (r *Runner) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.tick()
		}
	}
}

// tick 检查所有时刻表，到点的条目触发对应的维护作业
func (r *Runner) tick() {
	cfg := r.store.Snapshot()
	now := r.now().In(cfg.Location())
	date := now.Format("2006-01-02")
	clock := now.Format("15:04")

	for key, entries := range cfg.SaveTables {
		for _, entry := range entries {
			if entry.Time != clock {
				continue
			}
			r.fire(key, rconsession.ModeSave, entry, cfg.SaveDelay, date)
		}
	}
	for key, entries := range cfg.RestartTables {
		for _, entry := range entries {
			if entry.Time != clock {
				continue
			}
			r.fire(key, rconsession.ModeRestart, entry, cfg.SaveDelay, date)
		}
	}
}

// fire 触发单个时刻表条目，同一条目当天只触发一次
func (r *Runner) fire(key string, mode rconsession.Mode, entry config.TimeEntry, delay int, date string) {
	mark := date + "/" + key + "/" + mode.String() + "/" + entry.Time
	if _, done := r.fired[mark]; done {
		return
	}
	r.fired[mark] = struct{}{}
	r.prune(date)

	session, err := r.source(key)
	if err != nil {
		log.Printf("定时任务跳过未知服务器 %s: %v", key, err)
		return
	}

	log.Printf("定时任务触发: 服务器=%s 操作=%s 时刻=%s 备份=%v", key, mode.String(), entry.Time, entry.Backup)
	switch mode {
	case rconsession.ModeSave:
		session.Save(rconsession.TagSystem, entry.Backup, delay, "")
	case rconsession.ModeRestart:
		session.Restart(rconsession.TagSystem, entry.Backup, delay, "")
	}
}

// prune 清理非当天的触发标记，防止无限增长
func (r *Runner) prune(date string) {
	prefix := date + "/"
	for mark := range r.fired {
		if len(mark) < len(prefix) || mark[:len(prefix)] != prefix {
			delete(r.fired, mark)
		}
	}
}
