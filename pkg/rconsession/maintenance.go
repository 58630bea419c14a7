package rconsession

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"
)

// jobState 维护作业槽。每个服务器同一时刻最多一个作业，
// 槽位在作业goroutine结束或被取消时释放。
type jobState struct {
	mode   Mode
	cancel context.CancelFunc
	done   chan struct{}
}

// Save 发起存档作业，delay为倒计时分钟数，backup指定存档后是否备份
func (s *Session) Save(tag Tag, backup bool, delay int, reason string) {
	s.request(tag, backup, ModeSave, delay, reason)
}

// Stop 发起关闭作业：倒计时、存档、然后关闭服务器
func (s *Session) Stop(tag Tag, backup bool, delay int, reason string) {
	s.request(tag, backup, ModeStop, delay, reason)
}

// Restart 发起重启作业：倒计时、存档、关闭，等待进程退出后重新启动
func (s *Session) Restart(tag Tag, backup bool, delay int, reason string) {
	s.request(tag, backup, ModeRestart, delay, reason)
}

// JobRunning 返回当前运行中的维护作业模式
func (s *Session) JobRunning() (Mode, bool) {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	if s.job == nil {
		return 0, false
	}
	return s.job.mode, true
}

// abortJob 取消正在运行的作业并立即释放作业槽。
// 作业goroutine在下一个等待点观察到取消后自行收尾。
func (s *Session) abortJob() {
	s.jobMu.Lock()
	job := s.job
	s.job = nil
	s.jobMu.Unlock()
	if job != nil {
		job.cancel()
	}
}

// request 校验并启动维护作业。链路断开或已有作业运行时拒绝，
// 并向聊天方回复状态消息。
func (s *Session) request(tag Tag, backup bool, mode Mode, delay int, reason string) {
	if !tag.Valid() {
		return
	}
	// 链路降级(Unreachable)时仍接受作业，经回环地址的关闭依赖这一点
	if s.Link() == LinkDisconnected {
		if tag == TagChat {
			s.pushChat(fmt.Sprintf("[%s]RCON 未连线，无法%s。", s.server.DisplayName, mode.Display()))
		}
		return
	}

	s.jobMu.Lock()
	if s.job != nil {
		s.jobMu.Unlock()
		if tag == TagChat {
			s.pushChat(fmt.Sprintf("[%s]已经正在%s中。", s.server.DisplayName, mode.Display()))
		}
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	job := &jobState{mode: mode, cancel: cancel, done: make(chan struct{})}
	s.job = job
	s.jobMu.Unlock()

	log.Printf("[%s] From:%s Receive Command:%s %d Reason:%s", s.server.Key, tag, mode, delay, reason)
	go s.runJob(ctx, job, tag, backup, mode, delay, reason)
}

// shouldAnnounce 判断剩余delay分钟时是否广播倒计时：
// 不超过30分钟时每5分钟一次，最后5分钟内每分钟一次
func shouldAnnounce(delay int) bool {
	return (delay%5 == 0 && delay <= 30) || delay < 5
}

// waitFor 作业的可取消等待，正常到期返回true
func waitFor(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// waitMinute 等待倒计时的一分钟
func (s *Session) waitMinute(ctx context.Context) bool {
	return waitFor(ctx, s.minute)
}

// waitIdle 等待一个轮询间隔
func (s *Session) waitIdle(ctx context.Context) bool {
	return waitFor(ctx, s.idleWait)
}

// broadcast 同时向服务器（游戏内广播）与聊天队列发送一条消息
func (s *Session) broadcast(message string) {
	s.Submit("Broadcast "+message, TagSystem, nil, false)
	s.pushChat(s.chatify(message))
}

// chatify 为消息的每一行加上服务器显示名前缀
func (s *Session) chatify(message string) string {
	prefix := "[" + s.server.DisplayName + "]"
	return prefix + strings.Join(strings.Split(message, "\n"), "\n"+prefix)
}

// countdownMessage 渲染倒计时广播模板
func (s *Session) countdownMessage(mode Mode, delay int) string {
	return strings.ReplaceAll(s.settings().Messages[mode.String()], "$TIME", strconv.Itoa(delay))
}

// runJob 执行维护作业流程：倒计时广播、存档、备份、关闭、重启。
// ctx在会话关闭、Clear或链路降级时被取消，作业在每个等待点检查取消。
func (s *Session) runJob(ctx context.Context, job *jobState, tag Tag, backup bool, mode Mode, delay int, reason string) {
	result := "完成"
	var recordID uint
	if s.store != nil {
		id, err := s.store.RecordStart(s.server.Key, mode, backup, delay, reason, tag)
		if err != nil {
			log.Printf("[%s] 记录维护作业失败: %v", s.server.Key, err)
		} else {
			recordID = id
		}
	}

	defer func() {
		s.jobMu.Lock()
		if s.job == job {
			s.job = nil
		}
		s.jobMu.Unlock()
		close(job.done)

		if s.store != nil && recordID != 0 {
			if err := s.store.RecordFinish(recordID, result); err != nil {
				log.Printf("[%s] 记录维护作业结果失败: %v", s.server.Key, err)
			}
		}
	}()

	aborted := func() {
		result = "已中止"
		s.pushChat(fmt.Sprintf("[%s]%s作业已中止。", s.server.DisplayName, mode.Display()))
		log.Printf("[%s] %s作业已中止", s.server.Key, mode.Display())
	}
	linkLost := func() {
		result = "RCON失去连线"
		s.pushChat(fmt.Sprintf("[%s]%s失败: RCON失去连线。", s.server.DisplayName, mode.Display()))
		log.Printf("[%s] %s失败: RCON失去连线", s.server.Key, mode.Display())
	}

	// 预告广播：附带原因，占用倒计时的第一分钟
	if reason != "" && delay >= 1 {
		message := s.countdownMessage(mode, delay)
		s.broadcast(message + "\n原因:" + reason + "\nReason:" + reason)
		if !s.waitMinute(ctx) {
			aborted()
			return
		}
		delay--
	}

	// 倒计时
	for delay > 0 {
		if s.Link() == LinkDisconnected {
			linkLost()
			return
		}
		if shouldAnnounce(delay) {
			s.broadcast(s.countdownMessage(mode, delay))
		}
		if !s.waitMinute(ctx) {
			aborted()
			return
		}
		delay--
	}

	// 存档
	s.broadcast(strings.ReplaceAll(s.settings().Messages["saving"], "$TIME", "0"))
	if s.server.ClearDino {
		for _, class := range s.settings().DinoClasses {
			s.Submit(fmt.Sprintf("DestroyWildDinoClasses %q 1", class), TagSystem, nil, false)
		}
		s.Submit("DestroyWildDinos", TagSystem, nil, false)
	}
	s.Submit(saveCommand, TagSystem, map[string]any{"type": "id_tag", "content": "Finish"}, true)

	if backup {
		s.Backup(tag)
	}

	// 关闭
	if mode < ModeStop {
		return
	}
	for {
		if reply, ok := s.Take(TagSystem); ok {
			if reply.Args["type"] == "id_tag" && reply.Args["content"] == "Finish" {
				break
			}
			continue
		}
		if s.Link() == LinkDisconnected {
			linkLost()
			return
		}
		if !s.waitIdle(ctx) {
			aborted()
			return
		}
	}
	s.Submit(exitCommand, TagSystem, nil, true)

	// 重启
	if mode < ModeRestart {
		return
	}
	for s.processAlive.Load() {
		if !s.waitIdle(ctx) {
			aborted()
			return
		}
	}
	s.StartServer(tag)
}

// StartServer 启动服务器进程。进程已存活时仅向聊天方提示。
func (s *Session) StartServer(tag Tag) {
	if !tag.Valid() {
		return
	}
	if s.processAlive.Load() {
		if tag == TagChat {
			s.pushChat(fmt.Sprintf("[%s]服务器已经启动了。", s.server.DisplayName))
		}
		return
	}

	if err := s.starter.Start(s.server); err != nil {
		log.Printf("[%s] 启动服务器失败: %v", s.server.Key, err)
		if tag == TagChat {
			s.pushChat(fmt.Sprintf("[%s]启动服务器失败: %v", s.server.DisplayName, err))
		}
		return
	}
	s.firstConnect.Store(true)
	log.Printf("[%s] 已执行启动脚本", s.server.Key)
}
