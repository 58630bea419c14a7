package websocket

import (
	"time"

	"city.newnan/ark-console/internal/model"
	"city.newnan/ark-console/pkg/rconsession"
)

// SessionSource 提供服务器会话的查找，由服务层实现
type SessionSource interface {
	Get(key string) (*rconsession.Session, error)
	All() []*rconsession.Session
}

var sessionSource SessionSource

// SetSessionSource 注入会话来源，必须在接受连接前调用
func SetSessionSource(source SessionSource) {
	sessionSource = source
}

func roomExists(room string) bool {
	if sessionSource == nil {
		return false
	}
	_, err := sessionSource.Get(room)
	return err == nil
}

// handleCommand 把控制台命令提交到房间对应的服务器会话。
// 命令会立即入队，回复由ReplyPump异步广播到房间。
func (c *Client) handleCommand(content interface{}) {
	if c.Room == "" {
		c.Send <- MarshalMessage(MessageTypeError, "未加入任何服务器，无法发送命令")
		return
	}
	if c.Role != model.RoleAdmin {
		c.Send <- MarshalMessage(MessageTypeError, "权限不足: 需要管理员角色")
		return
	}

	payload, ok := content.(map[string]interface{})
	if !ok {
		c.Send <- MarshalMessage(MessageTypeError, "无效的命令格式")
		return
	}
	command, _ := payload["command"].(string)
	if command == "" {
		c.Send <- MarshalMessage(MessageTypeError, "命令不能为空")
		return
	}

	session, err := sessionSource.Get(c.Room)
	if err != nil {
		c.Send <- MarshalMessage(MessageTypeError, err.Error())
		return
	}

	session.Submit(command, rconsession.TagWeb, map[string]any{
		"from": c.Username,
	}, true)

	c.Send <- MarshalMessage(MessageTypeResponse, map[string]string{
		"message": "命令已入队: " + command,
	})
}

// ReplyPump 周期性地取出各会话的控制台回复，广播到对应服务器房间
type ReplyPump struct {
	manager  *Manager
	source   SessionSource
	interval time.Duration
	stop     chan struct{}
}

// NewReplyPump 创建控制台回复泵
func NewReplyPump(manager *Manager, source SessionSource, interval time.Duration) *ReplyPump {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &ReplyPump{
		manager:  manager,
		source:   source,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start 启动回复泵
func (p *ReplyPump) Start() {
	go p.run()
}

// Stop 停止回复泵
func (p *ReplyPump) Stop() {
	close(p.stop)
}

func (p *ReplyPump) run() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.drainOnce()
		}
	}
}

func (p *ReplyPump) drainOnce() {
	for _, session := range p.source.All() {
		key := session.Server().Key
		// 房间没有观众时不消费回复，留给HTTP轮询接口取走
		if len(p.manager.GetRoomClients(key)) == 0 {
			continue
		}
		for {
			reply, ok := session.Take(rconsession.TagWeb)
			if !ok {
				break
			}
			p.manager.Broadcast(&BroadcastMessage{
				Room: key,
				Type: MessageTypeResponse,
				Content: map[string]interface{}{
					"server": key,
					"text":   reply.Reply,
					"args":   reply.Args,
					"time":   time.Now().Format(time.RFC3339),
				},
			})
		}
	}
}
