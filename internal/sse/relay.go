package sse

import (
	"time"

	"city.newnan/ark-console/pkg/rconsession"
)

// SessionSource 提供全部服务器会话，由服务层实现
type SessionSource interface {
	All() []*rconsession.Session
}

// ChatRelay 周期性地从各个会话取出聊天消息，推送到SSE客户端。
// 每个服务器对应一个同名主题，未指定主题的客户端收到全部服务器的消息。
type ChatRelay struct {
	broker   *Broker
	source   SessionSource
	interval time.Duration
	stop     chan struct{}
}

// NewChatRelay 创建聊天转发器
func NewChatRelay(broker *Broker, source SessionSource, interval time.Duration) *ChatRelay {
	if interval <= 0 {
		interval = time.Second
	}
	return &ChatRelay{
		broker:   broker,
		source:   source,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start 启动转发循环
func (r *ChatRelay) Start() {
	go r.run()
}

// Stop 停止转发循环
func (r *ChatRelay) Stop() {
	close(r.stop)
}

func (r *ChatRelay) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.drainOnce()
		}
	}
}

// drainOnce 把每个会话当前积压的聊天消息全部发出
func (r *ChatRelay) drainOnce() {
	for _, session := range r.source.All() {
		key := session.Server().Key
		for {
			reply, ok := session.Take(rconsession.TagChat)
			if !ok {
				break
			}
			r.broker.Publish(&Message{
				Topic: key,
				Event: "chat",
				Data: map[string]interface{}{
					"server": key,
					"text":   reply.Reply,
					"args":   reply.Args,
					"time":   time.Now().Format(time.RFC3339),
				},
			})
		}
	}
}
