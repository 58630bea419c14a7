package rconsession

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xrjr/mcutils/pkg/rcon"
)

const (
	// loopbackAddress 本地回环探测地址
	loopbackAddress = "127.0.0.1"

	// chatPollCommand 获取未读聊天内容的命令
	chatPollCommand = "GetChat"

	// noResponseSentinel 服务器表示没有新聊天内容的应答
	noResponseSentinel = "Server received, But no response!!"

	// saveCommand 触发世界存档的命令
	saveCommand = "SaveWorld"

	// exitCommand 关闭服务器的命令
	exitCommand = "DoExit"

	// fastRetryCount 断线后对主地址的快速重试次数
	fastRetryCount = 5
)

// rconConn 一条已连接且通过认证的RCON链路
type rconConn interface {
	// Command 执行命令并返回结果
	Command(cmd string) (string, error)

	// Close 断开连接
	Close()
}

// dialFunc 建立RCON连接并完成认证
type dialFunc func(address string, port int, password string, timeout time.Duration) (rconConn, error)

// mcutilsConn 基于mcutils客户端的rconConn实现
type mcutilsConn struct {
	client *rcon.RCONClient
}

func (c *mcutilsConn) Command(cmd string) (string, error) {
	return c.client.Command(cmd)
}

func (c *mcutilsConn) Close() {
	c.client.Disconnect()
}

// dialRcon 默认的连接实现，连接后立即认证
func dialRcon(address string, port int, password string, timeout time.Duration) (rconConn, error) {
	client := rcon.NewClient(address, port)

	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("连接RCON失败: %v", err)
	}

	ok, err := client.Authenticate(password)
	if err != nil {
		client.Disconnect()
		return nil, fmt.Errorf("RCON认证错误: %v", err)
	}
	if !ok {
		client.Disconnect()
		return nil, fmt.Errorf("RCON认证失败: 密码错误")
	}

	return &mcutilsConn{client: client}, nil
}

// Session 单个ARK服务器的后台RCON会话。
// 会话独占一条逻辑连接，在自己的goroutine中轮流处理排队命令与聊天轮询，
// 链路异常时执行三级重连策略。各服务器的会话彼此完全独立。
type Session struct {
	server   ServerConfig
	settings SettingsFunc

	// 队列：单一共享入队 + 按标签分发的出队
	inQueue mailbox[*Request]
	queues  [tagCount]mailbox[Reply]

	// 会话状态，仅由会话goroutine及其重连流程写入
	linkStatus   atomic.Int32
	processAlive atomic.Bool
	firstConnect atomic.Bool

	// 协作者，在Start之前可替换
	dial    dialFunc
	prober  LivenessProber
	starter Starter
	store   JobStore

	// 时间参数
	idleWait  time.Duration // 主循环与轮询间隔
	retryWait time.Duration // 快速重试间隔
	minute    time.Duration // 倒计时"一分钟"的实际时长

	// 维护作业槽，同一时刻最多一个作业
	jobMu sync.Mutex
	job   *jobState

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New 创建一个服务器会话。settings在每次使用时调用，
// 返回当前设置快照，配置热重载时由上层整体替换快照。
func New(server ServerConfig, settings SettingsFunc) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		server:    server,
		settings:  settings,
		dial:      dialRcon,
		prober:    defaultProber(),
		starter:   defaultStarter(),
		idleWait:  200 * time.Millisecond,
		retryWait: time.Second,
		minute:    time.Minute,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	s.firstConnect.Store(true)
	return s
}

// SetProber 替换进程存活探测实现
func (s *Session) SetProber(p LivenessProber) { s.prober = p }

// SetStarter 替换服务器启动实现
func (s *Session) SetStarter(st Starter) { s.starter = st }

// SetJobStore 设置维护作业的持久化记录器
func (s *Session) SetJobStore(store JobStore) { s.store = store }

// Start 启动会话goroutine
func (s *Session) Start() {
	go s.run()
}

// Close 停止会话并等待goroutine退出
func (s *Session) Close() {
	s.cancel()
	<-s.done
}

// Server 返回会话的服务器配置
func (s *Session) Server() ServerConfig {
	return s.server
}

// Link 返回当前链路状态
func (s *Session) Link() LinkStatus {
	return LinkStatus(s.linkStatus.Load())
}

// ProcessAlive 返回服务器进程最近一次探测的存活状态
func (s *Session) ProcessAlive() bool {
	return s.processAlive.Load()
}

// Pending 返回当前排队待执行的命令数
func (s *Session) Pending() int {
	return s.inQueue.size()
}

// State 根据链路状态、进程存活与首连标志返回显示状态文本
func (s *Session) State() string {
	msgs := s.settings().StateMessages
	switch {
	case s.Link() == LinkConnected:
		return msgs["running"]
	case s.processAlive.Load():
		if s.firstConnect.Load() {
			return msgs["starting"]
		}
		if s.Link() == LinkUnreachable {
			return msgs["network_disconnect"]
		}
		return msgs["rcon_disconnect"]
	default:
		return msgs["stopped"]
	}
}

// Submit 将命令加入执行队列。标签无效时不做任何事；
// 链路断开时丢弃命令，并向聊天方回复一条未连线提示。
// 各调用方的命令按到达顺序进入同一队列，标签间没有优先级。
func (s *Session) Submit(command string, tag Tag, args map[string]any, needReply bool) {
	if !tag.Valid() {
		return
	}
	if s.Link() == LinkDisconnected {
		if tag == TagChat {
			s.pushChat(fmt.Sprintf("[%s]RCON 未连线，无法发送指令。", s.server.DisplayName))
		}
		return
	}

	log.Printf("[%s] From:%s Receive Command:%s", s.server.Key, tag, command)
	s.inQueue.put(&Request{
		Command:   command,
		Tag:       tag,
		NeedReply: needReply,
		Args:      args,
	})
}

// Take 非阻塞取出指定标签的下一条回复，没有回复或标签无效时第二个返回值为false
func (s *Session) Take(tag Tag) (Reply, bool) {
	if !tag.Valid() {
		return Reply{}, false
	}
	return s.queues[tag].take()
}

// Clear 清空命令队列并终止正在运行的维护作业
func (s *Session) Clear(tag Tag) {
	if !tag.Valid() {
		return
	}
	s.inQueue.clear()
	s.abortJob()
	log.Printf("[%s] 清除所有指令。(来自%s)", s.server.Key, tag)
	if tag == TagChat {
		s.pushChat(fmt.Sprintf("[%s]已清除所有指令。", s.server.DisplayName))
	}
}

// pushChat 向聊天队列投递一条消息，附带本服务器的转发频道
func (s *Session) pushChat(text string) {
	s.queues[TagChat].put(Reply{
		Reply: text,
		Args: map[string]any{
			"type":   "chat",
			"target": s.server.ChatChannel,
		},
	})
}

// setLink 更新链路状态并记录状态迁移
func (s *Session) setLink(status LinkStatus) {
	old := LinkStatus(s.linkStatus.Swap(int32(status)))
	if old != status {
		log.Printf("[%s] RCON链路状态: %s -> %s", s.server.Key, old, status)
	}
}

// timeout 返回配置的RCON往返超时
func (s *Session) timeout() time.Duration {
	return time.Duration(s.server.Rcon.Timeout) * time.Second
}

// sleep 可被会话关闭打断的等待，正常到期返回true
func (s *Session) sleep(d time.Duration) bool {
	select {
	case <-s.ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// run 会话主循环：连接成功后进入泵循环，链路异常时转入重连流程。
// 重连流程返回下一次应连接的地址（主地址或回环地址）。
func (s *Session) run() {
	defer close(s.done)
	log.Printf("RCON_%s 会话启动", s.server.DisplayName)

	address := s.server.Rcon.Address
	for {
		if s.ctx.Err() != nil {
			return
		}
		// 进程未存活时丢弃滞留命令，避免对重启后的服务器执行过期指令
		if !s.processAlive.Load() {
			s.inQueue.clear()
		}

		conn, err := s.dial(address, s.server.Rcon.Port, s.server.Rcon.Password, s.timeout())
		if err == nil {
			// 经回环地址连上的链路仍视为Unreachable，表示进程存活但对外网络中断
			if address == s.server.Rcon.Address {
				s.setLink(LinkConnected)
			} else {
				s.setLink(LinkUnreachable)
			}
			s.processAlive.Store(true)
			s.firstConnect.Store(false)
			log.Printf("[%s] RCON Connected!", s.server.Key)

			err = s.pump(conn)
			conn.Close()
			if s.ctx.Err() != nil {
				return
			}
			log.Printf("[%s] RCON会话中断: %v", s.server.Key, err)
		}

		address = s.reconnect()
	}
}

// pump 泵循环：每轮执行一条排队命令，然后轮询一次聊天内容。
// 任何连接层错误都结束泵循环，交由重连流程处理。
func (s *Session) pump(conn rconConn) error {
	for {
		if err := s.ctx.Err(); err != nil {
			return err
		}

		if req, ok := s.inQueue.take(); ok {
			reply, err := conn.Command(req.Command)
			if err != nil {
				return err
			}
			log.Printf("[%s] From:%s %s Reply:%s", s.server.Key, req.Tag, req.Command, reply)
			if req.NeedReply {
				s.queues[req.Tag].put(Reply{Reply: reply, Args: req.Args})
			}
		}

		// 获取聊天消息
		chat, err := conn.Command(chatPollCommand)
		if err != nil {
			return err
		}
		if !strings.Contains(chat, noResponseSentinel) {
			s.relayChat(chat)
		}

		if !s.sleep(s.idleWait) {
			return s.ctx.Err()
		}
	}
}

// relayChat 将聊天内容逐行修整、过滤、修饰后投递到聊天队列
func (s *Session) relayChat(chat string) {
	table := s.settings().FilterTables[s.server.Rcon.Filter]
	for _, line := range strings.Split(chat, "\n") {
		line = Retouch(line)
		if line == "" {
			continue
		}
		log.Printf("[%s] %s", s.server.Key, line)
		if !Passes(line, table) {
			continue
		}
		line = Reformat(line)
		if line == "" {
			continue
		}
		s.pushChat(fmt.Sprintf("[%s]%s", s.server.DisplayName, line))
	}
}

// probe 对指定地址做一次连接探测：建立连接、认证并执行一次空命令
func (s *Session) probe(address string) error {
	conn, err := s.dial(address, s.server.Rcon.Port, s.server.Rcon.Password, s.timeout())
	if err != nil {
		return err
	}
	_, err = conn.Command("")
	conn.Close()
	return err
}

// reconnect 三级重连策略，返回下一次连接使用的地址。
//
//  1. 闪断测试：对主地址快速重试，应对瞬时抖动
//  2. 回环测试：主地址不可达但本机可达，说明进程仍在运行而对外网络中断。
//     失联的服务器不能无人监管地继续运行，终止当前作业并安排一分钟后
//     经回环地址关闭
//  3. 存活轮询：两者均不可达时持续探测进程存活并重试主地址，
//     等待外部生命周期（人工重启、崩溃恢复）完成
func (s *Session) reconnect() string {
	cfg := s.server.Rcon
	s.inQueue.clear()

	// 闪断测试
	for i := 0; i < fastRetryCount; i++ {
		if s.probe(cfg.Address) == nil {
			return cfg.Address
		}
		if !s.sleep(s.retryWait) {
			return cfg.Address
		}
	}

	// 本地回环测试
	if s.probe(loopbackAddress) == nil {
		s.setLink(LinkUnreachable)
		s.Clear(TagSystem)
		s.Stop(TagSystem, false, 1, "")
		return loopbackAddress
	}

	// 存活轮询
	s.setLink(LinkDisconnected)
	log.Printf("[%s] RCON Disconnected!", s.server.Key)
	for {
		if s.ctx.Err() != nil {
			return cfg.Address
		}

		alive := s.prober.IsAlive(s.server)
		if alive && !s.processAlive.Load() {
			s.processAlive.Store(true)
			log.Printf("[%s] Server Up!", s.server.Key)
		}
		if !alive && s.processAlive.Load() {
			s.processAlive.Store(false)
			log.Printf("[%s] Server Down!", s.server.Key)
		}

		// 尝试重连
		if s.probe(cfg.Address) == nil {
			return cfg.Address
		}
		if !s.sleep(s.idleWait) {
			return cfg.Address
		}
	}
}
