package rconsession

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeConn 可脚本化的RCON连接，记录收到的命令并按队列返回聊天内容
type fakeConn struct {
	mu       sync.Mutex
	commands []string
	chats    []string
	fail     bool
}

func (c *fakeConn) Command(cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return "", errors.New("connection reset")
	}
	if cmd == chatPollCommand {
		if len(c.chats) > 0 {
			chat := c.chats[0]
			c.chats = c.chats[1:]
			return chat, nil
		}
		return noResponseSentinel, nil
	}
	if cmd != "" {
		c.commands = append(c.commands, cmd)
	}
	return "ok", nil
}

func (c *fakeConn) Close() {}

func (c *fakeConn) sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.commands...)
}

func (c *fakeConn) sentContains(cmd string) bool {
	for _, sent := range c.sent() {
		if sent == cmd {
			return true
		}
	}
	return false
}

// fakeDialer 按地址返回预设连接，未登记的地址视为连接失败
type fakeDialer struct {
	mu    sync.Mutex
	conns map[string]*fakeConn
}

func (d *fakeDialer) dial(address string, port int, password string, timeout time.Duration) (rconConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if conn, ok := d.conns[address]; ok && conn != nil {
		return conn, nil
	}
	return nil, errors.New("connection refused")
}

// fakeProber 返回固定的进程存活状态
type fakeProber struct{ alive bool }

func (p *fakeProber) IsAlive(ServerConfig) bool { return p.alive }

// fakeStarter 记录启动调用
type fakeStarter struct {
	mu     sync.Mutex
	starts int
}

func (st *fakeStarter) Start(ServerConfig) error {
	st.mu.Lock()
	st.starts++
	st.mu.Unlock()
	return nil
}

// fakeStore 内存中的作业记录
type fakeStore struct {
	mu       sync.Mutex
	starts   int
	finishes map[uint]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{finishes: make(map[uint]string)}
}

func (f *fakeStore) RecordStart(string, Mode, bool, int, string, Tag) (uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return uint(f.starts), nil
}

func (f *fakeStore) RecordFinish(id uint, result string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finishes[id] = result
	return nil
}

func (f *fakeStore) result(id uint) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.finishes[id]
	return r, ok
}

func testSettings() SettingsFunc {
	s := &Settings{
		Messages: map[string]string{
			"save":    "服务器将在$TIME分钟后存档",
			"stop":    "服务器将在$TIME分钟后关闭",
			"restart": "服务器将在$TIME分钟后重启",
			"saving":  "正在存档，请稍等",
		},
		StateMessages: map[string]string{
			"running":            "运行中",
			"starting":           "启动中",
			"network_disconnect": "对外网络中断",
			"rcon_disconnect":    "RCON断开",
			"stopped":            "已停止",
		},
		FilterTables: map[string]FilterTable{
			"default": {Include: []string{"已加入此遊戲"}},
		},
		BackupDays: 7,
	}
	return func() *Settings { return s }
}

func testServer() ServerConfig {
	return ServerConfig{
		Key:         "island",
		DirPath:     "/srv/ark/island",
		FileName:    "TheIsland.ark",
		DisplayName: "孤岛",
		Rcon: RconInfo{
			Address:  "10.0.0.5",
			Port:     32330,
			Password: "secret",
			Timeout:  3,
			Filter:   "default",
		},
		ChatChannel: "ark-island",
	}
}

// newTestSession 创建时间参数被压缩到毫秒级的会话
func newTestSession(dialer *fakeDialer) *Session {
	s := New(testServer(), testSettings())
	if dialer != nil {
		s.dial = dialer.dial
	}
	s.idleWait = time.Millisecond
	s.retryWait = time.Millisecond
	s.minute = 20 * time.Millisecond
	return s
}

// waitUntil 轮询等待条件成立
func waitUntil(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("等待超时: %s", what)
}

// drainChat 取出聊天队列中的全部消息文本
func drainChat(s *Session) []string {
	var lines []string
	for {
		reply, ok := s.Take(TagChat)
		if !ok {
			return lines
		}
		lines = append(lines, reply.Reply)
	}
}

// chatContains 等待聊天队列中出现包含指定子串的消息
func chatContains(t *testing.T, s *Session, substr string) {
	t.Helper()
	waitUntil(t, 2*time.Second, "聊天消息 "+substr, func() bool {
		for _, line := range drainChat(s) {
			if strings.Contains(line, substr) {
				return true
			}
		}
		return false
	})
}

func TestSubmitWhileDisconnected(t *testing.T) {
	s := newTestSession(nil)

	// 未连线时聊天方的命令被丢弃并收到提示
	s.Submit("ListPlayers", TagChat, nil, true)
	reply, ok := s.Take(TagChat)
	if !ok {
		t.Fatal("期望收到未连线提示")
	}
	if !strings.Contains(reply.Reply, "RCON 未连线") {
		t.Errorf("提示内容 = %q", reply.Reply)
	}
	if reply.Args["target"] != "ark-island" {
		t.Errorf("聊天消息应带转发频道, Args = %v", reply.Args)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending = %d, 期望 0", s.Pending())
	}

	// 非聊天方被静默丢弃
	s.Submit("ListPlayers", TagWeb, nil, true)
	if _, ok := s.Take(TagChat); ok {
		t.Error("Web方的未连线丢弃不应产生聊天提示")
	}

	// 无效标签不做任何事
	s.Submit("ListPlayers", Tag(99), nil, true)
	if s.Pending() != 0 {
		t.Errorf("Pending = %d, 期望 0", s.Pending())
	}
}

func TestPumpExecutesCommands(t *testing.T) {
	conn := &fakeConn{}
	dialer := &fakeDialer{conns: map[string]*fakeConn{"10.0.0.5": conn}}
	s := newTestSession(dialer)
	s.Start()
	defer s.Close()

	waitUntil(t, 2*time.Second, "链路连接", func() bool { return s.Link() == LinkConnected })
	if !s.ProcessAlive() {
		t.Error("连接成功后进程应视为存活")
	}

	s.Submit("ListPlayers", TagWeb, map[string]any{"id": 7}, true)
	var reply Reply
	waitUntil(t, 2*time.Second, "Web回复", func() bool {
		var ok bool
		reply, ok = s.Take(TagWeb)
		return ok
	})
	if reply.Reply != "ok" {
		t.Errorf("回复 = %q", reply.Reply)
	}
	if reply.Args["id"] != 7 {
		t.Errorf("回复应带回请求参数, Args = %v", reply.Args)
	}
	if !conn.sentContains("ListPlayers") {
		t.Errorf("命令未到达连接, 已发送: %v", conn.sent())
	}

	// 不需要回复的命令不产生队列项
	s.Submit("Broadcast hello", TagWeb, nil, false)
	waitUntil(t, 2*time.Second, "广播命令执行", func() bool { return conn.sentContains("Broadcast hello") })
	if _, ok := s.Take(TagWeb); ok {
		t.Error("needReply=false的命令不应投递回复")
	}
}

func TestChatRelay(t *testing.T) {
	conn := &fakeConn{chats: []string{
		"星夜已加入此遊戲!\n星夜: 大家好\n" +
			`部落Alpha, ID 1766584239: Day 128, 10:44:21: <RichColor Color="1, 1, 1, 1">星夜: 出发了</>"`,
	}}
	dialer := &fakeDialer{conns: map[string]*fakeConn{"10.0.0.5": conn}}
	s := newTestSession(dialer)
	s.Start()
	defer s.Close()

	var lines []string
	waitUntil(t, 2*time.Second, "聊天转发", func() bool {
		lines = append(lines, drainChat(s)...)
		return len(lines) >= 2
	})

	if lines[0] != "[孤岛]星夜: 大家好" {
		t.Errorf("普通聊天 = %q", lines[0])
	}
	if lines[1] != "[孤岛]<Alpha>星夜: 出发了" {
		t.Errorf("部落聊天 = %q", lines[1])
	}
	for _, line := range lines {
		if strings.Contains(line, "已加入此遊戲") {
			t.Errorf("命中过滤表的行不应被转发: %q", line)
		}
	}
}

func TestState(t *testing.T) {
	s := newTestSession(nil)

	if got := s.State(); got != "已停止" {
		t.Errorf("初始State = %q, 期望 已停止", got)
	}

	s.processAlive.Store(true)
	if got := s.State(); got != "启动中" {
		t.Errorf("首连前State = %q, 期望 启动中", got)
	}

	s.firstConnect.Store(false)
	s.linkStatus.Store(int32(LinkUnreachable))
	if got := s.State(); got != "对外网络中断" {
		t.Errorf("State = %q, 期望 对外网络中断", got)
	}

	s.linkStatus.Store(int32(LinkDisconnected))
	if got := s.State(); got != "RCON断开" {
		t.Errorf("State = %q, 期望 RCON断开", got)
	}

	s.linkStatus.Store(int32(LinkConnected))
	if got := s.State(); got != "运行中" {
		t.Errorf("State = %q, 期望 运行中", got)
	}
}

// 主地址不可达而回环可达时，会话应降级为Unreachable并自动安排关闭
func TestUnreachableCascade(t *testing.T) {
	loopback := &fakeConn{}
	dialer := &fakeDialer{conns: map[string]*fakeConn{loopbackAddress: loopback}}
	s := newTestSession(dialer)
	s.SetProber(&fakeProber{alive: true})
	store := newFakeStore()
	s.SetJobStore(store)
	s.Start()
	defer s.Close()

	waitUntil(t, 5*time.Second, "链路降级", func() bool { return s.Link() == LinkUnreachable })

	// 一分钟后经回环地址存档并关闭
	waitUntil(t, 5*time.Second, "存档命令", func() bool { return loopback.sentContains(saveCommand) })
	waitUntil(t, 5*time.Second, "关闭命令", func() bool { return loopback.sentContains(exitCommand) })

	waitUntil(t, 5*time.Second, "作业记录完成", func() bool {
		result, ok := store.result(1)
		return ok && result == "完成"
	})
}

func TestClearNotifiesChat(t *testing.T) {
	s := newTestSession(nil)
	s.linkStatus.Store(int32(LinkConnected))
	s.inQueue.put(&Request{Command: "ListPlayers", Tag: TagWeb})

	s.Clear(TagChat)
	if s.Pending() != 0 {
		t.Errorf("Clear后Pending = %d, 期望 0", s.Pending())
	}
	chatContains(t, s, "已清除所有指令")
}
