package schedule

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"city.newnan/ark-console/internal/config"
	"city.newnan/ark-console/pkg/rconsession"
)

// fakeServer 记录收到的维护操作
type fakeServer struct {
	mu       sync.Mutex
	saves    int
	restarts int
	backup   bool
	delay    int
}

func (f *fakeServer) Save(tag rconsession.Tag, backup bool, delay int, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	f.backup = backup
	f.delay = delay
}

func (f *fakeServer) Restart(tag rconsession.Tag, backup bool, delay int, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restarts++
	f.backup = backup
	f.delay = delay
}

const scheduleConfig = `{
	"servers": [{"key": "island", "rcon": {"address": "10.0.0.5", "port": 32330}}],
	"time_zone": 8,
	"save_delay": 5,
	"save_tables": {
		"island": [{"time": "04:00", "backup": true}],
		"ragnarok": [{"time": "04:00", "backup": false}]
	},
	"restart_tables": {
		"island": [{"time": "05:00", "backup": false}]
	}
}`

func newTestRunner(t *testing.T, server *fakeServer) *Runner {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ark.json")
	if err := os.WriteFile(path, []byte(scheduleConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := config.OpenArkStore(path)
	if err != nil {
		t.Fatal(err)
	}

	return NewRunner(store, func(key string) (Server, error) {
		if key == "island" {
			return server, nil
		}
		return nil, errors.New("服务器不存在: " + key)
	})
}

// at 返回固定在UTC+8指定时刻的时钟
func at(clock string) func() time.Time {
	loc := time.FixedZone("UTC+8", 8*3600)
	t, _ := time.ParseInLocation("2006-01-02 15:04", "2026-08-28 "+clock, loc)
	return func() time.Time { return t }
}

func TestTickFiresSave(t *testing.T) {
	server := &fakeServer{}
	r := newTestRunner(t, server)

	r.now = at("04:00")
	r.tick()

	if server.saves != 1 {
		t.Fatalf("saves = %d, 期望 1", server.saves)
	}
	if !server.backup || server.delay != 5 {
		t.Errorf("参数 = (backup=%v, delay=%d), 期望 (true, 5)", server.backup, server.delay)
	}
	if server.restarts != 0 {
		t.Errorf("restarts = %d, 期望 0", server.restarts)
	}
}

func TestTickFiresOncePerDay(t *testing.T) {
	server := &fakeServer{}
	r := newTestRunner(t, server)

	// 同一时刻的多次检查只触发一次
	r.now = at("04:00")
	r.tick()
	r.tick()
	r.tick()
	if server.saves != 1 {
		t.Fatalf("saves = %d, 期望 1", server.saves)
	}

	// 次日同一时刻再次触发
	loc := time.FixedZone("UTC+8", 8*3600)
	next, _ := time.ParseInLocation("2006-01-02 15:04", "2026-08-29 04:00", loc)
	r.now = func() time.Time { return next }
	r.tick()
	if server.saves != 2 {
		t.Fatalf("跨日saves = %d, 期望 2", server.saves)
	}
}

func TestTickFiresRestart(t *testing.T) {
	server := &fakeServer{}
	r := newTestRunner(t, server)

	r.now = at("05:00")
	r.tick()

	if server.restarts != 1 {
		t.Fatalf("restarts = %d, 期望 1", server.restarts)
	}
	if server.backup {
		t.Error("重启条目未配置备份")
	}
}

func TestTickSkipsOffSchedule(t *testing.T) {
	server := &fakeServer{}
	r := newTestRunner(t, server)

	r.now = at("04:01")
	r.tick()

	if server.saves != 0 || server.restarts != 0 {
		t.Errorf("非时刻表时间不应触发, saves=%d restarts=%d", server.saves, server.restarts)
	}
}

// 时刻表中未知的服务器被跳过且不影响其他条目
func TestTickSkipsUnknownServer(t *testing.T) {
	server := &fakeServer{}
	r := newTestRunner(t, server)

	r.now = at("04:00")
	r.tick()

	// ragnarok不存在，但island正常触发
	if server.saves != 1 {
		t.Fatalf("saves = %d, 期望 1", server.saves)
	}
}
