package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleArkConfig = `{
	"servers": [
		{
			"key": "island",
			"dir_path": "/srv/ark/island",
			"file_name": "TheIsland.ark",
			"display_name": "孤岛",
			"rcon": {
				"address": "10.0.0.5",
				"port": 32330,
				"password": "secret",
				"timeout": 3,
				"m_filter": "default"
			},
			"chat_channel": "ark-island",
			"clear_dino": true
		}
	],
	"message": {
		"save": "服务器将在$TIME分钟后存档",
		"saving": "正在存档"
	},
	"state_message": {
		"running": "运行中"
	},
	"m_filter_tables": {
		"default": {
			"startswith": ["SERVER:"],
			"include": ["已加入此遊戲"],
			"endswith": ["..."]
		}
	},
	"backup_day": 7,
	"dino_classes": ["Ptero_Character_BP_C"],
	"time_zone": 8,
	"save_delay": 5,
	"save_tables": {
		"island": [{"time": "04:00", "backup": true}]
	},
	"restart_tables": {
		"island": [{"time": "05:00", "backup": false}]
	}
}`

func writeArkConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ark.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpenArkStore(t *testing.T) {
	store, err := OpenArkStore(writeArkConfig(t, sampleArkConfig))
	if err != nil {
		t.Fatal(err)
	}

	cfg := store.Snapshot()
	if len(cfg.Servers) != 1 {
		t.Fatalf("服务器数 = %d, 期望 1", len(cfg.Servers))
	}

	server := cfg.Servers[0]
	if server.Key != "island" || server.DisplayName != "孤岛" {
		t.Errorf("服务器 = %+v", server)
	}
	if server.Rcon.Address != "10.0.0.5" || server.Rcon.Port != 32330 || server.Rcon.Filter != "default" {
		t.Errorf("RCON配置 = %+v", server.Rcon)
	}
	if !server.ClearDino {
		t.Error("clear_dino未解析")
	}

	if cfg.Messages["save"] != "服务器将在$TIME分钟后存档" {
		t.Errorf("消息模板 = %v", cfg.Messages)
	}
	if cfg.BackupDays != 7 {
		t.Errorf("备份保留天数 = %d, 期望 7", cfg.BackupDays)
	}
	table, ok := cfg.FilterTables["default"]
	if !ok || len(table.StartsWith) != 1 || len(table.Include) != 1 {
		t.Errorf("过滤表 = %+v", cfg.FilterTables)
	}

	if got := cfg.SaveTables["island"][0].Time; got != "04:00" {
		t.Errorf("定时存档 = %q, 期望 04:00", got)
	}
	if cfg.SaveDelay != 5 {
		t.Errorf("save_delay = %d, 期望 5", cfg.SaveDelay)
	}
}

func TestArkConfigLocation(t *testing.T) {
	cfg := &ArkConfig{TimeZone: 8}
	loc := cfg.Location()

	utc := time.Date(2026, 8, 28, 20, 0, 0, 0, time.UTC)
	if got := utc.In(loc).Format("15:04"); got != "04:00" {
		t.Errorf("UTC 20:00 在 UTC+8 = %q, 期望 04:00", got)
	}
}

func TestSettingsSnapshot(t *testing.T) {
	store, err := OpenArkStore(writeArkConfig(t, sampleArkConfig))
	if err != nil {
		t.Fatal(err)
	}

	settings := store.Settings()
	if settings().Messages["saving"] != "正在存档" {
		t.Errorf("设置快照 = %v", settings().Messages)
	}

	// 重载后取值函数返回新快照
	if err := os.WriteFile(store.path, []byte(sampleReplaced), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := store.reload(); err != nil {
		t.Fatal(err)
	}
	if settings().Messages["saving"] != "保存中" {
		t.Errorf("重载后设置快照 = %v", settings().Messages)
	}
}

const sampleReplaced = `{
	"servers": [{"key": "island", "rcon": {"address": "10.0.0.5", "port": 32330}}],
	"message": {"saving": "保存中"}
}`

func TestOpenArkStoreRejectsEmpty(t *testing.T) {
	if _, err := OpenArkStore(writeArkConfig(t, `{"servers": []}`)); err == nil {
		t.Error("没有服务器的配置应报错")
	}
	if _, err := OpenArkStore(writeArkConfig(t, `{invalid`)); err == nil {
		t.Error("非法JSON应报错")
	}
	if _, err := OpenArkStore(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("文件不存在应报错")
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("ARKTEST_STR", "value")
	t.Setenv("ARKTEST_INT", "42")
	t.Setenv("ARKTEST_BOOL", "true")
	t.Setenv("ARKTEST_DUR", "90s")
	t.Setenv("ARKTEST_BAD", "not-a-number")

	if got := GetEnv("ARKTEST_STR", "d"); got != "value" {
		t.Errorf("GetEnv = %q", got)
	}
	if got := GetEnv("ARKTEST_MISSING", "d"); got != "d" {
		t.Errorf("GetEnv默认值 = %q", got)
	}
	if got := GetEnvInt("ARKTEST_INT", 1); got != 42 {
		t.Errorf("GetEnvInt = %d", got)
	}
	if got := GetEnvInt("ARKTEST_BAD", 1); got != 1 {
		t.Errorf("GetEnvInt解析失败应返回默认值, got %d", got)
	}
	if got := GetEnvBool("ARKTEST_BOOL", false); !got {
		t.Error("GetEnvBool = false")
	}
	if got := GetEnvDuration("ARKTEST_DUR", time.Second); got != 90*time.Second {
		t.Errorf("GetEnvDuration = %v", got)
	}
}
