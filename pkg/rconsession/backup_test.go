package rconsession

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// newBackupSession 在临时目录下搭建存档目录结构
func newBackupSession(t *testing.T) (*Session, string) {
	t.Helper()
	dir := t.TempDir()

	server := testServer()
	server.DirPath = dir
	s := New(server, testSettings())

	saveDir := filepath.Join(dir, "ShooterGame", "Saved", "SavedArks")
	if err := os.MkdirAll(saveDir, 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"TheIsland.ark":         "world data",
		"player1.arkprofile":    "profile",
		"alpha.arktribe":        "tribe",
		"alpha.arktributetribe": "tribute",
		"readme.txt":            "ignore me",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(saveDir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	cacheDir := filepath.Join(saveDir, paintingsCacheDir)
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cacheDir, "paint.pnt"), []byte("paint"), 0o644); err != nil {
		t.Fatal(err)
	}

	return s, dir
}

func TestBackupCopiesSave(t *testing.T) {
	s, dir := newBackupSession(t)

	s.Backup(TagChat)
	chatContains(t, s, "备份完成")

	rootDir := filepath.Join(dir, "ShooterGame", "Backup", "SavedArks")
	entries, err := os.ReadDir(rootDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("备份目录数 = %d, 期望 1", len(entries))
	}
	backupDir := filepath.Join(rootDir, entries[0].Name())

	// 目录名以当天日期开头
	if _, err := time.ParseInLocation(backupDirLayout, entries[0].Name(), time.Local); err != nil {
		t.Errorf("备份目录名 %q 不符合时间戳格式: %v", entries[0].Name(), err)
	}

	for _, name := range []string{
		"TheIsland.ark",
		"player1.arkprofile",
		"alpha.arktribe",
		"alpha.arktributetribe",
		filepath.Join(paintingsCacheDir, "paint.pnt"),
	} {
		if _, err := os.Stat(filepath.Join(backupDir, name)); err != nil {
			t.Errorf("备份缺少 %s: %v", name, err)
		}
	}

	// 无关文件不进入备份
	if _, err := os.Stat(filepath.Join(backupDir, "readme.txt")); err == nil {
		t.Error("无关文件不应被备份")
	}
}

func TestBackupPrunesExpired(t *testing.T) {
	s, dir := newBackupSession(t)

	rootDir := filepath.Join(dir, "ShooterGame", "Backup", "SavedArks")
	now := time.Now()
	expired := now.AddDate(0, 0, -10).Format(backupDirLayout)
	recent := now.AddDate(0, 0, -3).Format(backupDirLayout)
	unrelated := "not-a-backup"
	for _, name := range []string{expired, recent, unrelated} {
		if err := os.MkdirAll(filepath.Join(rootDir, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	// 保留天数为7：10天前的删除，3天前的保留
	s.Backup(TagWeb)

	if _, err := os.Stat(filepath.Join(rootDir, expired)); err == nil {
		t.Errorf("过期备份 %s 应被删除", expired)
	}
	if _, err := os.Stat(filepath.Join(rootDir, recent)); err != nil {
		t.Errorf("未过期备份 %s 应被保留: %v", recent, err)
	}
	// 名字不含日期的目录不受清理影响
	if _, err := os.Stat(filepath.Join(rootDir, unrelated)); err != nil {
		t.Errorf("无关目录 %s 应被保留: %v", unrelated, err)
	}

	// 非聊天方的备份不产生聊天消息
	if _, ok := s.Take(TagChat); ok {
		t.Error("Web方备份不应产生聊天提示")
	}
}

func TestHasAnySuffix(t *testing.T) {
	if !hasAnySuffix("a.arkprofile", backupSuffixes) {
		t.Error("应匹配.arkprofile")
	}
	if hasAnySuffix("a.ark", backupSuffixes) {
		t.Error("不应匹配.ark")
	}
}

func TestRewriteMultiHome(t *testing.T) {
	in := `./ShooterGameServer "TheIsland?listen?MultiHome=10.0.0.5?Port=7777" -server`
	want := `./ShooterGameServer "TheIsland?listen?MultiHome=0.0.0.0?Port=7777" -server`
	if got := rewriteMultiHome(in); got != want {
		t.Errorf("rewriteMultiHome = %q, 期望 %q", got, want)
	}

	// 没有MultiHome参数时原样返回
	in = `./ShooterGameServer "TheIsland?listen" -server`
	if got := rewriteMultiHome(in); got != in {
		t.Errorf("rewriteMultiHome应原样返回, got %q", got)
	}
}
