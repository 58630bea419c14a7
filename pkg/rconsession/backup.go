package rconsession

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// backupDirLayout 备份目录的命名格式
	backupDirLayout = "2006-01-02_15.04.05"

	// backupDateLayout 备份目录名中的日期部分，清理时按此解析
	backupDateLayout = "2006-01-02"

	// paintingsCacheDir 随存档一并备份的涂装缓存目录
	paintingsCacheDir = "ServerPaintingsCache"
)

// backupSuffixes 随主存档一并备份的按玩家/部落拆分的文件后缀
var backupSuffixes = []string{".arkprofile", ".arktribe", ".arktributetribe"}

// Backup 将当前存档复制到按时间戳命名的备份目录，随后清理超过
// 保留天数的旧备份。各文件独立处理，单个文件复制失败仅记录日志。
func (s *Session) Backup(tag Tag) {
	if !tag.Valid() {
		return
	}
	log.Printf("[%s] From:%s Receive Command:backup", s.server.Key, tag)

	sourceDir := filepath.Join(s.server.DirPath, "ShooterGame", "Saved", "SavedArks")
	rootDir := filepath.Join(s.server.DirPath, "ShooterGame", "Backup", "SavedArks")
	backupDir := filepath.Join(rootDir, time.Now().Format(backupDirLayout))

	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		log.Printf("[%s] 创建备份目录失败: %v", s.server.Key, err)
		return
	}

	// 主存档文件
	if err := copyFile(
		filepath.Join(sourceDir, s.server.FileName),
		filepath.Join(backupDir, s.server.FileName),
	); err != nil {
		log.Printf("[%s] 备份主存档失败: %v", s.server.Key, err)
	}

	// 玩家与部落文件、涂装缓存
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		log.Printf("[%s] 读取存档目录失败: %v", s.server.Key, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case hasAnySuffix(name, backupSuffixes):
			if err := copyFile(filepath.Join(sourceDir, name), filepath.Join(backupDir, name)); err != nil {
				log.Printf("[%s] 备份 %s 失败: %v", s.server.Key, name, err)
			}
		case entry.IsDir() && name == paintingsCacheDir:
			if err := copyTree(filepath.Join(sourceDir, name), filepath.Join(backupDir, name)); err != nil {
				log.Printf("[%s] 备份 %s 失败: %v", s.server.Key, name, err)
			}
		}
	}

	s.pruneBackups(rootDir)

	if tag == TagChat {
		s.pushChat(fmt.Sprintf("[%s]备份完成。", s.server.DisplayName))
	}
}

// pruneBackups 删除目录名中的日期早于保留期限的备份
func (s *Session) pruneBackups(rootDir string) {
	days := s.settings().BackupDays
	if days <= 0 {
		return
	}
	now := time.Now()
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local).AddDate(0, 0, -days)

	entries, err := os.ReadDir(rootDir)
	if err != nil {
		log.Printf("[%s] 读取备份目录失败: %v", s.server.Key, err)
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if len(name) < len(backupDateLayout) {
			continue
		}
		date, err := time.ParseInLocation(backupDateLayout, name[:len(backupDateLayout)], time.Local)
		if err != nil {
			continue
		}
		if date.Before(cutoff) {
			if err := os.RemoveAll(filepath.Join(rootDir, name)); err != nil {
				log.Printf("[%s] 删除过期备份 %s 失败: %v", s.server.Key, name, err)
			} else {
				log.Printf("[%s] 删除过期备份: %s", s.server.Key, name)
			}
		}
	}
}

// hasAnySuffix 检查文件名是否以任一后缀结尾
func hasAnySuffix(name string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// copyFile 复制单个文件，目标已存在时覆盖
func copyFile(source, target string) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// copyTree 递归复制目录树
func copyTree(sourceDir, targetDir string) error {
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		source := filepath.Join(sourceDir, entry.Name())
		target := filepath.Join(targetDir, entry.Name())
		if entry.IsDir() {
			if err := copyTree(source, target); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(source, target); err != nil {
			return err
		}
	}
	return nil
}
