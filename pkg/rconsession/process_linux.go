//go:build linux

package rconsession

import (
	"os"
	"path/filepath"
	"strings"
)

// procScanProber 扫描/proc判断服务器进程是否存活
type procScanProber struct{}

// IsAlive 遍历/proc/*/cmdline，匹配可执行文件名与服务器安装目录
func (procScanProber) IsAlive(server ServerConfig) bool {
	exeName := server.ExeName
	if exeName == "" {
		exeName = defaultExeName
	}

	entries, err := filepath.Glob("/proc/[0-9]*/cmdline")
	if err != nil {
		return false
	}
	for _, entry := range entries {
		data, err := os.ReadFile(entry)
		if err != nil {
			continue
		}
		// cmdline以NUL分隔，第一个参数是可执行文件路径
		args := strings.Split(string(data), "\x00")
		if len(args) == 0 {
			continue
		}
		if strings.Contains(args[0], exeName) && strings.Contains(args[0], server.DirPath) {
			return true
		}
	}
	return false
}
