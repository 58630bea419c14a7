package rconsession

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// defaultExeName ARK服务器进程的默认可执行文件名
const defaultExeName = "ShooterGameServer"

// defaultRunScript 默认启动脚本路径（相对于服务器安装目录）
const defaultRunScript = "ShooterGame/Saved/Config/LinuxServer/RunServer.sh"

// LivenessProber 判断服务器进程是否存活，由操作系统层协作者实现
type LivenessProber interface {
	// IsAlive 返回指定服务器的进程是否正在运行
	IsAlive(server ServerConfig) bool
}

// Starter 执行服务器启动流程，由进程管理层协作者实现
type Starter interface {
	// Start 启动服务器进程
	Start(server ServerConfig) error
}

// defaultProber 返回平台默认的进程探测实现
func defaultProber() LivenessProber {
	return procScanProber{}
}

// defaultStarter 返回默认的启动实现
func defaultStarter() Starter {
	return scriptStarter{}
}

// scriptStarter 通过服务器自带的启动脚本拉起进程。
// 启动前将脚本中的MultiHome参数改写为0.0.0.0，保证监听所有网卡。
type scriptStarter struct{}

func (scriptStarter) Start(server ServerConfig) error {
	script := server.RunScript
	if script == "" {
		script = defaultRunScript
	}
	path := filepath.Join(server.DirPath, script)

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	content := rewriteMultiHome(string(data))
	if content != string(data) {
		if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
			return err
		}
	}

	cmd := exec.Command("/bin/sh", path)
	cmd.Dir = server.DirPath
	return cmd.Start()
}

// rewriteMultiHome 将启动参数中的?MultiHome=...改写为0.0.0.0
func rewriteMultiHome(content string) string {
	const marker = "?MultiHome="
	start := strings.Index(content, marker)
	if start < 0 {
		return content
	}
	start += len(marker)
	end := strings.Index(content[start:], "?")
	if end < 0 {
		return content
	}
	return content[:start] + "0.0.0.0" + content[start+end:]
}
