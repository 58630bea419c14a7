//go:build !linux

package rconsession

// procScanProber 非Linux平台没有/proc，始终报告进程不存活
type procScanProber struct{}

func (procScanProber) IsAlive(server ServerConfig) bool {
	return false
}
