package rconsession

// Tag 标识命令的发起方，回复按同一标签投递
type Tag int

// 调用方标签常量
const (
	// TagChat 聊天桥接（Discord等）
	TagChat Tag = iota

	// TagWeb Web控制台
	TagWeb

	// TagSystem 内部调度器与维护作业
	TagSystem

	tagCount
)

// tagNames 标签的显示名称
var tagNames = [tagCount]string{"Chat", "Web", "System"}

// Valid 检查标签是否在定义范围内
func (t Tag) Valid() bool {
	return t >= 0 && t < tagCount
}

// String 返回标签的显示名称
func (t Tag) String() string {
	if !t.Valid() {
		return "Unknown"
	}
	return tagNames[t]
}

// LinkStatus 表示RCON链路的连接状态
type LinkStatus int32

const (
	// LinkDisconnected 链路断开，主地址与回环地址均不可达
	LinkDisconnected LinkStatus = iota

	// LinkConnected 链路正常
	LinkConnected

	// LinkUnreachable 主地址不可达但回环地址可达，
	// 即服务器进程仍在运行，只是对外网络中断
	LinkUnreachable
)

// String 返回链路状态的显示名称
func (s LinkStatus) String() string {
	switch s {
	case LinkConnected:
		return "connected"
	case LinkUnreachable:
		return "unreachable"
	default:
		return "disconnected"
	}
}

// Mode 表示维护作业的模式
type Mode int

const (
	// ModeSave 仅存档
	ModeSave Mode = iota

	// ModeStop 存档后关闭
	ModeStop

	// ModeRestart 存档、关闭后重新启动
	ModeRestart
)

// String 返回模式名称，同时也是广播消息模板的键
func (m Mode) String() string {
	switch m {
	case ModeStop:
		return "stop"
	case ModeRestart:
		return "restart"
	default:
		return "save"
	}
}

// Display 返回模式的中文显示名称，用于回复消息
func (m Mode) Display() string {
	switch m {
	case ModeStop:
		return "关闭"
	case ModeRestart:
		return "重启"
	default:
		return "存档"
	}
}

// Request 表示一条待执行的命令
type Request struct {
	Command   string         // 命令文本
	Tag       Tag            // 发起方标签
	NeedReply bool           // 是否需要投递回复
	Args      map[string]any // 附加自定义参数，随回复原样带回
}

// Reply 表示一条命令回复或聊天消息
type Reply struct {
	Reply string         // 回复文本
	Args  map[string]any // 发起请求时附带的参数
}

// FilterTable 聊天过滤表，命中任意一项的行将被丢弃
type FilterTable struct {
	StartsWith []string `json:"startswith"` // 前缀匹配
	Include    []string `json:"include"`    // 子串匹配
	EndsWith   []string `json:"endswith"`   // 后缀匹配
}

// RconInfo RCON连接信息
type RconInfo struct {
	Address  string `json:"address"`  // 主地址
	Port     int    `json:"port"`     // RCON端口
	Password string `json:"password"` // RCON密码
	Timeout  int    `json:"timeout"`  // 单次往返超时（秒）
	Filter   string `json:"m_filter"` // 使用的过滤表名称
}

// ServerConfig 单个ARK服务器的配置
type ServerConfig struct {
	Key         string   `json:"key"`          // 服务器标识
	DirPath     string   `json:"dir_path"`     // 服务器安装目录
	FileName    string   `json:"file_name"`    // 主存档文件名
	DisplayName string   `json:"display_name"` // 显示名称
	Rcon        RconInfo `json:"rcon"`         // RCON连接信息
	ChatChannel string   `json:"chat_channel"` // 聊天转发目标频道
	ClearDino   bool     `json:"clear_dino"`   // 存档前是否清理野生恐龙
	ExeName     string   `json:"exe_name"`     // 进程可执行文件名
	RunScript   string   `json:"run_script"`   // 启动脚本路径（相对于DirPath）
}

// Settings 会话运行所需的全局设置快照。
// 热重载时整体替换，会话在使用点取得当前快照，不持有引用。
type Settings struct {
	Messages      map[string]string      `json:"message"`         // 广播消息模板，键为save/stop/restart/saving，$TIME为剩余分钟占位符
	StateMessages map[string]string      `json:"state_message"`   // 状态显示文本，键为running/starting/stopped等
	FilterTables  map[string]FilterTable `json:"m_filter_tables"` // 命名聊天过滤表
	BackupDays    int                    `json:"backup_day"`      // 备份保留天数
	DinoClasses   []string               `json:"dino_classes"`    // 清理野生恐龙时使用的类名列表
}

// SettingsFunc 返回当前设置快照
type SettingsFunc func() *Settings

// JobStore 维护作业的持久化记录接口，由上层以数据库实现，可为nil
type JobStore interface {
	// RecordStart 记录作业开始，返回记录ID
	RecordStart(serverKey string, mode Mode, backup bool, delay int, reason string, source Tag) (uint, error)

	// RecordFinish 记录作业结束与结果
	RecordFinish(id uint, result string) error
}
