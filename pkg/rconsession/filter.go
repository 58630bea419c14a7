package rconsession

import "strings"

// 部落消息的解析标记。ARK中文客户端输出的部落日志以「部落」开头，
// 成员聊天行带有RichColor标签包裹，系统事件行则为冒号分隔的叙述文本。
const (
	tribePrefix    = "部落"
	tribeIDMarker  = ", ID "
	tribeSpanOpen  = "\">"
	memberBoiler   = "部落成員"
	ownTribeBoiler = "你的部落"
)

// Retouch 逐个去除字符串首尾的空格字符，任一时刻结果为空则返回空字符串
func Retouch(text string) string {
	if text == "" {
		return ""
	}
	for text[0] == ' ' {
		text = text[1:]
		if text == "" {
			return ""
		}
	}
	for text[len(text)-1] == ' ' {
		text = text[:len(text)-1]
		if text == "" {
			return ""
		}
	}
	return text
}

// Passes 按过滤表检查文本，命中任意前缀、子串或后缀则返回false
func Passes(text string, table FilterTable) bool {
	for _, prefix := range table.StartsWith {
		if strings.HasPrefix(text, prefix) {
			return false
		}
	}
	for _, substr := range table.Include {
		if strings.Contains(text, substr) {
			return false
		}
	}
	for _, suffix := range table.EndsWith {
		if strings.HasSuffix(text, suffix) {
			return false
		}
	}
	return true
}

// Reformat 修饰聊天行。部落消息提取部落名与消息正文，
// 重排为"<部落名>正文"的形式；其余行原样返回。
// 解析失败或正文为空时返回空字符串，调用方应丢弃该行。
func Reformat(text string) string {
	if !strings.HasPrefix(text, tribePrefix) {
		return text
	}
	idIndex := strings.Index(text, tribeIDMarker)
	if idIndex < 0 {
		return text
	}
	tribe := text[len(tribePrefix):idIndex]

	var message string
	if spanIndex := strings.Index(text, tribeSpanOpen); spanIndex >= 0 {
		// 成员聊天：截取RichColor span内的正文，去掉结尾的"</>
		message = text[spanIndex+len(tribeSpanOpen):]
		if len(message) < 4 {
			return ""
		}
		message = message[:len(message)-4]
	} else {
		// 系统事件：取冒号分隔的第三段，去掉结尾标点并移除套话
		parts := strings.Split(text, ": ")
		if len(parts) < 3 {
			return ""
		}
		runes := []rune(parts[2])
		if len(runes) == 0 {
			return ""
		}
		message = string(runes[:len(runes)-1])
		message = strings.ReplaceAll(message, memberBoiler, "")
		message = strings.ReplaceAll(message, ownTribeBoiler, "")
	}

	message = Retouch(message)
	if message == "" {
		return ""
	}
	return "<" + tribe + ">" + message
}
