package stream

import "strings"

// Event 推送给订阅端的单条 SSE 事件
type Event struct {
	ID       string
	Name     string
	Content  string
	Sequence int64
}

var contentEscaper = strings.NewReplacer(
	" ", "&nbsp;",
	"\n", "\\n",
)

// EscapeContent 转义片段内容，避免 SSE 分帧吞掉空格与换行
func EscapeContent(s string) string {
	if s == "" {
		return s
	}
	return contentEscaper.Replace(s)
}
