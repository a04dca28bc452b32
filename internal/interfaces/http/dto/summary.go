// Package dto 提供 HTTP 层数据传输对象
package dto

// SummaryRequest 文本摘要请求
type SummaryRequest struct {
	Text string `json:"text" binding:"required"`
}

// SummaryResponse 文本摘要响应
type SummaryResponse struct {
	Summary    string `json:"summary"`
	ChunkCount int    `json:"chunk_count"`
	Truncated  bool   `json:"truncated"`
}

// ReportRequest 报告生成请求，正文通过已建立的会话流异步推送
type ReportRequest struct {
	SessionKey string `json:"session_key" binding:"required"`
	ChatID     string `json:"chat_id,omitempty"`
	Title      string `json:"title,omitempty"`
	Context    string `json:"context,omitempty"`
	Content    string `json:"content" binding:"required"`
}

// ReportAcceptedResponse 报告受理响应
type ReportAcceptedResponse struct {
	SessionKey string `json:"session_key"`
}
