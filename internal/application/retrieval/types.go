// Package retrieval 关键词与向量双路召回、重排与上下文拼装
package retrieval

// Document 召回结果中的一条文档片段
type Document struct {
	ID      string  `json:"id"`
	Title   string  `json:"title,omitempty"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Source  string  `json:"source,omitempty"`
}
