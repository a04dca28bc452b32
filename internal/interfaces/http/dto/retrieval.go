// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"genai-chat-api/internal/application/retrieval"
)

// RetrievalSearchRequest 检索调试请求
type RetrievalSearchRequest struct {
	Collection string `json:"collection" binding:"required"`
	Query      string `json:"query" binding:"required"`
}

// RetrievalDocumentResponse 检索结果文档
type RetrievalDocumentResponse struct {
	ID      string  `json:"id"`
	Title   string  `json:"title,omitempty"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Source  string  `json:"source"`
}

// RetrievalSearchResponse 检索调试响应
type RetrievalSearchResponse struct {
	Documents []*RetrievalDocumentResponse `json:"documents"`
}

// NewRetrievalSearchResponse 检索结果转响应
func NewRetrievalSearchResponse(docs []retrieval.Document) *RetrievalSearchResponse {
	out := make([]*RetrievalDocumentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, &RetrievalDocumentResponse{
			ID:      doc.ID,
			Title:   doc.Title,
			Content: doc.Content,
			Score:   doc.Score,
			Source:  doc.Source,
		})
	}
	return &RetrievalSearchResponse{Documents: out}
}
