// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"time"

	"genai-chat-api/internal/domain/entity"
)

// UpsertPromptRequest 提示词写入请求
type UpsertPromptRequest struct {
	Code        string  `json:"code" binding:"required"`
	Name        string  `json:"name"`
	Content     string  `json:"content" binding:"required"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

// PromptResponse 提示词响应
type PromptResponse struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Content     string  `json:"content"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	UpdatedAt   string  `json:"updated_at"`
}

// NewPromptResponse 实体转提示词响应
func NewPromptResponse(e *entity.Prompt) *PromptResponse {
	return &PromptResponse{
		Code:        e.Code,
		Name:        e.Name,
		Content:     e.Content,
		Temperature: e.Temperature,
		TopP:        e.TopP,
		UpdatedAt:   e.UpdatedAt.Format(time.RFC3339),
	}
}
