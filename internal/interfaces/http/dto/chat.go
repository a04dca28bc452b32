// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"encoding/json"
	"time"

	"genai-chat-api/internal/domain/entity"
)

// CreateChatRequest 创建会话请求
type CreateChatRequest struct {
	Title      string `json:"title"`
	PromptCode string `json:"prompt_code,omitempty"`
}

// UpdateChatRequest 更新会话请求
type UpdateChatRequest struct {
	Title      *string `json:"title,omitempty"`
	PromptCode *string `json:"prompt_code,omitempty"`
	State      *string `json:"state,omitempty"`
}

// ChatResponse 会话响应
type ChatResponse struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	PromptCode string `json:"prompt_code"`
	State      string `json:"state,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// NewChatResponse 实体转会话响应
func NewChatResponse(e *entity.Chat) *ChatResponse {
	return &ChatResponse{
		ID:         e.ID,
		Title:      e.Title,
		PromptCode: e.PromptCode,
		State:      string(e.State),
		CreatedAt:  e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  e.UpdatedAt.Format(time.RFC3339),
	}
}

// ChatListResponse 会话列表响应
type ChatListResponse struct {
	Chats []*ChatResponse `json:"chats"`
}

// TurnResponse 对话轮次响应
type TurnResponse struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Metadata  any    `json:"metadata,omitempty"`
	CreatedAt string `json:"created_at"`
}

// NewTurnResponse 实体转轮次响应
func NewTurnResponse(e *entity.ConversationTurn) *TurnResponse {
	resp := &TurnResponse{
		ID:        e.ID,
		Role:      string(e.Role),
		Content:   e.Content,
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
	if len(e.Metadata) > 0 {
		var meta any
		if err := json.Unmarshal(e.Metadata, &meta); err == nil {
			resp.Metadata = meta
		}
	}
	return resp
}

// TurnListResponse 对话轮次列表响应
type TurnListResponse struct {
	Turns []*TurnResponse `json:"turns"`
}

// QuestionRequest 提问请求，回答通过已建立的会话流异步推送
type QuestionRequest struct {
	SessionKey string `json:"session_key" binding:"required"`
	Query      string `json:"query" binding:"required"`
	Collection string `json:"collection,omitempty"`
	PromptCode string `json:"prompt_code,omitempty"`
}

// QuestionAcceptedResponse 提问受理响应
type QuestionAcceptedResponse struct {
	SessionKey string `json:"session_key"`
}
