// Package entity 定义领域实体
package entity

import (
	"encoding/json"
	"time"
)

// ChatState 会话随轮次演进的业务状态，作为提示词的一部分参与生成
type ChatState string

// Chat 问答会话
type Chat struct {
	ID         string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Title      string    `json:"title" gorm:"type:varchar(256)"`
	PromptCode string    `json:"prompt_code" gorm:"type:varchar(32);not null"`
	State      ChatState `json:"state,omitempty" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Chat) TableName() string {
	return "chats"
}

func NewChat(title, promptCode string) *Chat {
	now := time.Now()
	if promptCode == "" {
		promptCode = DefaultPromptCode
	}
	return &Chat{
		Title:      title,
		PromptCode: promptCode,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// ConversationTurn 会话中的一条消息，user 与 assistant 各占一条
type ConversationTurn struct {
	ID        string          `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChatID    string          `json:"chat_id" gorm:"type:uuid;index;not null"`
	Role      Role            `json:"role" gorm:"type:varchar(16);not null"`
	Content   string          `json:"content" gorm:"type:text;not null"`
	Metadata  json.RawMessage `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

func (ConversationTurn) TableName() string {
	return "conversation_turns"
}

func NewConversationTurn(chatID string, role Role, content string, metadata json.RawMessage) *ConversationTurn {
	return &ConversationTurn{
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
}
