// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"genai-chat-api/internal/domain/entity"
)

type ChatRepository interface {
	Create(ctx context.Context, chat *entity.Chat) error
	GetByID(ctx context.Context, id string) (*entity.Chat, error)
	Update(ctx context.Context, chat *entity.Chat) error
	List(ctx context.Context, pagination Pagination) (*PagedResult[*entity.Chat], error)
}

type ConversationTurnRepository interface {
	Create(ctx context.Context, turn *entity.ConversationTurn) error
	// ListRecent 返回会话最近的 limit 条消息，按时间升序
	ListRecent(ctx context.Context, chatID string, limit int) ([]*entity.ConversationTurn, error)
	ListByChat(ctx context.Context, chatID string, pagination Pagination) (*PagedResult[*entity.ConversationTurn], error)
}
