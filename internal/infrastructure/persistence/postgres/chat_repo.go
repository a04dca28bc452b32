// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"genai-chat-api/internal/domain/entity"
	"genai-chat-api/internal/domain/repository"
	apperrors "genai-chat-api/pkg/errors"
)

type ChatRepository struct {
	client *Client
}

func NewChatRepository(client *Client) *ChatRepository {
	return &ChatRepository{client: client}
}

var _ repository.ChatRepository = (*ChatRepository)(nil)

func (r *ChatRepository) Create(ctx context.Context, chat *entity.Chat) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatRepository.Create")
	defer span.End()

	if err := r.client.db.WithContext(ctx).Create(chat).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create chat: %w", err)
	}
	return nil
}

func (r *ChatRepository) GetByID(ctx context.Context, id string) (*entity.Chat, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatRepository.GetByID")
	defer span.End()

	var chat entity.Chat
	err := r.client.db.WithContext(ctx).Where("id = ?", id).First(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrChatNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	return &chat, nil
}

func (r *ChatRepository) Update(ctx context.Context, chat *entity.Chat) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatRepository.Update")
	defer span.End()

	if err := r.client.db.WithContext(ctx).Save(chat).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update chat: %w", err)
	}
	return nil
}

func (r *ChatRepository) List(ctx context.Context, pagination repository.Pagination) (*repository.PagedResult[*entity.Chat], error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatRepository.List")
	defer span.End()

	query := r.client.db.WithContext(ctx).Model(&entity.Chat{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count chats: %w", err)
	}

	var chats []*entity.Chat
	if err := query.Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&chats).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}

	return repository.NewPagedResult(chats, total, pagination), nil
}
