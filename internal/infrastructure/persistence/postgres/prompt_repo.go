// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"genai-chat-api/internal/domain/entity"
	"genai-chat-api/internal/domain/repository"
	apperrors "genai-chat-api/pkg/errors"
)

type PromptRepository struct {
	client *Client
}

func NewPromptRepository(client *Client) *PromptRepository {
	return &PromptRepository{client: client}
}

var _ repository.PromptRepository = (*PromptRepository)(nil)

func (r *PromptRepository) GetByCode(ctx context.Context, code string) (*entity.Prompt, error) {
	ctx, span := tracer.Start(ctx, "postgres.PromptRepository.GetByCode")
	defer span.End()

	var prompt entity.Prompt
	err := r.client.db.WithContext(ctx).Where("code = ?", code).First(&prompt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrPromptNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get prompt: %w", err)
	}
	return &prompt, nil
}

func (r *PromptRepository) Upsert(ctx context.Context, prompt *entity.Prompt) error {
	ctx, span := tracer.Start(ctx, "postgres.PromptRepository.Upsert")
	defer span.End()

	err := r.client.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "content", "temperature", "top_p", "updated_at"}),
		}).
		Create(prompt).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert prompt: %w", err)
	}
	return nil
}
