// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"genai-chat-api/internal/domain/entity"
)

type PromptRepository interface {
	GetByCode(ctx context.Context, code string) (*entity.Prompt, error)
	Upsert(ctx context.Context, prompt *entity.Prompt) error
}
