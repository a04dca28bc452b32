// Package chat 负责一轮问答的编排：召回、预算、流式生成与落库
package chat

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"genai-chat-api/internal/application/retrieval"
	"genai-chat-api/internal/domain/entity"
	llmgw "genai-chat-api/internal/infrastructure/gateway/llm"
	"genai-chat-api/internal/infrastructure/messaging"
)

// Retriever 双路召回融合的最小依赖（port）
type Retriever interface {
	Retrieve(ctx context.Context, collection, query string) ([]retrieval.Document, error)
}

// Generator 流式生成的最小依赖（port），由 LLM 网关实现
type Generator interface {
	Stream(ctx context.Context, messages []*schema.Message, opts llmgw.Options) (*schema.StreamReader[*schema.Message], error)
	RecordUsage(msg *schema.Message)
}

// PromptLoader 提示词加载（port），生产实现带 Redis 读穿缓存
type PromptLoader interface {
	Load(ctx context.Context, code string) (*entity.Prompt, error)
}

// TurnPublisher 轮次完成事件发布（port）
type TurnPublisher interface {
	PublishTurnCompleted(ctx context.Context, turn *messaging.TurnCompletedMessage) (string, error)
}
