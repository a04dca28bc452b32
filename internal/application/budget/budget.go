// Package budget 根据模型上下文窗口计算生成侧可用的最大输出 token 数
package budget

import (
	"context"

	"genai-chat-api/internal/config"
	"genai-chat-api/pkg/errors"
	"genai-chat-api/pkg/logger"
	"genai-chat-api/pkg/tokenizer"
)

// Input 提示构建完成后参与预算扣减的各段文本
type Input struct {
	SystemPrompt string
	Query        string
	State        string
	Context      string
	History      []string
}

// Budgeter 输出 token 预算器
type Budgeter struct {
	tok tokenizer.Tokenizer
	cfg *config.LLMConfig
}

// NewBudgeter 创建预算器
func NewBudgeter(tok tokenizer.Tokenizer, cfg *config.LLMConfig) *Budgeter {
	return &Budgeter{tok: tok, cfg: cfg}
}

// MaxOutputTokens 计算本次调用的输出 token 上限
// 公式：窗口 - 各段输入 token - 封装开销 - 安全边际，再夹逼到 [min, max]
// 输入已占满窗口时返回 min 并携带 ErrBudgetExhausted，调用方决定是否降级继续
func (b *Budgeter) MaxOutputTokens(ctx context.Context, in Input) (int, error) {
	used := b.tok.Count(in.SystemPrompt) +
		b.tok.Count(in.Query) +
		b.tok.Count(in.State) +
		b.tok.Count(in.Context)
	for _, h := range in.History {
		used += b.tok.Count(h)
	}
	used += b.cfg.InternalTokenOverhead

	remaining := b.cfg.ModelContextLimit - used - b.cfg.SafetyMargin

	if remaining < b.cfg.MinOutputTokens {
		logger.Warn(ctx, "token budget exhausted",
			"used", used,
			"remaining", remaining,
			"context_limit", b.cfg.ModelContextLimit,
		)
		return b.cfg.MinOutputTokens, errors.ErrBudgetExhausted
	}
	if remaining > b.cfg.MaxOutputTokens {
		return b.cfg.MaxOutputTokens, nil
	}
	return remaining, nil
}
