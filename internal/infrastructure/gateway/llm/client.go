// Package llm 封装 Eino ChatModel 的批式与流式调用
package llm

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"genai-chat-api/internal/config"
	infrallm "genai-chat-api/internal/infrastructure/llm"
	"genai-chat-api/pkg/errors"
	"genai-chat-api/pkg/metrics"
)

// Options 单次模型调用的采样与预算参数，零值表示使用提供商默认值
type Options struct {
	Provider    string
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// Client LLM 网关，应用层的摘要与问答生成都经由它访问模型
type Client struct {
	factory *infrallm.EinoFactory
	cfg     *config.LLMConfig
}

// NewClient 创建 LLM 网关
func NewClient(factory *infrallm.EinoFactory, cfg *config.LLMConfig) *Client {
	return &Client{factory: factory, cfg: cfg}
}

// Generate 批式生成，给 system + user 两段即可，摘要 map/reduce 用
func (c *Client) Generate(ctx context.Context, system, user string) (string, error) {
	msgs := []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	}
	return c.GenerateMessages(ctx, msgs, Options{})
}

// GenerateMessages 批式生成完整消息序列
func (c *Client) GenerateMessages(ctx context.Context, messages []*schema.Message, opts Options) (string, error) {
	chatModel, err := c.factory.Get(ctx, opts.Provider)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeGenerationFailed, "chat model unavailable")
	}

	start := time.Now()
	outMsg, err := chatModel.Generate(ctx, messages, buildModelOptions(opts)...)
	metrics.GenerationDuration.WithLabelValues("batch").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", errors.Wrap(err, errors.CodeGenerationFailed, "generation failed")
	}
	if outMsg == nil {
		return "", errors.New(errors.CodeGenerationFailed, "empty llm response")
	}
	c.RecordUsage(outMsg)

	content := strings.TrimSpace(outMsg.Content)
	if content == "" {
		return "", errors.New(errors.CodeGenerationFailed, "empty llm content")
	}
	return content, nil
}

// Stream 流式生成，返回 Eino StreamReader；调用方负责 Close()
// 约定：流可能在最后返回一个 Content 为空但包含 Usage 的消息，用于 Token 统计
func (c *Client) Stream(ctx context.Context, messages []*schema.Message, opts Options) (*schema.StreamReader[*schema.Message], error) {
	chatModel, err := c.factory.Get(ctx, opts.Provider)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeGenerationFailed, "chat model unavailable")
	}
	reader, err := chatModel.Stream(ctx, messages, buildModelOptions(opts)...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeGenerationFailed, "stream generation failed")
	}
	return reader, nil
}

// RecordUsage 把响应消息里的用量写入指标，nil 或无用量时忽略
func (c *Client) RecordUsage(msg *schema.Message) {
	if msg == nil || msg.ResponseMeta == nil || msg.ResponseMeta.Usage == nil {
		return
	}
	u := msg.ResponseMeta.Usage
	metrics.LLMTokensUsed.WithLabelValues(c.cfg.DefaultProvider, "prompt").Add(float64(u.PromptTokens))
	metrics.LLMTokensUsed.WithLabelValues(c.cfg.DefaultProvider, "completion").Add(float64(u.CompletionTokens))
}

func buildModelOptions(opts Options) []model.Option {
	var out []model.Option
	if opts.MaxTokens > 0 {
		out = append(out, model.WithMaxTokens(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		out = append(out, model.WithTemperature(float32(opts.Temperature)))
	}
	if opts.TopP > 0 {
		out = append(out, model.WithTopP(float32(opts.TopP)))
	}
	return out
}
