package summary

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"genai-chat-api/internal/config"
	"genai-chat-api/pkg/errors"
	"genai-chat-api/pkg/logger"
	"genai-chat-api/pkg/metrics"
	"genai-chat-api/pkg/tokenizer"
)

const (
	mapSystemPrompt    = "你是文本摘要助手。请提炼下面文本片段的核心信息，保留关键事实与数字，输出简洁的中文摘要。"
	reduceSystemPrompt = "你是文本摘要助手。下面是同一篇长文按顺序切分后得到的分段摘要，请把它们合并为一篇连贯、无重复的整体摘要。"
)

// Generator 摘要所需的最小生成能力，由 LLM 网关实现
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// Result 摘要结果及其处理元信息
type Result struct {
	Text       string `json:"text"`
	ChunkCount int    `json:"chunk_count"`
	Truncated  bool   `json:"truncated"`
}

// Reducer 分块 map-reduce 摘要器
// 超长文本先按 token 切块，分批并发产出分块摘要，再归并为整体摘要
type Reducer struct {
	gen Generator
	tok tokenizer.Tokenizer
	cfg *config.SummaryConfig
}

// NewReducer 创建摘要器
func NewReducer(gen Generator, tok tokenizer.Tokenizer, cfg *config.SummaryConfig) *Reducer {
	return &Reducer{gen: gen, tok: tok, cfg: cfg}
}

// Summarize 对任意长度文本产出整体摘要
// 块数超过上限时截断到上限继续处理，并在结果中标记 Truncated
func (r *Reducer) Summarize(ctx context.Context, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New(errors.CodeInvalidParam, "text is empty")
	}

	chunks := splitByTokens(r.tok, text, r.cfg.ChunkTokenSize, r.cfg.OverlapTokenSize)
	truncated := false
	if r.cfg.MaxChunks > 0 && len(chunks) > r.cfg.MaxChunks {
		logger.Warn(ctx, "summary chunk limit exceeded, truncating",
			"chunks", len(chunks), "max_chunks", r.cfg.MaxChunks)
		metrics.SummaryTruncatedTotal.Inc()
		chunks = chunks[:r.cfg.MaxChunks]
		truncated = true
	}
	metrics.SummaryChunks.Observe(float64(len(chunks)))

	// 单块直接走一轮生成
	if len(chunks) == 1 {
		text, err := r.gen.Generate(ctx, mapSystemPrompt, chunks[0])
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeGenerationFailed, "summarize chunk failed")
		}
		return &Result{Text: strings.TrimSpace(text), ChunkCount: 1, Truncated: truncated}, nil
	}

	partials, err := r.mapChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	merged, err := r.gen.Generate(ctx, reduceSystemPrompt, joinPartials(partials))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeGenerationFailed, "reduce summaries failed")
	}
	return &Result{Text: strings.TrimSpace(merged), ChunkCount: len(chunks), Truncated: truncated}, nil
}

// mapChunks 并发产出分块摘要，batch_size 控制并发上限，结果保持原文顺序
func (r *Reducer) mapChunks(ctx context.Context, chunks []string) ([]string, error) {
	partials := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	if r.cfg.BatchSize > 0 {
		g.SetLimit(r.cfg.BatchSize)
	}
	for i, chunk := range chunks {
		g.Go(func() error {
			text, err := r.gen.Generate(gctx, mapSystemPrompt, chunk)
			if err != nil {
				return errors.Wrap(err, errors.CodeGenerationFailed,
					fmt.Sprintf("summarize chunk %d failed", i))
			}
			partials[i] = strings.TrimSpace(text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return partials, nil
}

func joinPartials(partials []string) string {
	var sb strings.Builder
	for i, p := range partials {
		if p == "" {
			continue
		}
		fmt.Fprintf(&sb, "[第%d段]\n%s\n\n", i+1, p)
	}
	return strings.TrimSpace(sb.String())
}
