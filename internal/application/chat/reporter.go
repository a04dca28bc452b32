package chat

import (
	"context"
	"fmt"
	"strings"

	"genai-chat-api/internal/application/budget"
	"genai-chat-api/internal/application/stream"
	"genai-chat-api/internal/application/summary"
	"genai-chat-api/internal/domain/entity"
	"genai-chat-api/internal/domain/repository"
	llmgw "genai-chat-api/internal/infrastructure/gateway/llm"
	"genai-chat-api/pkg/errors"
	"genai-chat-api/pkg/logger"
)

const reportSystemPrompt = "你是报告撰写助手。请基于给定的背景信息与材料摘要，撰写一份结构清晰的中文报告，先给结论再展开论据。"

// ReportInput 报告生成的触发参数
type ReportInput struct {
	SessionKey string
	ChatID     string
	Title      string
	Context    string
	Content    string
}

// Reporter 长文报告编排器：先分块压缩材料，再把报告流式推到会话流
type Reporter struct {
	registry  *stream.Registry
	pipeline  *stream.Pipeline
	reducer   *summary.Reducer
	generator Generator
	budgeter  *budget.Budgeter
	turns     repository.ConversationTurnRepository
}

// NewReporter 创建报告编排器
func NewReporter(
	registry *stream.Registry,
	pipeline *stream.Pipeline,
	reducer *summary.Reducer,
	generator Generator,
	budgeter *budget.Budgeter,
	turns repository.ConversationTurnRepository,
) *Reporter {
	return &Reporter{
		registry:  registry,
		pipeline:  pipeline,
		reducer:   reducer,
		generator: generator,
		budgeter:  budgeter,
		turns:     turns,
	}
}

// Generate 校验会话流后异步生成报告，进度与正文事件推送到会话流
func (r *Reporter) Generate(ctx context.Context, in ReportInput) error {
	if strings.TrimSpace(in.Content) == "" {
		return errors.New(errors.CodeInvalidParam, "content is empty")
	}
	h, err := r.registry.Get(in.SessionKey)
	if err != nil {
		return err
	}
	go r.run(h, in)
	return nil
}

func (r *Reporter) run(h *stream.Handle, in ReportInput) {
	ctx := logger.WithContext(h.Context(), logger.SessionIDKey, in.SessionKey)

	r.pipeline.Emit(ctx, h, stream.StagePrepare, stream.PhaseStart, "")

	// 材料先经 map-reduce 压缩，报告生成只面对有界输入
	condensed, err := r.reducer.Summarize(ctx, in.Content)
	if err != nil {
		r.pipeline.Fail(ctx, h, err)
		return
	}
	r.pipeline.Emit(ctx, h, stream.StagePrepare, stream.PhaseProcess,
		fmt.Sprintf("condensed %d chunks", condensed.ChunkCount))
	if condensed.Truncated {
		logger.Warn(ctx, "report material truncated", "chunks", condensed.ChunkCount)
	}
	r.pipeline.Emit(ctx, h, stream.StagePrepare, stream.PhaseDone, "")

	userPrompt := buildReportPrompt(in, condensed.Text)
	maxOut, err := r.budgeter.MaxOutputTokens(ctx, budget.Input{
		SystemPrompt: reportSystemPrompt,
		Query:        userPrompt,
	})
	if err != nil && !isBudgetExhausted(err) {
		r.pipeline.Fail(ctx, h, err)
		return
	}

	msgs := buildMessages(reportSystemPrompt, nil, userPrompt)
	report, _, ok := newGenerationLoop(r.pipeline, r.generator).run(ctx, h, msgs, llmgw.Options{MaxTokens: maxOut})
	if !ok {
		return
	}

	// 流拆除会取消句柄上下文，落库换用不随之取消的上下文
	persistCtx := context.WithoutCancel(ctx)
	r.pipeline.Finish(ctx, h)

	if h.Cancelled() || in.ChatID == "" {
		return
	}
	if err := r.turns.Create(persistCtx, entity.NewConversationTurn(in.ChatID, entity.RoleAssistant, report, nil)); err != nil {
		logger.Error(persistCtx, "failed to persist report turn", err)
	}
}

func buildReportPrompt(in ReportInput, condensed string) string {
	var sb strings.Builder
	if t := strings.TrimSpace(in.Title); t != "" {
		sb.WriteString("[报告标题]\n")
		sb.WriteString(t)
		sb.WriteString("\n\n")
	}
	if c := strings.TrimSpace(in.Context); c != "" {
		sb.WriteString("[背景信息]\n")
		sb.WriteString(c)
		sb.WriteString("\n\n")
	}
	sb.WriteString("[材料摘要]\n")
	sb.WriteString(condensed)
	return sb.String()
}
