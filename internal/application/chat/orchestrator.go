package chat

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"genai-chat-api/internal/application/budget"
	"genai-chat-api/internal/application/retrieval"
	"genai-chat-api/internal/application/stream"
	"genai-chat-api/internal/config"
	"genai-chat-api/internal/domain/entity"
	"genai-chat-api/internal/domain/repository"
	llmgw "genai-chat-api/internal/infrastructure/gateway/llm"
	"genai-chat-api/internal/infrastructure/messaging"
	"genai-chat-api/pkg/errors"
	"genai-chat-api/pkg/logger"
)

// QuestionInput 一轮问答的触发参数
type QuestionInput struct {
	SessionKey string
	ChatID     string
	Query      string
	Collection string
	PromptCode string
}

// Orchestrator 问答编排器，一轮问答对应一条会话流
type Orchestrator struct {
	registry  *stream.Registry
	pipeline  *stream.Pipeline
	retriever Retriever
	generator Generator
	budgeter  *budget.Budgeter
	chats     repository.ChatRepository
	turns     repository.ConversationTurnRepository
	prompts   PromptLoader
	publisher TurnPublisher
	cfg       *config.ChatConfig
}

// NewOrchestrator 创建问答编排器，publisher 可为 nil（不发轮次事件）
func NewOrchestrator(
	registry *stream.Registry,
	pipeline *stream.Pipeline,
	retriever Retriever,
	generator Generator,
	budgeter *budget.Budgeter,
	chats repository.ChatRepository,
	turns repository.ConversationTurnRepository,
	prompts PromptLoader,
	publisher TurnPublisher,
	cfg *config.ChatConfig,
) *Orchestrator {
	return &Orchestrator{
		registry:  registry,
		pipeline:  pipeline,
		retriever: retriever,
		generator: generator,
		budgeter:  budgeter,
		chats:     chats,
		turns:     turns,
		prompts:   prompts,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Answer 校验会话与流之后异步执行一轮问答，阶段事件推送到会话流
// 同步返回仅代表任务受理，回答通过 SSE 到达
func (o *Orchestrator) Answer(ctx context.Context, in QuestionInput) error {
	in.Query = strings.TrimSpace(in.Query)
	if in.Query == "" {
		return errors.New(errors.CodeInvalidParam, "query is empty")
	}

	h, err := o.registry.Get(in.SessionKey)
	if err != nil {
		return err
	}
	chatEnt, err := o.chats.GetByID(ctx, in.ChatID)
	if err != nil {
		return err
	}

	go o.run(h, chatEnt, in)
	return nil
}

func (o *Orchestrator) run(h *stream.Handle, chatEnt *entity.Chat, in QuestionInput) {
	// 生成上下文挂在流句柄上，取消流即中断上游调用
	ctx := logger.WithContext(h.Context(), logger.SessionIDKey, in.SessionKey)
	ctx = logger.WithContext(ctx, logger.ChatIDKey, in.ChatID)
	start := time.Now()

	o.pipeline.Emit(ctx, h, stream.StagePrepare, stream.PhaseStart, "")

	prompt, err := o.prompts.Load(ctx, o.promptCode(chatEnt, in))
	if err != nil {
		o.pipeline.Fail(ctx, h, err)
		return
	}

	history, err := o.turns.ListRecent(ctx, chatEnt.ID, o.cfg.MultiturnTurns*2)
	if err != nil {
		o.pipeline.Fail(ctx, h, errors.Wrap(err, errors.CodeDatabaseError, "load history failed"))
		return
	}

	docs, err := o.retriever.Retrieve(ctx, in.Collection, in.Query)
	if err != nil {
		o.pipeline.Fail(ctx, h, err)
		return
	}
	contextText := retrieval.BuildContext(docs)

	o.pipeline.Emit(ctx, h, stream.StagePrepare, stream.PhaseDone, "")

	systemPrompt := buildSystemPrompt(prompt.Content, chatEnt.State, contextText)
	maxOut, err := o.budgeter.MaxOutputTokens(ctx, budget.Input{
		SystemPrompt: systemPrompt,
		Query:        in.Query,
		History:      historyTexts(history),
	})
	if err != nil && !isBudgetExhausted(err) {
		o.pipeline.Fail(ctx, h, err)
		return
	}
	// 预算耗尽按最小输出降级继续，MaxOutputTokens 已经给出下限值

	answer, usageMsg, ok := newGenerationLoop(o.pipeline, o.generator).run(ctx, h, buildMessages(systemPrompt, history, in.Query), llmgw.Options{
		MaxTokens:   maxOut,
		Temperature: prompt.Temperature,
		TopP:        prompt.TopP,
	})
	if !ok {
		return
	}

	// 流拆除会取消句柄上下文，落库与事件发布换用不随之取消的上下文
	persistCtx := context.WithoutCancel(ctx)

	o.pipeline.CloseGeneration(ctx, h)
	o.pipeline.Emit(ctx, h, stream.StageReference, stream.PhaseDone, referencePayload(docs))
	o.pipeline.Disconnect(ctx, h)

	if h.Cancelled() {
		return
	}
	o.persistTurn(persistCtx, chatEnt, in, answer, docs, usageMsg, time.Since(start))
}

func (o *Orchestrator) promptCode(chatEnt *entity.Chat, in QuestionInput) string {
	if in.PromptCode != "" {
		return in.PromptCode
	}
	if chatEnt.PromptCode != "" {
		return chatEnt.PromptCode
	}
	return o.cfg.DefaultPromptCode
}

// persistTurn 落库问答两条消息并发布轮次完成事件，失败只记日志不回滚流
func (o *Orchestrator) persistTurn(ctx context.Context, chatEnt *entity.Chat, in QuestionInput,
	answer string, docs []retrieval.Document, usageMsg *schema.Message, elapsed time.Duration) {

	if err := o.turns.Create(ctx, entity.NewConversationTurn(chatEnt.ID, entity.RoleUser, in.Query, nil)); err != nil {
		logger.Error(ctx, "failed to persist user turn", err)
		return
	}
	meta, _ := json.Marshal(map[string]any{"references": docs})
	if err := o.turns.Create(ctx, entity.NewConversationTurn(chatEnt.ID, entity.RoleAssistant, answer, meta)); err != nil {
		logger.Error(ctx, "failed to persist assistant turn", err)
		return
	}

	if o.publisher == nil {
		return
	}
	evt := &messaging.TurnCompletedMessage{
		ChatID:         chatEnt.ID,
		SessionKey:     in.SessionKey,
		Question:       in.Query,
		Answer:         answer,
		ReferenceCount: len(docs),
		DurationMillis: elapsed.Milliseconds(),
	}
	if usageMsg != nil && usageMsg.ResponseMeta != nil && usageMsg.ResponseMeta.Usage != nil {
		evt.PromptTokens = usageMsg.ResponseMeta.Usage.PromptTokens
		evt.CompletionTokens = usageMsg.ResponseMeta.Usage.CompletionTokens
	}
	if _, err := o.publisher.PublishTurnCompleted(ctx, evt); err != nil {
		logger.Error(ctx, "failed to publish turn completed", err)
	}
}

// referencePayload 引用列表序列化为紧凑 JSON，作为 reference-done 的内容
func referencePayload(docs []retrieval.Document) string {
	if len(docs) == 0 {
		return "[]"
	}
	type ref struct {
		ID    string  `json:"id"`
		Title string  `json:"title,omitempty"`
		Score float64 `json:"score"`
	}
	refs := make([]ref, 0, len(docs))
	for _, doc := range docs {
		refs = append(refs, ref{ID: doc.ID, Title: doc.Title, Score: doc.Score})
	}
	data, err := json.Marshal(refs)
	if err != nil {
		return "[]"
	}
	return string(data)
}
