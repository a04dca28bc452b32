package chat

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genai-chat-api/internal/application/budget"
	"genai-chat-api/internal/application/retrieval"
	"genai-chat-api/internal/application/stream"
	"genai-chat-api/internal/config"
	"genai-chat-api/internal/domain/entity"
	"genai-chat-api/internal/domain/repository"
	llmgw "genai-chat-api/internal/infrastructure/gateway/llm"
	"genai-chat-api/internal/infrastructure/messaging"
	"genai-chat-api/pkg/errors"
)

type wordTokenizer struct{}

func (wordTokenizer) Count(text string) int { return len(strings.Fields(text)) }

func (wordTokenizer) Encode(text string) []int {
	return make([]int, len(strings.Fields(text)))
}

func (wordTokenizer) Decode(tokens []int) string {
	return strings.TrimSpace(strings.Repeat("w ", len(tokens)))
}

type fakeRetriever struct {
	docs       []retrieval.Document
	err        error
	collection string
	query      string
}

func (f *fakeRetriever) Retrieve(_ context.Context, collection, query string) ([]retrieval.Document, error) {
	f.collection, f.query = collection, query
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

// fakeGenerator 用 schema.Pipe 构造模型流，可选择在片段后注入错误
type fakeGenerator struct {
	chunks    []*schema.Message
	streamErr error
	openErr   error

	gotMessages []*schema.Message
	gotOpts     llmgw.Options
	usage       *schema.Message
}

func (f *fakeGenerator) Stream(_ context.Context, messages []*schema.Message, opts llmgw.Options) (*schema.StreamReader[*schema.Message], error) {
	f.gotMessages, f.gotOpts = messages, opts
	if f.openErr != nil {
		return nil, f.openErr
	}
	sr, sw := schema.Pipe[*schema.Message](len(f.chunks) + 1)
	go func() {
		defer sw.Close()
		for _, msg := range f.chunks {
			sw.Send(msg, nil)
		}
		if f.streamErr != nil {
			sw.Send(nil, f.streamErr)
		}
	}()
	return sr, nil
}

func (f *fakeGenerator) RecordUsage(msg *schema.Message) { f.usage = msg }

type fakeChatRepo struct {
	chat *entity.Chat
}

func (f *fakeChatRepo) Create(context.Context, *entity.Chat) error { return nil }

func (f *fakeChatRepo) GetByID(_ context.Context, id string) (*entity.Chat, error) {
	if f.chat == nil || f.chat.ID != id {
		return nil, errors.ErrChatNotFound
	}
	return f.chat, nil
}

func (f *fakeChatRepo) Update(context.Context, *entity.Chat) error { return nil }

func (f *fakeChatRepo) List(context.Context, repository.Pagination) (*repository.PagedResult[*entity.Chat], error) {
	return nil, nil
}

type fakeTurnRepo struct {
	mu      sync.Mutex
	history []*entity.ConversationTurn
	created []*entity.ConversationTurn
}

// Create 与真实仓储一样尊重上下文取消：流拆除后的落库必须换用未取消的上下文
func (f *fakeTurnRepo) Create(ctx context.Context, turn *entity.ConversationTurn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, turn)
	return nil
}

func (f *fakeTurnRepo) ListRecent(_ context.Context, _ string, limit int) ([]*entity.ConversationTurn, error) {
	if len(f.history) > limit {
		return f.history[len(f.history)-limit:], nil
	}
	return f.history, nil
}

func (f *fakeTurnRepo) ListByChat(context.Context, string, repository.Pagination) (*repository.PagedResult[*entity.ConversationTurn], error) {
	return nil, nil
}

func (f *fakeTurnRepo) snapshot() []*entity.ConversationTurn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*entity.ConversationTurn(nil), f.created...)
}

type fakePromptLoader struct {
	prompt  *entity.Prompt
	gotCode string
}

func (f *fakePromptLoader) Load(_ context.Context, code string) (*entity.Prompt, error) {
	f.gotCode = code
	if f.prompt == nil {
		return nil, errors.ErrPromptNotFound
	}
	return f.prompt, nil
}

type fakePublisher struct {
	msg  *messaging.TurnCompletedMessage
	done chan struct{}
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{done: make(chan struct{})}
}

func (f *fakePublisher) PublishTurnCompleted(ctx context.Context, msg *messaging.TurnCompletedMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.msg = msg
	close(f.done)
	return "1-0", nil
}

func (f *fakePublisher) wait(t *testing.T) {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(2 * time.Second):
		t.Fatal("turn completed event not published")
	}
}

type orchestratorFixture struct {
	registry  *stream.Registry
	orch      *Orchestrator
	retriever *fakeRetriever
	generator *fakeGenerator
	turns     *fakeTurnRepo
	prompts   *fakePromptLoader
	publisher *fakePublisher
}

func newOrchestratorFixture(llmCfg *config.LLMConfig) *orchestratorFixture {
	if llmCfg == nil {
		llmCfg = &config.LLMConfig{
			ModelContextLimit:     4096,
			InternalTokenOverhead: 10,
			SafetyMargin:          10,
			MinOutputTokens:       16,
			MaxOutputTokens:       1024,
		}
	}
	registry := stream.NewRegistry(64)
	f := &orchestratorFixture{
		registry: registry,
		retriever: &fakeRetriever{docs: []retrieval.Document{
			{ID: "d1", Title: "向量检索", Content: "向量检索原理", Score: 0.92, Source: "vector"},
			{ID: "d2", Title: "关键词检索", Content: "关键词检索原理", Score: 0.81, Source: "keyword"},
		}},
		generator: &fakeGenerator{chunks: []*schema.Message{
			{ReasoningContent: "先查"},
			{ReasoningContent: "资料"},
			{Content: "检索"},
			{Content: "分两路"},
			{ResponseMeta: &schema.ResponseMeta{Usage: &schema.TokenUsage{PromptTokens: 12, CompletionTokens: 34, TotalTokens: 46}}},
		}},
		turns:     &fakeTurnRepo{},
		prompts:   &fakePromptLoader{prompt: &entity.Prompt{Code: "PROM-001", Content: "你是知识库助手", Temperature: 0.7, TopP: 0.9}},
		publisher: newFakePublisher(),
	}
	f.orch = NewOrchestrator(
		registry,
		stream.NewPipeline(registry),
		f.retriever,
		f.generator,
		budget.NewBudgeter(wordTokenizer{}, llmCfg),
		&fakeChatRepo{chat: &entity.Chat{ID: "chat-1", PromptCode: "PROM-001", State: "用户偏好简体中文"}},
		f.turns,
		f.prompts,
		f.publisher,
		&config.ChatConfig{MultiturnTurns: 3, DefaultPromptCode: entity.DefaultPromptCode, StreamBuffer: 64},
	)
	return f
}

func drainEvents(h *stream.Handle) []stream.Event {
	var out []stream.Event
	for ev := range h.Events() {
		out = append(out, ev)
	}
	return out
}

func eventNames(events []stream.Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Name)
	}
	return out
}

func TestOrchestratorAnswerFullFlow(t *testing.T) {
	f := newOrchestratorFixture(nil)
	ctx := context.Background()

	h, err := f.registry.Create(ctx, "session-1")
	require.NoError(t, err)

	require.NoError(t, f.orch.Answer(ctx, QuestionInput{
		SessionKey: "session-1",
		ChatID:     "chat-1",
		Query:      "检索是怎么做的",
		Collection: "kb",
	}))

	events := drainEvents(h)
	assert.Equal(t, []string{
		"connect",
		"prepare-start", "prepare-done",
		"inference-start", "inference", "inference", "inference-done",
		"answer-start", "answer", "answer", "answer-done",
		"reference-done",
		"disconnect",
	}, eventNames(events))

	// 序号全程单调递增
	for i := 1; i < len(events); i++ {
		assert.Equal(t, events[i-1].Sequence+1, events[i].Sequence)
	}

	// 引用事件携带紧凑 JSON，且分数保留
	refEvent := events[len(events)-2]
	assert.JSONEq(t, `[{"id":"d1","title":"向量检索","score":0.92},{"id":"d2","title":"关键词检索","score":0.81}]`,
		strings.ReplaceAll(refEvent.Content, "&nbsp;", " "))

	assert.Equal(t, "kb", f.retriever.collection)
	assert.Equal(t, "PROM-001", f.prompts.gotCode)
	assert.Equal(t, 0.7, f.generator.gotOpts.Temperature)
	assert.Equal(t, 0.9, f.generator.gotOpts.TopP)

	// 系统提示词包含模板、会话状态与召回上下文
	require.NotEmpty(t, f.generator.gotMessages)
	system := f.generator.gotMessages[0].Content
	assert.Contains(t, system, "你是知识库助手")
	assert.Contains(t, system, "[会话状态]")
	assert.Contains(t, system, "向量检索原理")

	f.publisher.wait(t)
	assert.Equal(t, "chat-1", f.publisher.msg.ChatID)
	assert.Equal(t, "检索分两路", f.publisher.msg.Answer)
	assert.Equal(t, 2, f.publisher.msg.ReferenceCount)
	assert.Equal(t, 12, f.publisher.msg.PromptTokens)
	assert.Equal(t, 34, f.publisher.msg.CompletionTokens)

	created := f.turns.snapshot()
	require.Len(t, created, 2)
	assert.Equal(t, entity.RoleUser, created[0].Role)
	assert.Equal(t, "检索是怎么做的", created[0].Content)
	assert.Equal(t, entity.RoleAssistant, created[1].Role)
	assert.Equal(t, "检索分两路", created[1].Content)
	assert.Contains(t, string(created[1].Metadata), `"references"`)
}

func TestOrchestratorAnswerRetrievalFailure(t *testing.T) {
	f := newOrchestratorFixture(nil)
	f.retriever.err = errors.New(errors.CodeRetrievalFailed, "retrieval failed")
	ctx := context.Background()

	h, err := f.registry.Create(ctx, "session-1")
	require.NoError(t, err)

	require.NoError(t, f.orch.Answer(ctx, QuestionInput{
		SessionKey: "session-1",
		ChatID:     "chat-1",
		Query:      "问题",
	}))

	events := drainEvents(h)
	assert.Equal(t, []string{"connect", "prepare-start", "exception", "disconnect"}, eventNames(events))
	assert.Equal(t, "retrieval&nbsp;failed", events[2].Content)
	assert.Empty(t, f.turns.snapshot())
}

func TestOrchestratorAnswerMidStreamFailure(t *testing.T) {
	f := newOrchestratorFixture(nil)
	f.generator.chunks = []*schema.Message{{Content: "部分"}}
	f.generator.streamErr = errors.New(errors.CodeGenerationFailed, "upstream closed")
	ctx := context.Background()

	h, err := f.registry.Create(ctx, "session-1")
	require.NoError(t, err)

	require.NoError(t, f.orch.Answer(ctx, QuestionInput{
		SessionKey: "session-1",
		ChatID:     "chat-1",
		Query:      "问题",
	}))

	events := drainEvents(h)
	assert.Equal(t, []string{
		"connect", "prepare-start", "prepare-done",
		"answer-start", "answer",
		"exception", "disconnect",
	}, eventNames(events))
	// 半途失败不落库
	assert.Empty(t, f.turns.snapshot())
}

func TestOrchestratorAnswerBudgetExhaustedDegrades(t *testing.T) {
	// 上下文窗口刻意挤满，预算只剩下限值，流程仍应走完
	f := newOrchestratorFixture(&config.LLMConfig{
		ModelContextLimit:     24,
		InternalTokenOverhead: 8,
		SafetyMargin:          8,
		MinOutputTokens:       16,
		MaxOutputTokens:       1024,
	})
	ctx := context.Background()

	h, err := f.registry.Create(ctx, "session-1")
	require.NoError(t, err)

	require.NoError(t, f.orch.Answer(ctx, QuestionInput{
		SessionKey: "session-1",
		ChatID:     "chat-1",
		Query:      "问题",
	}))

	events := drainEvents(h)
	assert.Equal(t, "disconnect", events[len(events)-1].Name)
	assert.NotContains(t, eventNames(events), "exception")
	assert.Equal(t, 16, f.generator.gotOpts.MaxTokens)
}

func TestOrchestratorAnswerValidation(t *testing.T) {
	f := newOrchestratorFixture(nil)
	ctx := context.Background()

	err := f.orch.Answer(ctx, QuestionInput{SessionKey: "session-1", ChatID: "chat-1", Query: "  "})
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidParam, errors.AsAppError(err).Code)

	// 会话流不存在时同步报错
	err = f.orch.Answer(ctx, QuestionInput{SessionKey: "missing", ChatID: "chat-1", Query: "问题"})
	assert.ErrorIs(t, err, errors.ErrStreamNotFound)

	_, err = f.registry.Create(ctx, "session-1")
	require.NoError(t, err)
	err = f.orch.Answer(ctx, QuestionInput{SessionKey: "session-1", ChatID: "missing", Query: "问题"})
	assert.ErrorIs(t, err, errors.ErrChatNotFound)
}

func TestOrchestratorAnswerCancelMidStream(t *testing.T) {
	f := newOrchestratorFixture(nil)
	ctx := context.Background()

	h, err := f.registry.Create(ctx, "session-1")
	require.NoError(t, err)

	// 流在生成前被取消：后续阶段事件全部静默丢弃，且不落库
	f.registry.Cancel(ctx, "session-1")
	f.orch.run(h, &entity.Chat{ID: "chat-1"}, QuestionInput{
		SessionKey: "session-1",
		ChatID:     "chat-1",
		Query:      "问题",
	})

	events := drainEvents(h)
	assert.Equal(t, []string{"connect"}, eventNames(events))
	assert.Empty(t, f.turns.snapshot())
}
