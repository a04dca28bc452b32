package chat

import (
	"context"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genai-chat-api/internal/application/budget"
	"genai-chat-api/internal/application/stream"
	"genai-chat-api/internal/application/summary"
	"genai-chat-api/internal/config"
	"genai-chat-api/pkg/errors"
)

// syncGenerator 同步摘要生成，复用在 Reducer 的 map/reduce 调用上
type syncGenerator struct{}

func (syncGenerator) Generate(_ context.Context, _ string, _ string) (string, error) {
	return "材料要点", nil
}

func newReporterFixture() (*stream.Registry, *Reporter, *fakeGenerator, *fakeTurnRepo) {
	registry := stream.NewRegistry(64)
	gen := &fakeGenerator{chunks: []*schema.Message{
		{Content: "结论："},
		{Content: "材料可信"},
	}}
	turns := &fakeTurnRepo{}
	reducer := summary.NewReducer(syncGenerator{}, wordTokenizer{}, &config.SummaryConfig{
		ChunkTokenSize:   8,
		OverlapTokenSize: 2,
		BatchSize:        2,
		MaxChunks:        10,
	})
	budgeter := budget.NewBudgeter(wordTokenizer{}, &config.LLMConfig{
		ModelContextLimit:     4096,
		InternalTokenOverhead: 10,
		SafetyMargin:          10,
		MinOutputTokens:       16,
		MaxOutputTokens:       1024,
	})
	r := NewReporter(registry, stream.NewPipeline(registry), reducer, gen, budgeter, turns)
	return registry, r, gen, turns
}

func TestReporterGenerateFullFlow(t *testing.T) {
	registry, r, gen, turns := newReporterFixture()
	ctx := context.Background()

	h, err := registry.Create(ctx, "session-1")
	require.NoError(t, err)

	require.NoError(t, r.Generate(ctx, ReportInput{
		SessionKey: "session-1",
		ChatID:     "chat-1",
		Title:      "季度复盘",
		Context:    "内部评审用",
		Content:    "a b c d e f g h i j k l m n o p",
	}))

	events := drainEvents(h)
	names := eventNames(events)
	assert.Equal(t, "connect", names[0])
	assert.Equal(t, []string{
		"prepare-start", "prepare", "prepare-done",
		"answer-start", "answer", "answer", "answer-done",
		"disconnect",
	}, names[1:])

	// 报告提示词由标题、背景与压缩后的材料组成
	require.Len(t, gen.gotMessages, 2)
	user := gen.gotMessages[1].Content
	assert.Contains(t, user, "[报告标题]")
	assert.Contains(t, user, "季度复盘")
	assert.Contains(t, user, "[背景信息]")
	assert.Contains(t, user, "[材料摘要]")

	// 报告全文落为一条 assistant 轮次，落库在流收尾之后异步完成
	require.Eventually(t, func() bool { return len(turns.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "结论：材料可信", turns.snapshot()[0].Content)
}

func TestReporterGenerateEmptyContent(t *testing.T) {
	_, r, _, _ := newReporterFixture()

	err := r.Generate(context.Background(), ReportInput{SessionKey: "session-1", Content: "  "})
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidParam, errors.AsAppError(err).Code)
}

func TestReporterGenerateUnknownSession(t *testing.T) {
	_, r, _, _ := newReporterFixture()

	err := r.Generate(context.Background(), ReportInput{SessionKey: "missing", Content: "材料"})
	assert.ErrorIs(t, err, errors.ErrStreamNotFound)
}
