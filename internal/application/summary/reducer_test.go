package summary

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genai-chat-api/internal/config"
	"genai-chat-api/pkg/errors"
	"genai-chat-api/pkg/metrics"
)

// wordTokenizer 以空白分词计数，测试用的确定性实现
type wordTokenizer struct{}

func (wordTokenizer) Count(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return len(strings.Fields(text))
}

func (w wordTokenizer) Encode(text string) []int {
	words := strings.Fields(text)
	ids := make([]int, len(words))
	for i := range words {
		ids[i] = i
	}
	return ids
}

func (wordTokenizer) Decode(tokens []int) string {
	words := make([]string, len(tokens))
	for i, id := range tokens {
		words[i] = fmt.Sprintf("w%d", id)
	}
	return strings.Join(words, " ")
}

// fakeGenerator 回显输入并记录并发度
type fakeGenerator struct {
	mu       sync.Mutex
	calls    []string
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	err      error
}

func (f *fakeGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	cur := f.inFlight.Add(1)
	for {
		seen := f.maxSeen.Load()
		if cur <= seen || f.maxSeen.CompareAndSwap(seen, cur) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	f.inFlight.Add(-1)

	f.mu.Lock()
	f.calls = append(f.calls, user)
	f.mu.Unlock()

	if f.err != nil {
		return "", f.err
	}
	if system == reduceSystemPrompt {
		return "merged: " + user, nil
	}
	return "sum(" + strings.Fields(user)[0] + ")", nil
}

func testSummaryConfig() *config.SummaryConfig {
	return &config.SummaryConfig{
		ChunkTokenSize:   10,
		OverlapTokenSize: 2,
		BatchSize:        2,
		MaxChunks:        20,
	}
}

func words(n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(out, " ")
}

func TestSplitByTokensOverlap(t *testing.T) {
	chunks := splitByTokens(wordTokenizer{}, words(25), 10, 2)

	// 步长 8：[0,10) [8,18) [16,25)
	require.Len(t, chunks, 3)
	assert.True(t, strings.HasPrefix(chunks[0], "w0 "))
	assert.True(t, strings.HasSuffix(chunks[0], " w9"))
	assert.True(t, strings.HasPrefix(chunks[1], "w8 "))
	assert.True(t, strings.HasSuffix(chunks[1], " w17"))
	assert.True(t, strings.HasPrefix(chunks[2], "w16 "))
	assert.True(t, strings.HasSuffix(chunks[2], " w24"))
}

func TestSplitByTokensShortText(t *testing.T) {
	chunks := splitByTokens(wordTokenizer{}, words(5), 10, 2)
	assert.Equal(t, []string{words(5)}, chunks)

	assert.Nil(t, splitByTokens(wordTokenizer{}, "   ", 10, 2))
}

func TestSummarizeSingleChunk(t *testing.T) {
	gen := &fakeGenerator{}
	r := NewReducer(gen, wordTokenizer{}, testSummaryConfig())

	res, err := r.Summarize(context.Background(), words(5))
	require.NoError(t, err)
	assert.Equal(t, 1, res.ChunkCount)
	assert.False(t, res.Truncated)
	assert.Equal(t, "sum(w0)", res.Text)
}

func TestSummarizeMapReducePreservesOrder(t *testing.T) {
	gen := &fakeGenerator{}
	r := NewReducer(gen, wordTokenizer{}, testSummaryConfig())

	res, err := r.Summarize(context.Background(), words(25))
	require.NoError(t, err)
	assert.Equal(t, 3, res.ChunkCount)
	assert.False(t, res.Truncated)

	// 归并输入按原文顺序排列分段摘要
	assert.Equal(t,
		"merged: [第1段]\nsum(w0)\n\n[第2段]\nsum(w8)\n\n[第3段]\nsum(w16)",
		res.Text)
}

func TestSummarizeRespectsBatchLimit(t *testing.T) {
	gen := &fakeGenerator{}
	cfg := testSummaryConfig()
	r := NewReducer(gen, wordTokenizer{}, cfg)

	_, err := r.Summarize(context.Background(), words(80))
	require.NoError(t, err)
	assert.LessOrEqual(t, gen.maxSeen.Load(), int32(cfg.BatchSize))
}

func histogramSampleCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, h.Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func TestSummarizeObservesChunkCount(t *testing.T) {
	gen := &fakeGenerator{}
	r := NewReducer(gen, wordTokenizer{}, testSummaryConfig())

	before := histogramSampleCount(t, metrics.SummaryChunks)
	res, err := r.Summarize(context.Background(), words(25))
	require.NoError(t, err)
	require.Equal(t, 3, res.ChunkCount)
	assert.Equal(t, before+1, histogramSampleCount(t, metrics.SummaryChunks))
}

func TestSummarizeTruncatesAtMaxChunks(t *testing.T) {
	gen := &fakeGenerator{}
	cfg := testSummaryConfig()
	cfg.MaxChunks = 2
	r := NewReducer(gen, wordTokenizer{}, cfg)

	res, err := r.Summarize(context.Background(), words(40))
	require.NoError(t, err)
	assert.Equal(t, 2, res.ChunkCount)
	assert.True(t, res.Truncated)
}

func TestSummarizeEmptyText(t *testing.T) {
	r := NewReducer(&fakeGenerator{}, wordTokenizer{}, testSummaryConfig())
	_, err := r.Summarize(context.Background(), "  ")
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidParam, errors.AsAppError(err).Code)
}

func TestSummarizeGeneratorFailure(t *testing.T) {
	gen := &fakeGenerator{err: assert.AnError}
	r := NewReducer(gen, wordTokenizer{}, testSummaryConfig())

	_, err := r.Summarize(context.Background(), words(25))
	require.Error(t, err)
	assert.Equal(t, errors.CodeGenerationFailed, errors.AsAppError(err).Code)
}
