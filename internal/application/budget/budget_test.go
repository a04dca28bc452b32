package budget

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genai-chat-api/internal/config"
	"genai-chat-api/pkg/errors"
)

// wordTokenizer 以空白分词计数，测试用的确定性实现
type wordTokenizer struct{}

func (wordTokenizer) Count(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return len(strings.Fields(text))
}

func (w wordTokenizer) Encode(text string) []int { return make([]int, w.Count(text)) }
func (wordTokenizer) Decode(tokens []int) string { return strings.TrimSpace(strings.Repeat("w ", len(tokens))) }

func tokens(n int) string {
	return strings.TrimSpace(strings.Repeat("w ", n))
}

func testLLMConfig() *config.LLMConfig {
	return &config.LLMConfig{
		ModelContextLimit:     4096,
		InternalTokenOverhead: 50,
		SafetyMargin:          100,
		MinOutputTokens:       64,
		MaxOutputTokens:       2048,
	}
}

func TestMaxOutputTokensRemaining(t *testing.T) {
	b := NewBudgeter(wordTokenizer{}, testLLMConfig())

	// 4096 - (2000+500+300+200) - 50 - 100 = 946
	got, err := b.MaxOutputTokens(context.Background(), Input{
		SystemPrompt: tokens(2000),
		Query:        tokens(500),
		State:        tokens(300),
		Context:      tokens(200),
	})
	require.NoError(t, err)
	assert.Equal(t, 946, got)
}

func TestMaxOutputTokensClampsToMax(t *testing.T) {
	b := NewBudgeter(wordTokenizer{}, testLLMConfig())

	got, err := b.MaxOutputTokens(context.Background(), Input{Query: tokens(10)})
	require.NoError(t, err)
	assert.Equal(t, 2048, got)
}

func TestMaxOutputTokensHistoryCounts(t *testing.T) {
	b := NewBudgeter(wordTokenizer{}, testLLMConfig())

	got, err := b.MaxOutputTokens(context.Background(), Input{
		Query:   tokens(500),
		History: []string{tokens(1000), tokens(1000)},
	})
	require.NoError(t, err)
	// 4096 - 2500 - 50 - 100 = 1446
	assert.Equal(t, 1446, got)
}

func TestMaxOutputTokensExhausted(t *testing.T) {
	b := NewBudgeter(wordTokenizer{}, testLLMConfig())

	got, err := b.MaxOutputTokens(context.Background(), Input{
		SystemPrompt: tokens(4000),
		Context:      tokens(500),
	})
	assert.ErrorIs(t, err, errors.ErrBudgetExhausted)
	assert.Equal(t, 64, got)
}
