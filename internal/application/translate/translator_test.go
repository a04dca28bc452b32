package translate

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genai-chat-api/internal/domain/entity"
	"genai-chat-api/internal/domain/repository"
	"genai-chat-api/pkg/errors"
)

type fakeGenerator struct {
	gotSystem string
	gotUser   string
	out       string
	err       error
}

func (f *fakeGenerator) Generate(_ context.Context, system, user string) (string, error) {
	f.gotSystem = system
	f.gotUser = user
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

type fakeTurnRepo struct {
	mu      sync.Mutex
	created []*entity.ConversationTurn
}

func (f *fakeTurnRepo) Create(ctx context.Context, turn *entity.ConversationTurn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, turn)
	return nil
}

func (f *fakeTurnRepo) ListRecent(context.Context, string, int) ([]*entity.ConversationTurn, error) {
	return nil, nil
}

func (f *fakeTurnRepo) ListByChat(context.Context, string, repository.Pagination) (*repository.PagedResult[*entity.ConversationTurn], error) {
	return nil, nil
}

func TestTranslateBuildsPromptAndPersists(t *testing.T) {
	gen := &fakeGenerator{out: "  Hello world  "}
	turns := &fakeTurnRepo{}
	tr := NewTranslator(gen, turns)

	out, err := tr.Translate(context.Background(), Input{
		ChatID:     "chat-1",
		SourceLang: "zh",
		TargetLang: "en",
		Text:       "你好，世界",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello world", out)

	assert.Equal(t, translateSystemPrompt, gen.gotSystem)
	assert.True(t, strings.Contains(gen.gotUser, "从中文翻译成英语"))
	assert.True(t, strings.Contains(gen.gotUser, "[原文]\n你好，世界"))

	require.Len(t, turns.created, 2)
	assert.Equal(t, entity.RoleUser, turns.created[0].Role)
	assert.Equal(t, "你好，世界", turns.created[0].Content)
	assert.Equal(t, entity.RoleAssistant, turns.created[1].Role)
	assert.Equal(t, "Hello world", turns.created[1].Content)
}

func TestTranslateWithoutChatSkipsPersistence(t *testing.T) {
	gen := &fakeGenerator{out: "done"}
	turns := &fakeTurnRepo{}
	tr := NewTranslator(gen, turns)

	out, err := tr.Translate(context.Background(), Input{SourceLang: "ja", TargetLang: "ko", Text: "テスト"})
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.Empty(t, turns.created)
}

func TestTranslateValidation(t *testing.T) {
	tr := NewTranslator(&fakeGenerator{out: "x"}, nil)

	_, err := tr.Translate(context.Background(), Input{SourceLang: "zh", TargetLang: "en", Text: "  "})
	assert.Equal(t, errors.CodeInvalidParam, errors.AsAppError(err).Code)

	_, err = tr.Translate(context.Background(), Input{SourceLang: "fr", TargetLang: "en", Text: "bonjour"})
	assert.Equal(t, errors.CodeInvalidParam, errors.AsAppError(err).Code)

	_, err = tr.Translate(context.Background(), Input{SourceLang: "zh", TargetLang: "xx", Text: "你好"})
	assert.Equal(t, errors.CodeInvalidParam, errors.AsAppError(err).Code)
}

func TestTranslateGeneratorFailure(t *testing.T) {
	tr := NewTranslator(&fakeGenerator{err: assert.AnError}, nil)

	_, err := tr.Translate(context.Background(), Input{SourceLang: "zh", TargetLang: "en", Text: "你好"})
	require.Error(t, err)
	assert.Equal(t, errors.CodeGenerationFailed, errors.AsAppError(err).Code)
}

func TestLanguagesIsClosedSet(t *testing.T) {
	tr := NewTranslator(&fakeGenerator{}, nil)

	langs := tr.Languages()
	require.Len(t, langs, 4)

	// 返回副本，调用方修改不影响语种表
	langs[0].Name = "mutated"
	assert.Equal(t, "中文", tr.Languages()[0].Name)
}
