package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genai-chat-api/internal/config"
	"genai-chat-api/pkg/errors"
)

type fakeSearcher struct {
	docs       []Document
	err        error
	topK       int
	collection string
}

func (f *fakeSearcher) Search(ctx context.Context, collection, query string, topK int) ([]Document, error) {
	f.topK = topK
	f.collection = collection
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

// passReranker 原样返回候选，分数按给定表覆盖
type passReranker struct {
	scores map[string]float64
	err    error
	called bool
	seen   int
}

func (f *passReranker) Rerank(ctx context.Context, query string, docs []Document) ([]Document, error) {
	f.called = true
	f.seen = len(docs)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]Document, len(docs))
	copy(out, docs)
	for i := range out {
		if score, ok := f.scores[out[i].ID]; ok {
			out[i].Score = score
		}
	}
	return out, nil
}

func testSearchConfig() (*config.SearchConfig, *config.RerankerConfig) {
	return &config.SearchConfig{KeywordTopK: 5, VectorTopK: 5},
		&config.RerankerConfig{TopK: 3, ScoreMin: 0.05}
}

func TestRetrieveFusesAndReranks(t *testing.T) {
	keyword := &fakeSearcher{docs: []Document{
		{ID: "a", Content: "alpha"},
		{ID: "b", Content: "beta"},
	}}
	vector := &fakeSearcher{docs: []Document{
		{ID: "b", Content: "beta-vec"}, // 与关键词路重复，去重保留关键词版本
		{ID: "c", Content: "gamma"},
		{ID: "d", Content: "delta"},
		{ID: "e", Content: "epsilon"},
	}}
	reranker := &passReranker{scores: map[string]float64{
		"a": 0.2, "b": 0.9, "c": 0.01, "d": 0.5, "e": 0.3,
	}}
	searchCfg, rerankCfg := testSearchConfig()

	f := NewFusion(keyword, vector, reranker, searchCfg, rerankCfg)
	docs, err := f.Retrieve(context.Background(), "kb", "question")
	require.NoError(t, err)

	// c 低于分数线被过滤，剩余按分数降序取前 3
	require.Len(t, docs, 3)
	assert.Equal(t, "b", docs[0].ID)
	assert.Equal(t, "beta", docs[0].Content)
	assert.Equal(t, "d", docs[1].ID)
	assert.Equal(t, "e", docs[2].ID)

	assert.Equal(t, 5, keyword.topK)
	assert.Equal(t, 5, vector.topK)
	assert.Equal(t, "kb", keyword.collection)
	assert.Equal(t, "kb", vector.collection)
	assert.Equal(t, 5, reranker.seen) // 去重后 a b c d e
}

func TestRetrieveFailsWhenBranchFails(t *testing.T) {
	keyword := &fakeSearcher{err: assert.AnError}
	vector := &fakeSearcher{docs: []Document{{ID: "c", Content: "gamma"}}}
	reranker := &passReranker{}
	searchCfg, rerankCfg := testSearchConfig()

	f := NewFusion(keyword, vector, reranker, searchCfg, rerankCfg)
	_, err := f.Retrieve(context.Background(), "kb", "question")

	require.Error(t, err)
	assert.Equal(t, errors.CodeRetrievalFailed, errors.AsAppError(err).Code)
	assert.False(t, reranker.called)
}

func TestRetrieveRerankFailure(t *testing.T) {
	keyword := &fakeSearcher{docs: []Document{{ID: "a", Content: "alpha"}}}
	vector := &fakeSearcher{}
	reranker := &passReranker{err: assert.AnError}
	searchCfg, rerankCfg := testSearchConfig()

	f := NewFusion(keyword, vector, reranker, searchCfg, rerankCfg)
	_, err := f.Retrieve(context.Background(), "kb", "question")

	require.Error(t, err)
	assert.Equal(t, errors.CodeRerankFailed, errors.AsAppError(err).Code)
}

func TestRetrieveEmptyCandidatesSkipsRerank(t *testing.T) {
	reranker := &passReranker{}
	searchCfg, rerankCfg := testSearchConfig()

	f := NewFusion(&fakeSearcher{}, &fakeSearcher{}, reranker, searchCfg, rerankCfg)
	docs, err := f.Retrieve(context.Background(), "kb", "question")

	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.False(t, reranker.called)
}

func TestRetrieveEmptyQuery(t *testing.T) {
	searchCfg, rerankCfg := testSearchConfig()
	f := NewFusion(&fakeSearcher{}, &fakeSearcher{}, &passReranker{}, searchCfg, rerankCfg)

	_, err := f.Retrieve(context.Background(), "kb", "   ")
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidParam, errors.AsAppError(err).Code)
}

func TestBuildContext(t *testing.T) {
	got := BuildContext([]Document{
		{Content: "one"},
		{Content: "  "},
		{Content: "two"},
	})
	assert.Equal(t, "one\ntwo", got)
}
