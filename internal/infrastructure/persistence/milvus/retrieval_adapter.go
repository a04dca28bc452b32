package milvus

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/embedding"

	"genai-chat-api/internal/application/retrieval"
)

// VectorSearcher 向量召回适配器：查询向量化后走 Milvus 检索
// 实现 retrieval.VectorSearcher
type VectorSearcher struct {
	embedder embedding.Embedder
	repo     *Repository
}

func NewVectorSearcher(embedder embedding.Embedder, repo *Repository) *VectorSearcher {
	return &VectorSearcher{embedder: embedder, repo: repo}
}

var _ retrieval.VectorSearcher = (*VectorSearcher)(nil)

func (s *VectorSearcher) Search(ctx context.Context, collection, query string, topK int) ([]retrieval.Document, error) {
	if s == nil || s.embedder == nil || s.repo == nil {
		return nil, fmt.Errorf("vector searcher not configured")
	}

	vectors, err := s.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}
	queryVector := make([]float32, len(vectors[0]))
	for i, v := range vectors[0] {
		queryVector[i] = float32(v)
	}

	results, err := s.repo.SearchChunks(ctx, &SearchParams{
		QueryVector: queryVector,
		TopK:        topK,
		Collection:  collection,
	})
	if err != nil {
		return nil, err
	}

	docs := make([]retrieval.Document, 0, len(results))
	for _, res := range results {
		docs = append(docs, retrieval.Document{
			ID:      res.ID,
			Title:   res.Title,
			Content: res.Content,
			Score:   float64(res.Score),
			Source:  "vector",
		})
	}
	return docs, nil
}
