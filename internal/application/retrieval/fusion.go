package retrieval

import (
	"context"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"genai-chat-api/internal/config"
	"genai-chat-api/pkg/errors"
	"genai-chat-api/pkg/logger"
	"genai-chat-api/pkg/metrics"
)

// Fusion 双路召回融合器
// 关键词与向量两路并发召回，任一路失败即整体失败，随后重排过滤取 TopK
type Fusion struct {
	keyword  KeywordSearcher
	vector   VectorSearcher
	reranker Reranker

	searchCfg *config.SearchConfig
	rerankCfg *config.RerankerConfig
}

// NewFusion 创建融合器
func NewFusion(keyword KeywordSearcher, vector VectorSearcher, reranker Reranker,
	searchCfg *config.SearchConfig, rerankCfg *config.RerankerConfig) *Fusion {
	return &Fusion{
		keyword:   keyword,
		vector:    vector,
		reranker:  reranker,
		searchCfg: searchCfg,
		rerankCfg: rerankCfg,
	}
}

// Retrieve 对指定知识库集合执行一次完整召回：
// 并发双路 -> 按 ID 去重 -> 重排 -> 过滤低分 -> TopK
func (f *Fusion) Retrieve(ctx context.Context, collection, query string) ([]Document, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New(errors.CodeInvalidParam, "query is empty")
	}

	if f.searchCfg.FuseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.searchCfg.FuseTimeout)
		defer cancel()
	}

	var keywordDocs, vectorDocs []Document
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		keywordDocs, err = f.searchBranch(gctx, "keyword", collection, query, f.searchCfg.KeywordTopK, f.keyword.Search)
		return err
	})
	g.Go(func() error {
		var err error
		vectorDocs, err = f.searchBranch(gctx, "vector", collection, query, f.searchCfg.VectorTopK, f.vector.Search)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	candidates := dedupe(append(keywordDocs, vectorDocs...))
	if len(candidates) == 0 {
		return nil, nil
	}

	ranked, err := f.reranker.Rerank(ctx, query, candidates)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeRerankFailed, "rerank failed")
	}

	kept := ranked[:0]
	for _, doc := range ranked {
		if doc.Score >= f.rerankCfg.ScoreMin {
			kept = append(kept, doc)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	if f.rerankCfg.TopK > 0 && len(kept) > f.rerankCfg.TopK {
		kept = kept[:f.rerankCfg.TopK]
	}

	logger.Debug(ctx, "retrieval fused",
		"keyword", len(keywordDocs), "vector", len(vectorDocs), "kept", len(kept))
	return kept, nil
}

type searchFunc func(ctx context.Context, collection, query string, topK int) ([]Document, error)

func (f *Fusion) searchBranch(ctx context.Context, branch, collection, query string, topK int, search searchFunc) ([]Document, error) {
	start := time.Now()
	docs, err := search(ctx, collection, query, topK)
	metrics.RetrievalDuration.WithLabelValues(branch).Observe(time.Since(start).Seconds())
	if err != nil {
		logger.Error(ctx, "retrieval branch failed", err, "branch", branch)
		return nil, errors.Wrap(err, errors.CodeRetrievalFailed, branch+" search failed")
	}
	metrics.RetrievalDocuments.WithLabelValues(branch).Observe(float64(len(docs)))
	return docs, nil
}

// dedupe 按文档 ID 去重，保留先出现的一条（关键词路优先）
func dedupe(docs []Document) []Document {
	seen := make(map[string]struct{}, len(docs))
	out := docs[:0]
	for _, doc := range docs {
		if doc.ID != "" {
			if _, ok := seen[doc.ID]; ok {
				continue
			}
			seen[doc.ID] = struct{}{}
		}
		out = append(out, doc)
	}
	return out
}

// BuildContext 把召回结果拼成提示词中的上下文段
func BuildContext(docs []Document) string {
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		content := strings.TrimSpace(doc.Content)
		if content != "" {
			parts = append(parts, content)
		}
	}
	return strings.Join(parts, "\n")
}
