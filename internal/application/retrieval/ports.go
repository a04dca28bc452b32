package retrieval

import "context"

// KeywordSearcher 应用层对关键词检索的最小依赖（port），由搜索网关实现
type KeywordSearcher interface {
	Search(ctx context.Context, collection, query string, topK int) ([]Document, error)
}

// VectorSearcher 应用层对向量检索的最小依赖（port），由 Milvus 仓储实现
type VectorSearcher interface {
	Search(ctx context.Context, collection, query string, topK int) ([]Document, error)
}

// Reranker 应用层对重排服务的最小依赖（port），由 rerank 网关实现
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []Document) ([]Document, error)
}
