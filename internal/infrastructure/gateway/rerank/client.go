// Package rerank 提供重排服务客户端
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"genai-chat-api/internal/application/retrieval"
	"genai-chat-api/internal/config"
)

// Client 重排网关，实现 retrieval.Reranker
type Client struct {
	url        string
	topN       int
	httpClient *http.Client
}

type rerankRequest struct {
	Query     string           `json:"query"`
	Documents []rerankDocument `json:"documents"`
	TopN      int              `json:"top_n,omitempty"`
}

type rerankDocument struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

type rerankResponse struct {
	Results []rerankResult `json:"results"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"relevance_score"`
}

func NewClient(cfg *config.RerankerConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:  cfg.URL,
		topN: cfg.TopK,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Rerank 调用重排服务为候选打分，结果保留原候选字段并覆盖分数
// 服务未返回的候选按 0 分保留，由上层的分数线过滤
func (c *Client) Rerank(ctx context.Context, query string, docs []retrieval.Document) ([]retrieval.Document, error) {
	if c.url == "" {
		return nil, fmt.Errorf("reranker url is empty")
	}
	if len(docs) == 0 {
		return nil, nil
	}

	contents := make([]rerankDocument, len(docs))
	for i, doc := range docs {
		contents[i] = rerankDocument{ID: doc.ID, Content: doc.Content}
	}
	reqBody, err := json.Marshal(&rerankRequest{
		Query:     query,
		Documents: contents,
		TopN:      c.topN,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("rerank request failed: status=%d", httpResp.StatusCode)
	}

	var resp rerankResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}

	out := make([]retrieval.Document, 0, len(resp.Results))
	for _, res := range resp.Results {
		if res.Index < 0 || res.Index >= len(docs) {
			continue
		}
		doc := docs[res.Index]
		doc.Score = res.Score
		out = append(out, doc)
	}
	return out, nil
}
