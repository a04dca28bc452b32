// Package search 提供关键词检索服务客户端
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"genai-chat-api/internal/application/retrieval"
	"genai-chat-api/internal/config"
)

// Client 关键词检索网关，实现 retrieval.KeywordSearcher
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type searchResponse struct {
	Hits []searchHit `json:"hits"`
}

type searchHit struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

func NewClient(cfg *config.SearchConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Search(ctx context.Context, collection, query string, topK int) ([]retrieval.Document, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("search base_url is empty")
	}
	if collection == "" {
		return nil, fmt.Errorf("search collection is empty")
	}

	reqBody, err := json.Marshal(&searchRequest{Query: query, TopK: topK})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/"+collection+"/_search", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("search request failed: status=%d", httpResp.StatusCode)
	}

	var resp searchResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	docs := make([]retrieval.Document, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		docs = append(docs, retrieval.Document{
			ID:      hit.ID,
			Title:   hit.Title,
			Content: hit.Content,
			Score:   hit.Score,
			Source:  "keyword",
		})
	}
	return docs, nil
}
