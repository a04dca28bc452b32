// Package tokenizer 提供模型分词计数能力
package tokenizer

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer 分词器接口。
// Token 预算和分块归并都依赖同一个固定分词器，保证计数可复现。
type Tokenizer interface {
	// Count 返回文本的 token 数，空白文本计 0。
	Count(text string) int
	// Encode 将文本编码为 token 序列
	Encode(text string) []int
	// Decode 将 token 序列还原为文本
	Decode(tokens []int) string
}

// CL100K 基于 tiktoken cl100k_base 编码的分词器
type CL100K struct {
	encoding *tiktoken.Tiktoken
}

// NewCL100K 创建 cl100k_base 分词器
func NewCL100K() (*CL100K, error) {
	encoding, err := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
	if err != nil {
		return nil, fmt.Errorf("failed to load cl100k_base encoding: %w", err)
	}
	return &CL100K{encoding: encoding}, nil
}

func (t *CL100K) Count(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return len(t.encoding.Encode(text, nil, nil))
}

func (t *CL100K) Encode(text string) []int {
	if text == "" {
		return nil
	}
	return t.encoding.Encode(text, nil, nil)
}

func (t *CL100K) Decode(tokens []int) string {
	if len(tokens) == 0 {
		return ""
	}
	return t.encoding.Decode(tokens)
}
