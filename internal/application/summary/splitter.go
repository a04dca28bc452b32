// Package summary 对长文本做分块 map-reduce 摘要
package summary

import (
	"strings"

	"genai-chat-api/pkg/tokenizer"
)

// splitByTokens 按 token 数切块，相邻块之间保留 overlap 个 token 的重叠
func splitByTokens(tok tokenizer.Tokenizer, s string, maxTokens, overlapTokens int) []string {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return nil
	}
	if maxTokens <= 0 {
		return []string{raw}
	}
	if overlapTokens < 0 {
		overlapTokens = 0
	}
	ids := tok.Encode(raw)
	if len(ids) <= maxTokens {
		return []string{raw}
	}
	step := maxTokens - overlapTokens
	if step <= 0 {
		step = maxTokens
	}

	out := make([]string, 0, (len(ids)/step)+1)
	for start := 0; start < len(ids); start += step {
		end := start + maxTokens
		if end > len(ids) {
			end = len(ids)
		}
		chunk := strings.TrimSpace(tok.Decode(ids[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end >= len(ids) {
			break
		}
	}
	return out
}
