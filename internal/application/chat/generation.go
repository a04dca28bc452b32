package chat

import (
	"context"
	stderrors "errors"
	"io"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"genai-chat-api/internal/application/stream"
	llmgw "genai-chat-api/internal/infrastructure/gateway/llm"
	"genai-chat-api/pkg/errors"
	"genai-chat-api/pkg/logger"
	"genai-chat-api/pkg/metrics"
)

// generationLoop 消费模型流并把片段映射到阶段事件：
// ReasoningContent 进 INFERENCE，Content 进 ANSWER
type generationLoop struct {
	pipeline  *stream.Pipeline
	generator Generator
}

func newGenerationLoop(pipeline *stream.Pipeline, generator Generator) generationLoop {
	return generationLoop{pipeline: pipeline, generator: generator}
}

// run 失败（含取消）时负责收尾并返回 ok=false
func (g generationLoop) run(ctx context.Context, h *stream.Handle, msgs []*schema.Message, opts llmgw.Options) (string, *schema.Message, bool) {
	start := time.Now()
	reader, err := g.generator.Stream(ctx, msgs, opts)
	if err != nil {
		g.pipeline.Fail(ctx, h, err)
		return "", nil, false
	}
	defer reader.Close()

	var answer strings.Builder
	var usageMsg *schema.Message
	for {
		msg, recvErr := reader.Recv()
		if stderrors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			if h.Cancelled() {
				logger.Info(ctx, "generation aborted by cancel")
				return "", nil, false
			}
			g.pipeline.Fail(ctx, h, errors.Wrap(recvErr, errors.CodeGenerationFailed, "generation failed"))
			return "", nil, false
		}
		if msg == nil {
			continue
		}
		if msg.ReasoningContent != "" {
			g.pipeline.Inference(ctx, h, msg.ReasoningContent)
		}
		if msg.Content != "" {
			answer.WriteString(msg.Content)
			g.pipeline.Answer(ctx, h, msg.Content)
		}
		if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
			usageMsg = msg
		}
	}
	metrics.GenerationDuration.WithLabelValues("stream").Observe(time.Since(start).Seconds())
	g.generator.RecordUsage(usageMsg)
	return answer.String(), usageMsg, true
}

func isBudgetExhausted(err error) bool {
	return stderrors.Is(err, errors.ErrBudgetExhausted)
}
