package stream

import (
	"context"

	"genai-chat-api/pkg/errors"
	"genai-chat-api/pkg/logger"
	"genai-chat-api/pkg/metrics"
)

// Pipeline 阶段事件管道：校验阶段单调推进后投递，违序事件丢弃并记录
// 带外事件（connect / disconnect / exception）不参与水位校验
type Pipeline struct {
	registry *Registry
}

// NewPipeline 创建事件管道
func NewPipeline(registry *Registry) *Pipeline {
	return &Pipeline{registry: registry}
}

// Emit 投递阶段事件
// 水位规则：阶段只增不减；同阶段内 phase 只增不减；done 之后同阶段不再接受任何事件
func (p *Pipeline) Emit(ctx context.Context, h *Handle, stage Stage, phase Phase, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p.emitLocked(ctx, h, stage, phase, content)
}

// emitLocked 调用方必须持有 h.mu
func (p *Pipeline) emitLocked(ctx context.Context, h *Handle, stage Stage, phase Phase, content string) {
	if h.hasStage {
		if stage < h.lastStage {
			p.drop(ctx, h, stage, phase, "stage_regression")
			return
		}
		if stage == h.lastStage {
			if phase < h.lastPhase {
				p.drop(ctx, h, stage, phase, "phase_regression")
				return
			}
			if phase == PhaseDone && h.lastPhase == PhaseDone {
				p.drop(ctx, h, stage, phase, "duplicate_done")
				return
			}
		}
	}

	if !h.pushLocked(ctx, Event{
		ID:      h.sessionKey,
		Name:    EventName(stage, phase),
		Content: content,
	}) {
		return
	}
	h.lastStage = stage
	h.lastPhase = phase
	h.hasStage = true
}

// Inference 投递一条推理片段，首条片段前自动补 inference-start
// 首条判定与补发在同一把锁内完成，并发片段不会把 process 抢到 start 前面
func (p *Pipeline) Inference(ctx context.Context, h *Handle, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.inferenceStarted {
		h.inferenceStarted = true
		p.emitLocked(ctx, h, StageInference, PhaseStart, "")
	}
	p.emitLocked(ctx, h, StageInference, PhaseProcess, content)
}

// Answer 投递一条回答片段
// 首条片段前自动闭合推理阶段（若有）并补 answer-start
func (p *Pipeline) Answer(ctx context.Context, h *Handle, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.answerStarted {
		h.answerStarted = true
		if h.inferenceStarted {
			p.emitLocked(ctx, h, StageInference, PhaseDone, "")
		}
		p.emitLocked(ctx, h, StageAnswer, PhaseStart, "")
	}
	p.emitLocked(ctx, h, StageAnswer, PhaseProcess, content)
}

// CloseGeneration 闭合生成阶段：为已开启但未 done 的推理/回答阶段补发 done
func (p *Pipeline) CloseGeneration(ctx context.Context, h *Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.inferenceStarted && !h.answerStarted {
		p.emitLocked(ctx, h, StageInference, PhaseDone, "")
	}
	if h.answerStarted {
		p.emitLocked(ctx, h, StageAnswer, PhaseDone, "")
	}
}

// Finish 正常收尾：闭合未完成的阶段后拆除流
func (p *Pipeline) Finish(ctx context.Context, h *Handle) {
	p.CloseGeneration(ctx, h)
	p.Disconnect(ctx, h)
}

// Fail 失败收尾：投递一条脱敏 exception 事件后拆除流
// 取消后的失败不再产生任何事件
func (p *Pipeline) Fail(ctx context.Context, h *Handle, err error) {
	appErr := errors.AsAppError(err)
	logger.Error(ctx, "stream failed", err, "session_key", h.sessionKey, "code", appErr.Code)
	h.push(ctx, Event{ID: h.sessionKey, Name: EventException, Content: appErr.Message})
	p.Disconnect(ctx, h)
}

// Disconnect 投递 disconnect 事件并从注册表摘除流
func (p *Pipeline) Disconnect(ctx context.Context, h *Handle) {
	h.push(ctx, Event{ID: h.sessionKey, Name: EventDisconnect, Content: EventDisconnect})
	p.registry.Remove(ctx, h.sessionKey)
}

func (p *Pipeline) drop(ctx context.Context, h *Handle, stage Stage, phase Phase, reason string) {
	metrics.StreamDroppedTotal.WithLabelValues(reason).Inc()
	logger.Warn(ctx, "out-of-order stream event dropped",
		"session_key", h.sessionKey,
		"event", EventName(stage, phase),
		"watermark", EventName(h.lastStage, h.lastPhase),
		"reason", reason,
	)
}
