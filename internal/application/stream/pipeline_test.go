package stream

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genai-chat-api/pkg/errors"
)

// drain 读取到通道关闭为止，返回事件名序列
func drain(h *Handle) []Event {
	var out []Event
	for ev := range h.Events() {
		out = append(out, ev)
	}
	return out
}

func names(events []Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Name)
	}
	return out
}

func newTestStream(t *testing.T) (*Registry, *Pipeline, *Handle) {
	t.Helper()
	r := NewRegistry(64)
	p := NewPipeline(r)
	h, err := r.Create(context.Background(), "session-1")
	require.NoError(t, err)
	return r, p, h
}

func TestPipelineFullLifecycle(t *testing.T) {
	_, p, h := newTestStream(t)
	ctx := context.Background()

	p.Emit(ctx, h, StagePrepare, PhaseStart, "")
	p.Emit(ctx, h, StagePrepare, PhaseDone, "")
	p.Inference(ctx, h, "thinking")
	p.Inference(ctx, h, "harder")
	p.Answer(ctx, h, "hello")
	p.Answer(ctx, h, "world")
	p.Emit(ctx, h, StageReference, PhaseDone, "doc-1")
	p.Finish(ctx, h)

	events := drain(h)
	assert.Equal(t, []string{
		"connect",
		"prepare-start", "prepare-done",
		"inference-start", "inference", "inference",
		"inference-done",
		"answer-start", "answer", "answer",
		"reference-done",
		"disconnect",
	}, names(events))

	// 序号严格递增
	for i := 1; i < len(events); i++ {
		assert.Equal(t, events[i-1].Sequence+1, events[i].Sequence)
	}
}

func TestPipelineAnswerClosesInference(t *testing.T) {
	_, p, h := newTestStream(t)
	ctx := context.Background()

	p.Inference(ctx, h, "r1")
	p.Answer(ctx, h, "a1")
	p.Finish(ctx, h)

	assert.Equal(t, []string{
		"connect",
		"inference-start", "inference", "inference-done",
		"answer-start", "answer", "answer-done",
		"disconnect",
	}, names(drain(h)))
}

func TestPipelineFinishWithoutAnswer(t *testing.T) {
	// 只产生推理片段就结束时，推理阶段也要闭合
	_, p, h := newTestStream(t)
	ctx := context.Background()

	p.Inference(ctx, h, "r1")
	p.Finish(ctx, h)

	assert.Equal(t, []string{
		"connect", "inference-start", "inference", "inference-done", "disconnect",
	}, names(drain(h)))
}

func TestPipelineDropsOutOfOrderEvents(t *testing.T) {
	_, p, h := newTestStream(t)
	ctx := context.Background()

	p.Emit(ctx, h, StageAnswer, PhaseStart, "")
	p.Emit(ctx, h, StagePrepare, PhaseStart, "") // 阶段回退，丢弃
	p.Emit(ctx, h, StageAnswer, PhaseDone, "")
	p.Emit(ctx, h, StageAnswer, PhaseProcess, "late") // done 之后回退，丢弃
	p.Emit(ctx, h, StageAnswer, PhaseDone, "")        // 重复 done，丢弃
	p.Emit(ctx, h, StageReference, PhaseDone, "")
	p.Disconnect(ctx, h)

	assert.Equal(t, []string{
		"connect", "answer-start", "answer-done", "reference-done", "disconnect",
	}, names(drain(h)))
}

func TestPipelineConcurrentFragmentsKeepStartFirst(t *testing.T) {
	// 并发片段下 start 事件也必须先于所有 process 事件
	_, p, h := newTestStream(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Inference(ctx, h, "r")
		}()
	}
	wg.Wait()
	p.Finish(ctx, h)

	got := names(drain(h))
	require.Equal(t, "connect", got[0])
	require.Equal(t, "inference-start", got[1])
	assert.Equal(t, "inference-done", got[len(got)-2])
	assert.Equal(t, "disconnect", got[len(got)-1])

	starts := 0
	for _, name := range got {
		if name == "inference-start" {
			starts++
		}
	}
	assert.Equal(t, 1, starts)
	assert.Len(t, got, 20) // connect + start + 16 process + done + disconnect
}

func TestPipelineFailEmitsSanitizedException(t *testing.T) {
	r, p, h := newTestStream(t)
	ctx := context.Background()

	p.Emit(ctx, h, StagePrepare, PhaseStart, "")
	p.Fail(ctx, h, errors.Wrap(assert.AnError, errors.CodeRetrievalFailed, "retrieval failed"))

	events := drain(h)
	assert.Equal(t, []string{"connect", "prepare-start", "exception", "disconnect"}, names(events))
	// 对外只暴露脱敏后的 message，不含底层错误；内容与阶段事件一样转义
	assert.Equal(t, "retrieval&nbsp;failed", events[2].Content)
	assert.Equal(t, 0, r.Count())
}

func TestPipelineEscapesAllContent(t *testing.T) {
	// 带外事件与阶段事件走同一转义，异常消息里的换行不能破坏 SSE 分帧
	_, p, h := newTestStream(t)
	ctx := context.Background()

	p.Emit(ctx, h, StageAnswer, PhaseProcess, "a b\nc")
	p.Fail(ctx, h, errors.New(errors.CodeGenerationFailed, "bad\nline"))

	events := drain(h)
	require.Len(t, events, 4)
	assert.Equal(t, "a&nbsp;b\\nc", events[1].Content)
	assert.Equal(t, "exception", events[2].Name)
	assert.Equal(t, "bad\\nline", events[2].Content)
}

func TestPipelineCancelSilencesEvents(t *testing.T) {
	r, p, h := newTestStream(t)
	ctx := context.Background()

	p.Emit(ctx, h, StagePrepare, PhaseStart, "")
	r.Cancel(ctx, "session-1")

	p.Emit(ctx, h, StagePrepare, PhaseDone, "")
	p.Answer(ctx, h, "late")
	p.Fail(ctx, h, errors.ErrGenerationFailed)

	assert.Equal(t, []string{"connect", "prepare-start"}, names(drain(h)))
}

func TestEscapeContent(t *testing.T) {
	assert.Equal(t, "a&nbsp;b\\nc", EscapeContent("a b\nc"))
	assert.Equal(t, "", EscapeContent(""))
	assert.Equal(t, "plain", EscapeContent("plain"))
}
