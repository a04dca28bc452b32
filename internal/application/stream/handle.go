package stream

import (
	"context"
	"sync"

	"genai-chat-api/pkg/logger"
	"genai-chat-api/pkg/metrics"
)

// Handle 单个会话流的运行态：事件通道、序号水位与生命周期标志
// 所有可变字段都由 mu 保护，事件通道只在 close 标志翻转时关闭一次
type Handle struct {
	sessionKey string

	mu               sync.Mutex
	ch               chan Event
	closed           bool
	cancelled        bool
	inferenceStarted bool
	answerStarted    bool
	sequence         int64
	lastStage        Stage
	lastPhase        Phase
	hasStage         bool

	ctx    context.Context
	cancel context.CancelFunc
}

func newHandle(sessionKey string, buffer int) *Handle {
	if buffer <= 0 {
		buffer = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handle{
		sessionKey: sessionKey,
		ch:         make(chan Event, buffer),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SessionKey 返回流所属的会话键
func (h *Handle) SessionKey() string {
	return h.sessionKey
}

// Events 返回只读事件通道，通道在流拆除时关闭
func (h *Handle) Events() <-chan Event {
	return h.ch
}

// Context 随流拆除而取消，生成等下游调用应派生自它
func (h *Handle) Context() context.Context {
	return h.ctx
}

// Cancelled 报告流是否被用户主动取消
func (h *Handle) Cancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

// markCancelled 置取消标志，返回是否首次翻转
func (h *Handle) markCancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelled {
		return false
	}
	h.cancelled = true
	return true
}

// push 分配序号并投递事件，流已拆除或通道满时丢弃
func (h *Handle) push(ctx context.Context, ev Event) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pushLocked(ctx, ev)
}

// pushLocked 调用方必须持有 mu，内容在此统一转义
func (h *Handle) pushLocked(ctx context.Context, ev Event) bool {
	if h.closed || h.cancelled {
		metrics.StreamDroppedTotal.WithLabelValues("closed").Inc()
		return false
	}
	ev.Content = EscapeContent(ev.Content)
	h.sequence++
	ev.Sequence = h.sequence
	select {
	case h.ch <- ev:
		metrics.StreamEventsTotal.WithLabelValues(ev.Name).Inc()
		return true
	default:
		// 有界通道写满说明订阅端消费不过来，丢弃而不是阻塞生成协程
		metrics.StreamDroppedTotal.WithLabelValues("backpressure").Inc()
		logger.Warn(ctx, "stream event dropped", "session_key", h.sessionKey, "event", ev.Name)
		return false
	}
}

// close 幂等拆除：取消上下文并关闭事件通道
func (h *Handle) close() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.closed = true
	h.cancel()
	close(h.ch)
	return true
}
