package stream

import (
	"context"
	"sync"

	"genai-chat-api/pkg/errors"
	"genai-chat-api/pkg/logger"
	"genai-chat-api/pkg/metrics"
)

// Registry 进程内会话流注册表，一个会话键同一时刻至多一条活跃流
type Registry struct {
	mu      sync.RWMutex
	streams map[string]*Handle
	buffer  int
}

// NewRegistry 创建注册表，buffer 为每条流的事件通道容量
func NewRegistry(buffer int) *Registry {
	return &Registry{
		streams: make(map[string]*Handle),
		buffer:  buffer,
	}
}

// Create 为会话键建立新流并立即投递 connect 事件
// 已存在活跃流时返回 ErrStreamActive，不影响现有流
func (r *Registry) Create(ctx context.Context, sessionKey string) (*Handle, error) {
	r.mu.Lock()
	if _, ok := r.streams[sessionKey]; ok {
		r.mu.Unlock()
		logger.Warn(ctx, "stream already active", "session_key", sessionKey)
		return nil, errors.ErrStreamActive
	}
	h := newHandle(sessionKey, r.buffer)
	r.streams[sessionKey] = h
	r.mu.Unlock()

	metrics.StreamsActive.Inc()
	logger.Info(ctx, "stream created", "session_key", sessionKey)

	h.push(ctx, Event{ID: sessionKey, Name: EventConnect, Content: EventConnect})
	return h, nil
}

// Get 按会话键查找活跃流
func (r *Registry) Get(sessionKey string) (*Handle, error) {
	r.mu.RLock()
	h, ok := r.streams[sessionKey]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.ErrStreamNotFound
	}
	return h, nil
}

// Remove 摘除并拆除流，对不存在的键静默返回
func (r *Registry) Remove(ctx context.Context, sessionKey string) {
	r.mu.Lock()
	h, ok := r.streams[sessionKey]
	if ok {
		delete(r.streams, sessionKey)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	if h.close() {
		metrics.StreamsActive.Dec()
		logger.Info(ctx, "stream removed", "session_key", sessionKey)
	}
}

// Cancel 用户主动取消：置取消标志后拆除流，后续阶段事件全部静默丢弃
func (r *Registry) Cancel(ctx context.Context, sessionKey string) {
	r.mu.RLock()
	h, ok := r.streams[sessionKey]
	r.mu.RUnlock()
	if !ok {
		return
	}
	if h.markCancelled() {
		logger.Info(ctx, "stream cancelled", "session_key", sessionKey)
	}
	r.Remove(ctx, sessionKey)
}

// Count 当前活跃流数量
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.streams)
}
