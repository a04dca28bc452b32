package stream

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genai-chat-api/pkg/errors"
)

func TestRegistryCreateEmitsConnect(t *testing.T) {
	r := NewRegistry(16)
	h, err := r.Create(context.Background(), "session-1")
	require.NoError(t, err)

	ev := <-h.Events()
	assert.Equal(t, EventConnect, ev.Name)
	assert.Equal(t, "session-1", ev.ID)
	assert.Equal(t, int64(1), ev.Sequence)
	assert.Equal(t, 1, r.Count())
}

func TestRegistryRejectsDuplicateSession(t *testing.T) {
	r := NewRegistry(16)
	ctx := context.Background()

	first, err := r.Create(ctx, "session-1")
	require.NoError(t, err)

	_, err = r.Create(ctx, "session-1")
	require.ErrorIs(t, err, errors.ErrStreamActive)

	// 冲突不影响已有流
	got, err := r.Get("session-1")
	require.NoError(t, err)
	assert.Same(t, first, got)

	// 旧流摘除后同一会话键可以重建
	r.Remove(ctx, "session-1")
	_, err = r.Create(ctx, "session-1")
	require.NoError(t, err)
}

func TestRegistryGetUnknownSession(t *testing.T) {
	r := NewRegistry(16)
	_, err := r.Get("missing")
	assert.ErrorIs(t, err, errors.ErrStreamNotFound)
}

func TestRegistryRemoveIsIdempotent(t *testing.T) {
	r := NewRegistry(16)
	ctx := context.Background()

	h, err := r.Create(ctx, "session-1")
	require.NoError(t, err)
	<-h.Events() // connect

	r.Remove(ctx, "session-1")
	r.Remove(ctx, "session-1")
	r.Remove(ctx, "unknown")

	assert.Equal(t, 0, r.Count())

	// 通道恰好关闭一次，消费端以通道关闭感知流结束
	_, open := <-h.Events()
	assert.False(t, open)

	select {
	case <-h.Context().Done():
	default:
		t.Fatal("handle context should be cancelled after remove")
	}
}

func TestRegistryConcurrentTeardown(t *testing.T) {
	r := NewRegistry(16)
	ctx := context.Background()

	h, err := r.Create(ctx, "session-1")
	require.NoError(t, err)
	<-h.Events() // connect

	// Remove 与 Cancel 并发竞争同一个键，通道只能关闭一次（重复关闭会直接 panic）
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Remove(ctx, "session-1")
		}()
		go func() {
			defer wg.Done()
			r.Cancel(ctx, "session-1")
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, r.Count())
	_, open := <-h.Events()
	assert.False(t, open)

	select {
	case <-h.Context().Done():
	default:
		t.Fatal("handle context should be cancelled after teardown")
	}
}

func TestRegistryCancelMarksHandle(t *testing.T) {
	r := NewRegistry(16)
	ctx := context.Background()

	h, err := r.Create(ctx, "session-1")
	require.NoError(t, err)
	<-h.Events()

	r.Cancel(ctx, "session-1")

	assert.True(t, h.Cancelled())
	assert.Equal(t, 0, r.Count())
	r.Cancel(ctx, "session-1") // 幂等
}
