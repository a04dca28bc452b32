// Package handler 提供 HTTP 请求处理器
package handler

import (
	"io"
	"strconv"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"genai-chat-api/internal/application/stream"
	"genai-chat-api/internal/interfaces/http/dto"
	"genai-chat-api/pkg/logger"
)

// StreamHandler 会话流处理器，向订阅端转发阶段事件
type StreamHandler struct {
	registry *stream.Registry
}

// NewStreamHandler 创建会话流处理器
func NewStreamHandler(registry *stream.Registry) *StreamHandler {
	return &StreamHandler{registry: registry}
}

// Subscribe 建立会话流
// @Summary 建立会话流
// @Description 以 SSE 订阅指定会话键的阶段事件，同一会话键同时只允许一条流
// @Tags Streams
// @Produce text/event-stream
// @Param sid path string true "会话键"
// @Success 200 "SSE stream"
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/streams/{sid} [get]
func (h *StreamHandler) Subscribe(c *gin.Context) {
	ctx := c.Request.Context()
	sessionKey := dto.BindSessionID(c)

	handle, err := h.registry.Create(ctx, sessionKey)
	if err != nil {
		respondError(ctx, c, err, "failed to create stream")
		return
	}

	// SSE 响应头，X-Accel-Buffering 关闭反向代理缓冲
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	clientGone := ctx.Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-handle.Events():
			if !ok {
				// 流已收尾（disconnect 之后通道关闭）
				return false
			}
			c.Render(-1, sse.Event{
				Id:    strconv.FormatInt(ev.Sequence, 10),
				Event: ev.Name,
				Data:  ev.Content,
			})
			return true

		case <-clientGone:
			// 订阅端断开视同取消，管道中后续事件静默丢弃
			logger.Info(ctx, "stream client disconnected", "session_key", sessionKey)
			h.registry.Cancel(ctx, sessionKey)
			return false
		}
	})
}

// Cancel 取消会话流
// @Summary 取消会话流
// @Description 终止指定会话键的流，幂等，不存在的流同样返回成功
// @Tags Streams
// @Produce json
// @Param sid path string true "会话键"
// @Success 200 {object} dto.Response[any]
// @Router /v1/streams/{sid} [delete]
func (h *StreamHandler) Cancel(c *gin.Context) {
	ctx := c.Request.Context()
	sessionKey := dto.BindSessionID(c)

	h.registry.Cancel(ctx, sessionKey)
	dto.Success[any](c, nil)
}
