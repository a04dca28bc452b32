// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"genai-chat-api/internal/interfaces/http/dto"
	"genai-chat-api/pkg/errors"
	"genai-chat-api/pkg/logger"
)

// respondError 业务错误转 HTTP 响应，非业务错误记日志后按 fallback 返回 500
func respondError(ctx context.Context, c *gin.Context, err error, fallback string) {
	if errors.IsAppError(err) {
		appErr := errors.AsAppError(err)
		c.JSON(appErr.HTTPStatus, dto.ErrorResponse{
			Code:    appErr.HTTPStatus,
			Message: appErr.Message,
			TraceID: c.GetString("trace_id"),
		})
		return
	}
	logger.Error(ctx, fallback, err)
	dto.InternalError(c, fallback)
}
