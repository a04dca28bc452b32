// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"genai-chat-api/internal/application/chat"
	"genai-chat-api/internal/application/summary"
	"genai-chat-api/internal/interfaces/http/dto"
)

// SummaryHandler 文本摘要与报告生成处理器
type SummaryHandler struct {
	reducer  *summary.Reducer
	reporter *chat.Reporter
}

// NewSummaryHandler 创建摘要处理器
func NewSummaryHandler(reducer *summary.Reducer, reporter *chat.Reporter) *SummaryHandler {
	return &SummaryHandler{
		reducer:  reducer,
		reporter: reporter,
	}
}

// SummarizeText 同步文本摘要
// @Summary 文本摘要
// @Description 对长文本做分块归并摘要，同步返回结果
// @Tags Summaries
// @Accept json
// @Produce json
// @Param body body dto.SummaryRequest true "摘要请求"
// @Success 200 {object} dto.Response[dto.SummaryResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/summaries/text [post]
func (h *SummaryHandler) SummarizeText(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.reducer.Summarize(ctx, req.Text)
	if err != nil {
		respondError(ctx, c, err, "failed to summarize text")
		return
	}
	dto.Success(c, dto.SummaryResponse{
		Summary:    result.Text,
		ChunkCount: result.ChunkCount,
		Truncated:  result.Truncated,
	})
}

// GenerateReport 发起报告生成
// @Summary 发起报告生成
// @Description 受理后立即返回，报告正文通过会话流推送
// @Tags Summaries
// @Accept json
// @Produce json
// @Param body body dto.ReportRequest true "报告请求"
// @Success 202 {object} dto.Response[dto.ReportAcceptedResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/reports/text [post]
func (h *SummaryHandler) GenerateReport(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	err := h.reporter.Generate(ctx, chat.ReportInput{
		SessionKey: req.SessionKey,
		ChatID:     req.ChatID,
		Title:      req.Title,
		Context:    req.Context,
		Content:    req.Content,
	})
	if err != nil {
		respondError(ctx, c, err, "failed to accept report")
		return
	}
	dto.Accepted(c, dto.ReportAcceptedResponse{SessionKey: req.SessionKey})
}
