// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"genai-chat-api/internal/domain/entity"
	"genai-chat-api/internal/infrastructure/prompt"
	"genai-chat-api/internal/interfaces/http/dto"
)

// PromptHandler 提示词管理处理器
type PromptHandler struct {
	loader *prompt.CachedLoader
}

// NewPromptHandler 创建提示词处理器
func NewPromptHandler(loader *prompt.CachedLoader) *PromptHandler {
	return &PromptHandler{loader: loader}
}

// GetPrompt 提示词详情
// @Summary 提示词详情
// @Tags Prompts
// @Produce json
// @Param code path string true "提示词编码"
// @Success 200 {object} dto.Response[dto.PromptResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/prompts/{code} [get]
func (h *PromptHandler) GetPrompt(c *gin.Context) {
	ctx := c.Request.Context()
	code := dto.BindPromptCode(c)

	p, err := h.loader.Load(ctx, code)
	if err != nil {
		respondError(ctx, c, err, "failed to get prompt")
		return
	}
	dto.Success(c, dto.NewPromptResponse(p))
}

// UpsertPrompt 写入提示词
// @Summary 写入提示词
// @Description 按编码新建或覆盖提示词，并使缓存失效
// @Tags Prompts
// @Accept json
// @Produce json
// @Param body body dto.UpsertPromptRequest true "提示词写入请求"
// @Success 200 {object} dto.Response[dto.PromptResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/prompts [put]
func (h *PromptHandler) UpsertPrompt(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.UpsertPromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	p := &entity.Prompt{
		Code:        req.Code,
		Name:        req.Name,
		Content:     req.Content,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}
	if err := h.loader.Save(ctx, p); err != nil {
		respondError(ctx, c, err, "failed to upsert prompt")
		return
	}
	dto.Success(c, dto.NewPromptResponse(p))
}
