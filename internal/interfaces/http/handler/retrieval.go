// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"genai-chat-api/internal/application/retrieval"
	"genai-chat-api/internal/interfaces/http/dto"
)

// RetrievalHandler 检索调试处理器
type RetrievalHandler struct {
	fusion *retrieval.Fusion
}

// NewRetrievalHandler 创建检索调试处理器
func NewRetrievalHandler(fusion *retrieval.Fusion) *RetrievalHandler {
	return &RetrievalHandler{fusion: fusion}
}

// Search 检索调试
// @Summary 检索调试
// @Description 执行双路召回与重排，返回融合后的文档列表
// @Tags Retrieval
// @Accept json
// @Produce json
// @Param body body dto.RetrievalSearchRequest true "检索请求"
// @Success 200 {object} dto.Response[dto.RetrievalSearchResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/retrieval/search [post]
func (h *RetrievalHandler) Search(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.RetrievalSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	docs, err := h.fusion.Retrieve(ctx, req.Collection, req.Query)
	if err != nil {
		respondError(ctx, c, err, "failed to search")
		return
	}
	dto.Success(c, dto.NewRetrievalSearchResponse(docs))
}
