package handler

import (
	"github.com/gin-gonic/gin"

	"genai-chat-api/internal/application/translate"
	"genai-chat-api/internal/interfaces/http/dto"
)

// TranslateHandler 文本翻译处理器
type TranslateHandler struct {
	translator *translate.Translator
}

// NewTranslateHandler 创建文本翻译处理器
func NewTranslateHandler(translator *translate.Translator) *TranslateHandler {
	return &TranslateHandler{translator: translator}
}

// TranslateText 文本翻译
// @Summary 文本翻译
// @Description 把文本从源语种翻译为目标语种，同步返回译文
// @Tags Translate
// @Accept json
// @Produce json
// @Param body body dto.TranslateTextRequest true "翻译请求"
// @Success 200 {object} dto.Response[dto.TranslateTextResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/translations/text [post]
func (h *TranslateHandler) TranslateText(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.TranslateTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	out, err := h.translator.Translate(ctx, translate.Input{
		ChatID:     req.ChatID,
		SourceLang: req.SourceLang,
		TargetLang: req.TargetLang,
		Text:       req.Text,
	})
	if err != nil {
		respondError(ctx, c, err, "failed to translate")
		return
	}
	dto.Success(c, &dto.TranslateTextResponse{
		SourceLang: req.SourceLang,
		TargetLang: req.TargetLang,
		Text:       out,
	})
}

// ListLanguages 支持的语种列表
// @Summary 语种列表
// @Tags Translate
// @Produce json
// @Success 200 {object} dto.Response[[]dto.LanguageResponse]
// @Router /v1/translations/languages [get]
func (h *TranslateHandler) ListLanguages(c *gin.Context) {
	dto.Success(c, dto.NewLanguageListResponse(h.translator.Languages()))
}
