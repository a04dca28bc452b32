package dto

import (
	"genai-chat-api/internal/application/translate"
)

// TranslateTextRequest 文本翻译请求
type TranslateTextRequest struct {
	ChatID     string `json:"chat_id"`
	SourceLang string `json:"source_lang" binding:"required"`
	TargetLang string `json:"target_lang" binding:"required"`
	Text       string `json:"text" binding:"required"`
}

// TranslateTextResponse 文本翻译响应
type TranslateTextResponse struct {
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
	Text       string `json:"text"`
}

// LanguageResponse 支持的翻译语种
type LanguageResponse struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// NewLanguageListResponse 语种列表转响应
func NewLanguageListResponse(langs []translate.Language) []*LanguageResponse {
	out := make([]*LanguageResponse, 0, len(langs))
	for _, l := range langs {
		out = append(out, &LanguageResponse{Code: l.Code, Name: l.Name})
	}
	return out
}
