// Package translate 提供文本翻译：复用生成网关，同步返回译文
package translate

import (
	"context"
	"fmt"
	"strings"

	"genai-chat-api/internal/domain/entity"
	"genai-chat-api/internal/domain/repository"
	"genai-chat-api/pkg/errors"
	"genai-chat-api/pkg/logger"
)

const translateSystemPrompt = "你是专业翻译，忠实传达原文含义，保持术语一致，只输出译文，不添加任何解释。"

// Language 支持的翻译语种
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// 语种表是封闭集合，源语种与目标语种都必须在表内
var languages = []Language{
	{Code: "zh", Name: "中文"},
	{Code: "en", Name: "英语"},
	{Code: "ja", Name: "日语"},
	{Code: "ko", Name: "韩语"},
}

// Generator 翻译所需的最小生成能力，由 LLM 网关实现
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// Input 一次文本翻译请求
type Input struct {
	ChatID     string
	SourceLang string
	TargetLang string
	Text       string
}

// Translator 文本翻译器，turns 可为 nil（不落翻译历史）
type Translator struct {
	gen   Generator
	turns repository.ConversationTurnRepository
}

// NewTranslator 创建翻译器
func NewTranslator(gen Generator, turns repository.ConversationTurnRepository) *Translator {
	return &Translator{gen: gen, turns: turns}
}

// Languages 返回支持的语种列表
func (t *Translator) Languages() []Language {
	out := make([]Language, len(languages))
	copy(out, languages)
	return out
}

// Translate 翻译文本，ChatID 非空时把原文与译文落为一轮对话
func (t *Translator) Translate(ctx context.Context, in Input) (string, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return "", errors.New(errors.CodeInvalidParam, "text is empty")
	}
	src, err := languageName(in.SourceLang)
	if err != nil {
		return "", err
	}
	dst, err := languageName(in.TargetLang)
	if err != nil {
		return "", err
	}

	user := fmt.Sprintf("把[原文]从%s翻译成%s。\n\n[原文]\n%s", src, dst, text)
	out, err := t.gen.Generate(ctx, translateSystemPrompt, user)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeGenerationFailed, "translate failed")
	}
	result := strings.TrimSpace(out)

	if in.ChatID != "" && t.turns != nil {
		if err := t.turns.Create(ctx, entity.NewConversationTurn(in.ChatID, entity.RoleUser, text, nil)); err != nil {
			logger.Error(ctx, "failed to persist translate query", err, "chat_id", in.ChatID)
		} else if err := t.turns.Create(ctx, entity.NewConversationTurn(in.ChatID, entity.RoleAssistant, result, nil)); err != nil {
			logger.Error(ctx, "failed to persist translate answer", err, "chat_id", in.ChatID)
		}
	}
	return result, nil
}

func languageName(code string) (string, error) {
	for _, l := range languages {
		if l.Code == code {
			return l.Name, nil
		}
	}
	return "", errors.New(errors.CodeInvalidParam, "unsupported language: "+code)
}
