package chat

import (
	"strings"

	"github.com/cloudwego/eino/schema"

	"genai-chat-api/internal/domain/entity"
)

// historyMessages 把历史轮次转换为模型消息，system 角色不参与多轮回放
func historyMessages(turns []*entity.ConversationTurn) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case entity.RoleUser:
			msgs = append(msgs, schema.UserMessage(turn.Content))
		case entity.RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(turn.Content, nil))
		}
	}
	return msgs
}

// historyTexts 历史轮次的纯文本，预算计数用
func historyTexts(turns []*entity.ConversationTurn) []string {
	texts := make([]string, 0, len(turns))
	for _, turn := range turns {
		texts = append(texts, turn.Content)
	}
	return texts
}

// buildSystemPrompt 拼装系统提示词：模板 + 会话状态 + 召回上下文
func buildSystemPrompt(template string, state entity.ChatState, contextText string) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(template))
	if s := strings.TrimSpace(string(state)); s != "" {
		sb.WriteString("\n\n[会话状态]\n")
		sb.WriteString(s)
	}
	if c := strings.TrimSpace(contextText); c != "" {
		sb.WriteString("\n\n[参考资料]\n")
		sb.WriteString(c)
	}
	return sb.String()
}

// buildMessages 组装一次生成的完整消息序列
func buildMessages(systemPrompt string, turns []*entity.ConversationTurn, query string) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(turns)+2)
	msgs = append(msgs, schema.SystemMessage(systemPrompt))
	msgs = append(msgs, historyMessages(turns)...)
	msgs = append(msgs, schema.UserMessage(query))
	return msgs
}
