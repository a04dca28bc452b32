// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, h Handlers) {
	// 会话流管理
	streams := v1.Group("/streams")
	{
		streams.GET("/:sid", h.Stream.Subscribe) // SSE
		streams.DELETE("/:sid", h.Stream.Cancel)
	}

	// 会话管理与提问
	chats := v1.Group("/chats")
	{
		chats.GET("", h.Chat.ListChats)
		chats.POST("", h.Chat.CreateChat)
		chats.GET("/:cid", h.Chat.GetChat)
		chats.PUT("/:cid", h.Chat.UpdateChat)
		chats.GET("/:cid/turns", h.Chat.ListTurns)
		chats.POST("/:cid/question", h.Chat.AskQuestion)
	}

	// 摘要与报告
	summaries := v1.Group("/summaries")
	{
		summaries.POST("/text", h.Summary.SummarizeText)
	}
	reports := v1.Group("/reports")
	{
		reports.POST("/text", h.Summary.GenerateReport)
	}

	// 文本翻译
	translations := v1.Group("/translations")
	{
		translations.POST("/text", h.Translate.TranslateText)
		translations.GET("/languages", h.Translate.ListLanguages)
	}

	// 检索调试
	retrieval := v1.Group("/retrieval")
	{
		retrieval.POST("/search", h.Retrieval.Search)
	}

	// 提示词管理
	prompts := v1.Group("/prompts")
	{
		prompts.PUT("", h.Prompt.UpsertPrompt)
		prompts.GET("/:code", h.Prompt.GetPrompt)
	}
}
