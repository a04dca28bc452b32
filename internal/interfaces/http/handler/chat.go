// Package handler 提供 HTTP 请求处理器
package handler

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"genai-chat-api/internal/application/chat"
	"genai-chat-api/internal/domain/entity"
	"genai-chat-api/internal/domain/repository"
	rediscache "genai-chat-api/internal/infrastructure/persistence/redis"
	"genai-chat-api/internal/interfaces/http/dto"
	"genai-chat-api/pkg/logger"
)

// ChatHandler 会话管理与提问处理器
type ChatHandler struct {
	chatRepo     repository.ChatRepository
	turnRepo     repository.ConversationTurnRepository
	cache        *rediscache.Cache
	orchestrator *chat.Orchestrator
}

// NewChatHandler 创建会话处理器
func NewChatHandler(
	chatRepo repository.ChatRepository,
	turnRepo repository.ConversationTurnRepository,
	cache *rediscache.Cache,
	orchestrator *chat.Orchestrator,
) *ChatHandler {
	return &ChatHandler{
		chatRepo:     chatRepo,
		turnRepo:     turnRepo,
		cache:        cache,
		orchestrator: orchestrator,
	}
}

// CreateChat 创建会话
// @Summary 创建会话
// @Tags Chats
// @Accept json
// @Produce json
// @Param body body dto.CreateChatRequest false "创建会话请求"
// @Success 201 {object} dto.Response[dto.ChatResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/chats [post]
func (h *ChatHandler) CreateChat(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	created := entity.NewChat(req.Title, req.PromptCode)
	if err := h.chatRepo.Create(ctx, created); err != nil {
		respondError(ctx, c, err, "failed to create chat")
		return
	}
	dto.Created(c, dto.NewChatResponse(created))
}

// ListChats 会话列表
// @Summary 会话列表
// @Tags Chats
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.Response[dto.ChatListResponse]
// @Router /v1/chats [get]
func (h *ChatHandler) ListChats(c *gin.Context) {
	ctx := c.Request.Context()
	page := dto.BindPage(c)

	result, err := h.chatRepo.List(ctx, repository.NewPagination(page.Page, page.PageSize))
	if err != nil {
		respondError(ctx, c, err, "failed to list chats")
		return
	}

	chats := make([]*dto.ChatResponse, 0, len(result.Items))
	for _, item := range result.Items {
		chats = append(chats, dto.NewChatResponse(item))
	}
	dto.SuccessWithPage(c, dto.ChatListResponse{Chats: chats},
		dto.NewPageMeta(page.Page, page.PageSize, int(result.Total)))
}

// GetChat 会话详情
// @Summary 会话详情
// @Tags Chats
// @Produce json
// @Param cid path string true "会话 ID"
// @Success 200 {object} dto.Response[dto.ChatResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/chats/{cid} [get]
func (h *ChatHandler) GetChat(c *gin.Context) {
	ctx := c.Request.Context()
	chatID := dto.BindChatID(c)

	chatEnt, err := h.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		respondError(ctx, c, err, "failed to get chat")
		return
	}
	dto.Success(c, dto.NewChatResponse(chatEnt))
}

// UpdateChat 更新会话
// @Summary 更新会话标题、提示词或会话状态
// @Tags Chats
// @Accept json
// @Produce json
// @Param cid path string true "会话 ID"
// @Param body body dto.UpdateChatRequest true "更新会话请求"
// @Success 200 {object} dto.Response[dto.ChatResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/chats/{cid} [put]
func (h *ChatHandler) UpdateChat(c *gin.Context) {
	ctx := c.Request.Context()
	chatID := dto.BindChatID(c)

	var req dto.UpdateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	chatEnt, err := h.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		respondError(ctx, c, err, "failed to get chat")
		return
	}

	if req.Title != nil {
		chatEnt.Title = *req.Title
	}
	if req.PromptCode != nil {
		chatEnt.PromptCode = *req.PromptCode
	}
	if req.State != nil {
		chatEnt.State = entity.ChatState(*req.State)
	}

	if err := h.chatRepo.Update(ctx, chatEnt); err != nil {
		respondError(ctx, c, err, "failed to update chat")
		return
	}
	if h.cache != nil {
		if err := h.cache.InvalidateChat(ctx, chatID); err != nil {
			logger.Warn(ctx, "failed to invalidate chat cache", "chat_id", chatID)
		}
	}
	dto.Success(c, dto.NewChatResponse(chatEnt))
}

// ListTurns 对话轮次列表
// @Summary 对话轮次列表
// @Tags Chats
// @Produce json
// @Param cid path string true "会话 ID"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.Response[dto.TurnListResponse]
// @Router /v1/chats/{cid}/turns [get]
func (h *ChatHandler) ListTurns(c *gin.Context) {
	ctx := c.Request.Context()
	chatID := dto.BindChatID(c)
	page := dto.BindPage(c)

	result, err := h.turnRepo.ListByChat(ctx, chatID, repository.NewPagination(page.Page, page.PageSize))
	if err != nil {
		respondError(ctx, c, err, "failed to list turns")
		return
	}

	turns := make([]*dto.TurnResponse, 0, len(result.Items))
	for _, item := range result.Items {
		turns = append(turns, dto.NewTurnResponse(item))
	}
	dto.SuccessWithPage(c, dto.TurnListResponse{Turns: turns},
		dto.NewPageMeta(page.Page, page.PageSize, int(result.Total)))
}

// AskQuestion 发起一轮问答
// @Summary 发起一轮问答
// @Description 受理后立即返回，阶段事件与回答通过会话流推送
// @Tags Chats
// @Accept json
// @Produce json
// @Param cid path string true "会话 ID"
// @Param body body dto.QuestionRequest true "提问请求"
// @Success 202 {object} dto.Response[dto.QuestionAcceptedResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/chats/{cid}/question [post]
func (h *ChatHandler) AskQuestion(c *gin.Context) {
	ctx := c.Request.Context()
	chatID := dto.BindChatID(c)

	var req dto.QuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	err := h.orchestrator.Answer(ctx, chat.QuestionInput{
		SessionKey: req.SessionKey,
		ChatID:     chatID,
		Query:      req.Query,
		Collection: req.Collection,
		PromptCode: req.PromptCode,
	})
	if err != nil {
		respondError(ctx, c, err, "failed to accept question")
		return
	}
	dto.Accepted(c, dto.QuestionAcceptedResponse{SessionKey: req.SessionKey})
}
