package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wacrm/internal/engine"
	"wacrm/internal/repository"
)

type ConversationHandler interface {
	GetConversations(c *gin.Context)
	GetConversationByID(c *gin.Context)
	OpenConversation(c *gin.Context)
	CloseConversation(c *gin.Context)
	ReopenConversation(c *gin.Context)
}

type conversationHandler struct {
	conversationRepo repository.ConversationRepository
	eng              *engine.Engine
	closedLimit      int
	logger           *zap.Logger
}

func NewConversationHandler(conversationRepo repository.ConversationRepository, eng *engine.Engine, closedLimit int, logger *zap.Logger) ConversationHandler {
	return &conversationHandler{
		conversationRepo: conversationRepo,
		eng:              eng,
		closedLimit:      closedLimit,
		logger:           logger,
	}
}

// GetConversations handles GET /api/conversations
// Query parameters:
// - phone_id: required
// - status: "open" (default) or "closed"
func (h *conversationHandler) GetConversations(c *gin.Context) {
	phoneID := c.Query("phone_id")
	if phoneID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone_id is required"})
		return
	}
	status := c.DefaultQuery("status", "open")

	var err error
	var convs interface{}
	switch status {
	case "open":
		convs, err = h.conversationRepo.GetOpenConversations(c.Request.Context(), phoneID)
	case "closed":
		convs, err = h.conversationRepo.GetClosedConversations(c.Request.Context(), phoneID, h.closedLimit)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status. Valid values: open, closed"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get conversations", zap.String("phone_id", phoneID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve conversations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// GetConversationByID handles GET /api/conversations/:id
func (h *conversationHandler) GetConversationByID(c *gin.Context) {
	id := c.Param("id")

	conv, err := h.conversationRepo.GetConversationByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get conversation", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve conversation"})
		return
	}
	if conv == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// OpenConversation handles POST /api/conversations/:id/open. It makes the
// conversation the engine's active one, which also marks it read.
func (h *conversationHandler) OpenConversation(c *gin.Context) {
	id := c.Param("id")

	conv, err := h.conversationRepo.GetConversationByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get conversation", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve conversation"})
		return
	}
	if conv == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	h.eng.OpenConversation(id)
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

type closeConversationRequest struct {
	Reason   string  `json:"reason"`
	ClosedBy *string `json:"closed_by"`
}

// CloseConversation handles POST /api/conversations/:id/close
func (h *conversationHandler) CloseConversation(c *gin.Context) {
	id := c.Param("id")

	var req closeConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Reason == "" {
		req.Reason = "resolved"
	}

	if err := h.conversationRepo.CloseConversation(c.Request.Context(), id, req.Reason, req.ClosedBy); err != nil {
		h.logger.Error("Failed to close conversation", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to close conversation"})
		return
	}

	h.eng.RefreshConversations()
	c.JSON(http.StatusOK, gin.H{"message": "Conversation closed successfully"})
}

// ReopenConversation handles POST /api/conversations/:id/reopen. The partial
// unique index on open conversations rejects a reopen when the client
// already has another open chat on the same phone.
func (h *conversationHandler) ReopenConversation(c *gin.Context) {
	id := c.Param("id")

	if err := h.conversationRepo.ReopenConversation(c.Request.Context(), id); err != nil {
		h.logger.Error("Failed to reopen conversation", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{"error": "Failed to reopen conversation"})
		return
	}

	h.eng.RefreshConversations()
	c.JSON(http.StatusOK, gin.H{"message": "Conversation reopened successfully"})
}
