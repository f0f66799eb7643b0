package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wacrm/internal/engine"
	"wacrm/internal/models"
	"wacrm/internal/repository"
)

const defaultMessageLimit = 50

type MessageHandler interface {
	GetMessages(c *gin.Context)
	SendMessage(c *gin.Context)
	GetClientMessages(c *gin.Context)
}

type messageHandler struct {
	messageRepo      repository.MessageRepository
	conversationRepo repository.ConversationRepository
	phoneRepo        repository.PhoneRepository
	eng              *engine.Engine
	logger           *zap.Logger
}

func NewMessageHandler(
	messageRepo repository.MessageRepository,
	conversationRepo repository.ConversationRepository,
	phoneRepo repository.PhoneRepository,
	eng *engine.Engine,
	logger *zap.Logger,
) MessageHandler {
	return &messageHandler{
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		phoneRepo:        phoneRepo,
		eng:              eng,
		logger:           logger,
	}
}

// GetMessages handles GET /api/conversations/:id/messages
// Query parameters:
// - limit: max messages to return, newest kept (optional, default 50)
func (h *messageHandler) GetMessages(c *gin.Context) {
	conversationID := c.Param("id")

	limit := defaultMessageLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = parsed
	}

	messages, err := h.messageRepo.GetMessagesByConversation(c.Request.Context(), conversationID, limit)
	if err != nil {
		h.logger.Error("Failed to get messages", zap.String("conversation_id", conversationID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

type sendMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

// SendMessage handles POST /api/conversations/:id/messages. The message goes
// out through the delivery webhook; the persisted row arrives later via the
// realtime stream. Number routing comes from the conversation and its phone.
func (h *messageHandler) SendMessage(c *gin.Context) {
	conversationID := c.Param("id")

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv, err := h.conversationRepo.GetConversationByID(c.Request.Context(), conversationID)
	if err != nil {
		h.logger.Error("Failed to get conversation", zap.String("id", conversationID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve conversation"})
		return
	}
	if conv == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}
	if conv.Status != models.ConversationOpen {
		c.JSON(http.StatusConflict, gin.H{"error": "Conversation is closed"})
		return
	}
	if conv.Client == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Conversation has no client to reply to"})
		return
	}

	phone, err := h.phoneRepo.GetPhoneByID(c.Request.Context(), conv.PhoneID)
	if err != nil || phone == nil {
		h.logger.Error("Failed to get phone for send", zap.String("phone_id", conv.PhoneID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve sending phone"})
		return
	}

	err = h.eng.SendReply(c.Request.Context(), conversationID, conv.PhoneID,
		conv.Client.PhoneNumber, phone.PhoneNumber, req.Body)
	if err != nil {
		h.logger.Error("Failed to send message", zap.String("conversation_id", conversationID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to send message"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Message queued for delivery"})
}

// GetClientMessages handles GET /api/clients/:id/messages
// Query parameters:
// - phone_id: required
// - status: conversation status filter, "open" (default) or "closed"
func (h *messageHandler) GetClientMessages(c *gin.Context) {
	clientID := c.Param("id")
	phoneID := c.Query("phone_id")
	if phoneID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone_id is required"})
		return
	}
	status := c.DefaultQuery("status", "open")
	if status != "open" && status != "closed" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status. Valid values: open, closed"})
		return
	}

	messages, err := h.messageRepo.GetMessagesByClient(c.Request.Context(), clientID, phoneID, status)
	if err != nil {
		h.logger.Error("Failed to get client messages", zap.String("client_id", clientID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}
