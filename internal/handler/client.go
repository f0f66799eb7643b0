package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wacrm/internal/repository"
)

type ClientHandler interface {
	GetClientByID(c *gin.Context)
	UpdateClient(c *gin.Context)
}

type clientHandler struct {
	clientRepo repository.ClientRepository
	logger     *zap.Logger
}

func NewClientHandler(clientRepo repository.ClientRepository, logger *zap.Logger) ClientHandler {
	return &clientHandler{
		clientRepo: clientRepo,
		logger:     logger,
	}
}

// GetClientByID handles GET /api/clients/:id
func (h *clientHandler) GetClientByID(c *gin.Context) {
	id := c.Param("id")

	client, err := h.clientRepo.GetClientByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get client", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve client"})
		return
	}
	if client == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Client not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"client": client})
}

type updateClientRequest struct {
	FullName *string `json:"full_name"`
	Status   string  `json:"status"`
	Notes    *string `json:"notes"`
}

// UpdateClient handles PUT /api/clients/:id. Changed client names reach the
// conversation list through the realtime supplementary fetch, not here.
func (h *clientHandler) UpdateClient(c *gin.Context) {
	id := c.Param("id")

	var req updateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, err := h.clientRepo.GetClientByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get client", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve client"})
		return
	}
	if client == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Client not found"})
		return
	}

	if req.FullName != nil {
		client.FullName = req.FullName
	}
	if req.Status != "" {
		client.Status = req.Status
	}
	if req.Notes != nil {
		client.Notes = req.Notes
	}
	if err := h.clientRepo.UpdateClient(c.Request.Context(), client); err != nil {
		h.logger.Error("Failed to update client", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update client"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"client": client})
}
