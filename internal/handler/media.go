package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wacrm/internal/repository"
)

type MediaHandler interface {
	UpdateFeedback(c *gin.Context)
}

type mediaHandler struct {
	mediaRepo repository.MediaRepository
	logger    *zap.Logger
}

func NewMediaHandler(mediaRepo repository.MediaRepository, logger *zap.Logger) MediaHandler {
	return &mediaHandler{
		mediaRepo: mediaRepo,
		logger:    logger,
	}
}

type feedbackRequest struct {
	Feedback string `json:"feedback" binding:"required"`
}

// UpdateFeedback handles PUT /api/media/:id/feedback. Operators grade the
// annotation pipeline's verdicts; the grades feed its training set.
func (h *mediaHandler) UpdateFeedback(c *gin.Context) {
	id := c.Param("id")

	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Feedback != "positive" && req.Feedback != "negative" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid feedback. Valid values: positive, negative"})
		return
	}

	media, err := h.mediaRepo.GetMediaByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get media", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve media"})
		return
	}
	if media == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Media not found"})
		return
	}

	if err := h.mediaRepo.UpdateFeedback(c.Request.Context(), id, req.Feedback); err != nil {
		h.logger.Error("Failed to update media feedback", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update feedback"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Feedback recorded successfully"})
}
