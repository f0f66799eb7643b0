package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wacrm/internal/engine"
	"wacrm/internal/models"
	"wacrm/internal/repository"
)

type PhoneHandler interface {
	GetAllPhones(c *gin.Context)
	GetPhoneByID(c *gin.Context)
	CreatePhone(c *gin.Context)
	UpdatePhone(c *gin.Context)
	DeletePhone(c *gin.Context)
	SetDefaultPhone(c *gin.Context)
	SelectPhone(c *gin.Context)
}

type phoneHandler struct {
	phoneRepo repository.PhoneRepository
	eng       *engine.Engine
	logger    *zap.Logger
}

func NewPhoneHandler(phoneRepo repository.PhoneRepository, eng *engine.Engine, logger *zap.Logger) PhoneHandler {
	return &phoneHandler{
		phoneRepo: phoneRepo,
		eng:       eng,
		logger:    logger,
	}
}

// GetAllPhones handles GET /api/phones
func (h *phoneHandler) GetAllPhones(c *gin.Context) {
	phones, err := h.phoneRepo.GetAllPhones(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get phones", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve phones"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"phones": phones})
}

// GetPhoneByID handles GET /api/phones/:id
func (h *phoneHandler) GetPhoneByID(c *gin.Context) {
	id := c.Param("id")

	phone, err := h.phoneRepo.GetPhoneByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get phone", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve phone"})
		return
	}
	if phone == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Phone not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"phone": phone})
}

type createPhoneRequest struct {
	Name        string `json:"name" binding:"required"`
	PhoneNumber string `json:"phone_number" binding:"required"`
	DisplayName string `json:"display_name"`
	IsDefault   bool   `json:"is_default"`
}

// CreatePhone handles POST /api/phones
func (h *phoneHandler) CreatePhone(c *gin.Context) {
	var req createPhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	phone := &models.Phone{
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		DisplayName: req.DisplayName,
		Status:      "active",
		IsDefault:   req.IsDefault,
	}
	if err := h.phoneRepo.CreatePhone(c.Request.Context(), phone); err != nil {
		h.logger.Error("Failed to create phone", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create phone"})
		return
	}
	if req.IsDefault {
		if err := h.phoneRepo.SetDefaultPhone(c.Request.Context(), phone.ID); err != nil {
			h.logger.Error("Failed to set default phone", zap.String("id", phone.ID), zap.Error(err))
		}
	}

	c.JSON(http.StatusCreated, gin.H{"phone": phone})
}

type updatePhoneRequest struct {
	Name        string `json:"name" binding:"required"`
	DisplayName string `json:"display_name"`
	Status      string `json:"status" binding:"required"`
}

// UpdatePhone handles PUT /api/phones/:id
func (h *phoneHandler) UpdatePhone(c *gin.Context) {
	id := c.Param("id")

	var req updatePhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	validStatuses := map[string]bool{
		"pending":  true,
		"active":   true,
		"disabled": true,
	}
	if !validStatuses[req.Status] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status. Valid values: pending, active, disabled"})
		return
	}

	phone, err := h.phoneRepo.GetPhoneByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get phone", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve phone"})
		return
	}
	if phone == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Phone not found"})
		return
	}

	phone.Name = req.Name
	phone.DisplayName = req.DisplayName
	phone.Status = req.Status
	if err := h.phoneRepo.UpdatePhone(c.Request.Context(), phone); err != nil {
		h.logger.Error("Failed to update phone", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update phone"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"phone": phone})
}

// DeletePhone handles DELETE /api/phones/:id
func (h *phoneHandler) DeletePhone(c *gin.Context) {
	id := c.Param("id")

	if err := h.phoneRepo.DeletePhone(c.Request.Context(), id); err != nil {
		h.logger.Error("Failed to delete phone", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete phone"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Phone deleted successfully"})
}

// SetDefaultPhone handles PUT /api/phones/:id/default
func (h *phoneHandler) SetDefaultPhone(c *gin.Context) {
	id := c.Param("id")

	phone, err := h.phoneRepo.GetPhoneByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get phone", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve phone"})
		return
	}
	if phone == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Phone not found"})
		return
	}

	if err := h.phoneRepo.SetDefaultPhone(c.Request.Context(), id); err != nil {
		h.logger.Error("Failed to set default phone", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to set default phone"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Default phone updated successfully"})
}

type selectPhoneRequest struct {
	PhoneID    string `json:"phone_id"`
	ShowClosed bool   `json:"show_closed"`
}

// SelectPhone handles POST /api/phones/select. It points the sync engine at
// a phone (or at none, with an empty phone_id) and picks the open/closed
// conversation filter.
func (h *phoneHandler) SelectPhone(c *gin.Context) {
	var req selectPhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.PhoneID != "" {
		phone, err := h.phoneRepo.GetPhoneByID(c.Request.Context(), req.PhoneID)
		if err != nil {
			h.logger.Error("Failed to get phone", zap.String("id", req.PhoneID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve phone"})
			return
		}
		if phone == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Phone not found"})
			return
		}
	}

	h.eng.SelectPhone(req.PhoneID, req.ShowClosed)
	c.JSON(http.StatusOK, gin.H{"message": "Phone selected"})
}
