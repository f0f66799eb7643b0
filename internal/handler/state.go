package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wacrm/internal/engine"
)

type StateHandler interface {
	GetState(c *gin.Context)
}

type stateHandler struct {
	eng *engine.Engine
}

func NewStateHandler(eng *engine.Engine) StateHandler {
	return &stateHandler{eng: eng}
}

// GetState handles GET /api/state. It returns the engine's live view: the
// selected phone, the reconciled conversation list, the active chat's
// messages (optimistic placeholders included) and the realtime connection
// health.
func (h *stateHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"state": h.eng.Snapshot()})
}
