package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/draftforge/draftforge-backend/internal/logger"
	"github.com/draftforge/draftforge-backend/internal/sse"
)

// SSEHandler streams pipeline progress events. Each connection subscribes to
// its tenant's channel, so a dashboard sees every plan the tenant runs.
type SSEHandler struct {
	log *logger.Logger
	hub *sse.SSEHub
}

func NewSSEHandler(baseLog *logger.Logger, hub *sse.SSEHub) *SSEHandler {
	return &SSEHandler{
		log: baseLog.With("handler", "SSEHandler"),
		hub: hub,
	}
}

func (h *SSEHandler) Stream(c *gin.Context) {
	rd, ok := identity(c)
	if !ok {
		return
	}

	client := h.hub.NewSSEClient(rd.TenantID)
	h.hub.AddChannel(client, rd.TenantID.String())
	defer h.hub.CloseClient(client)

	h.hub.ServeHTTP(c.Writer, c.Request, client)
}
