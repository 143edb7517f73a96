package api

import (
	"github.com/gin-gonic/gin"

	"seatwatch"
)

// Stream serves the caller's job status updates as Server-Sent Events.
// The connection stays open until the client disconnects.
func (h *Handler) Stream(c *gin.Context) {
	owner := principal(c)
	if owner == "" {
		sendError(c, seatwatch.ErrUnauthorized)
		return
	}
	if err := h.gateway.Serve(c.Request.Context(), c.Writer, owner); err != nil {
		sendError(c, err)
	}
}
