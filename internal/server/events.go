package server

import (
	"io"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/solace/backend/internal/realtime"
	"github.com/gin-gonic/gin"
)

// handleEvents streams the author's realtime events as server-sent events until the client disconnects.
func (h *httpHandler) handleEvents(c *gin.Context) {
	authorID := authorFromContext(c).String()
	ctx := c.Request.Context()

	stream, cleanup := h.realtime.Subscribe(ctx, authorID)
	defer cleanup()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(event.Type, event)
			return true
		case now := <-ticker.C:
			c.SSEvent(realtime.EventHeartbeat, gin.H{"timestamp": now.UTC()})
			return true
		}
	})
}
