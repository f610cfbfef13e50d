package httpapi

import (
	"net/http"
	"time"

	"sms-relay/pkg/logger"

	"github.com/gin-gonic/gin"
)

// StreamEvents relays the change feed as server-sent events until the
// client goes away.
func (h Handlers) StreamEvents(c *gin.Context) {
	if h.Feed == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "change feed not configured"})
		return
	}
	ctx := c.Request.Context()
	changes, err := h.Feed.Subscribe(ctx)
	if err != nil {
		logger.FromGin(c).Error("change feed subscribe failed", "err", err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "change feed unavailable"})
		return
	}

	keepAlive := h.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 25 * time.Second
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.SSEvent("ping", time.Now().UTC().Unix())
		case ch, ok := <-changes:
			if !ok {
				return
			}
			c.SSEvent("change", ch)
		}
		c.Writer.Flush()
	}
}
