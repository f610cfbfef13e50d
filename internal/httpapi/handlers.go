package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"sms-relay/internal/auth"
	"sms-relay/internal/conversations"
	"sms-relay/internal/dispatch"
	"sms-relay/internal/events"
	"sms-relay/internal/volunteers"
	"sms-relay/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Volunteers    *volunteers.Service
	Conversations *conversations.Service
	Dispatch      *dispatch.Service
	Feed          ChangeFeed

	// Checks are run by Health; any failure reports 503.
	Checks map[string]func(ctx context.Context) error

	// KeepAlive is the SSE comment interval on idle streams.
	KeepAlive time.Duration
}

// ChangeFeed is implemented by events.RedisBus.
type ChangeFeed interface {
	Subscribe(ctx context.Context) (<-chan events.Change, error)
}

// Health reports whether the backing stores answer.
func (h Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	var failed []string
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			logger.FromGin(c).Warn("health check failed", "check", name, "err", err)
			failed = append(failed, name)
		}
	}
	if len(failed) > 0 {
		sort.Strings(failed)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "failed": failed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// abortWithError maps service errors onto status codes. Anything unexpected
// is logged and reported as a generic 500.
func abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, conversations.ErrNotFound), errors.Is(err, volunteers.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, conversations.ErrInvalidArgument),
		errors.Is(err, dispatch.ErrInvalidRequest),
		errors.Is(err, volunteers.ErrInvalidInput):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, conversations.ErrInvalidTransition):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "not allowed in the current state"})
	case errors.Is(err, volunteers.ErrConflict):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, volunteers.ErrInvalidCredentials):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		logger.FromGin(c).Error("request failed", "path", c.FullPath(), "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// identity returns the authenticated volunteer or aborts with 401.
func identity(c *gin.Context) (auth.Identity, bool) {
	id, err := auth.IdentityFrom(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return auth.Identity{}, false
	}
	return id, true
}
