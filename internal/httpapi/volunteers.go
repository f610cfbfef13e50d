package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h Handlers) ListVolunteers(c *gin.Context) {
	list, err := h.Volunteers.List(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"volunteers": list})
}

func (h Handlers) Heartbeat(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	p, err := h.Volunteers.Heartbeat(c.Request.Context(), id.VolunteerID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h Handlers) GoOffline(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	p, err := h.Volunteers.GoOffline(c.Request.Context(), id.VolunteerID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
