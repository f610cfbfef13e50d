package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h Handlers) ListConversations(c *gin.Context) {
	list, err := h.Conversations.List(c.Request.Context(), c.Query("view"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if list == nil {
		c.JSON(http.StatusOK, gin.H{"conversations": []any{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": list})
}

func (h Handlers) GetConversation(c *gin.Context) {
	conv, msgs, err := h.Conversations.Thread(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv, "messages": msgs})
}

type renameRequest struct {
	ContactName *string `json:"contactName"`
}

func (h Handlers) RenameContact(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ContactName == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "contactName required"})
		return
	}
	conv, err := h.Conversations.Rename(c.Request.Context(), id.VolunteerID, c.Param("id"), *req.ContactName)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h Handlers) ResolveConversation(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	conv, err := h.Conversations.Resolve(c.Request.Context(), id.VolunteerID, c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h Handlers) ReopenConversation(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	conv, err := h.Conversations.Reopen(c.Request.Context(), id.VolunteerID, c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}
