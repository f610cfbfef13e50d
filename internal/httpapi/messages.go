package httpapi

import (
	"net/http"

	"sms-relay/internal/auth"
	"sms-relay/internal/dispatch"

	"github.com/gin-gonic/gin"
)

type sendRequest struct {
	ConversationID   string `json:"conversationId"`
	MessageText      string `json:"messageText"`
	VolunteerID      string `json:"volunteerId"`
	VolunteerName    string `json:"volunteerName"`
	SendUntranslated bool   `json:"sendUntranslated"`
}

// Send dispatches a volunteer reply. Delivery and translation failures are
// 200 responses with success=false.
func (h Handlers) Send(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.ConversationID == "" || req.MessageText == "" || req.VolunteerID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}
	if !sameVolunteer(c, id, req.VolunteerID) {
		return
	}

	res, err := h.Dispatch.Send(c.Request.Context(), dispatch.Request{
		ConversationID:   req.ConversationID,
		Text:             req.MessageText,
		VolunteerID:      req.VolunteerID,
		VolunteerName:    req.VolunteerName,
		SendUntranslated: req.SendUntranslated,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sendResponse(res))
}

type retryRequest struct {
	VolunteerID   string `json:"volunteerId"`
	VolunteerName string `json:"volunteerName"`
}

// RetryMessage resends a failed outbound message. The acting volunteer
// defaults to the token's.
func (h Handlers) RetryMessage(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	var req retryRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	if req.VolunteerID == "" {
		req.VolunteerID = id.VolunteerID
	}
	if req.VolunteerName == "" && req.VolunteerID == id.VolunteerID {
		req.VolunteerName = id.Name
	}
	if !sameVolunteer(c, id, req.VolunteerID) {
		return
	}

	res, err := h.Dispatch.Retry(c.Request.Context(), c.Param("id"), req.VolunteerID, req.VolunteerName)
	if err != nil {
		abortWithError(c, err)
		return
	}
	body := sendResponse(res)
	if res.ReplacedMessageID != "" {
		body["replacedMessageId"] = res.ReplacedMessageID
	}
	c.JSON(http.StatusOK, body)
}

// DeleteMessage removes a failed outbound message.
func (h Handlers) DeleteMessage(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	if err := h.Conversations.DeleteFailedMessage(c.Request.Context(), id.VolunteerID, c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func sendResponse(res dispatch.Result) gin.H {
	if res.Outcome == dispatch.OutcomeTranslationFailed {
		return gin.H{
			"success":          false,
			"translationError": res.TranslationError,
			"originalText":     res.OriginalText,
		}
	}
	var errMsg any
	if res.Error != "" {
		errMsg = res.Error
	}
	return gin.H{
		"success":        res.Success(),
		"messageId":      res.MessageID,
		"error":          errMsg,
		"translatedText": res.TranslatedText,
	}
}

// sameVolunteer rejects acting on behalf of another volunteer.
func sameVolunteer(c *gin.Context, id auth.Identity, volunteerID string) bool {
	if volunteerID != id.VolunteerID {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "volunteerId does not match token"})
		return false
	}
	return true
}
