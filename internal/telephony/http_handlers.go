package telephony

import (
	"context"
	"errors"
	"net/http"

	"sms-relay/internal/ingest"
	"sms-relay/pkg/logger"

	"github.com/gin-gonic/gin"
)

// InboundReceiver is implemented by the ingestion service.
type InboundReceiver interface {
	Receive(ctx context.Context, w ingest.Webhook) (ingest.Result, error)
}

// TwilioSMSWebhookHandler adapts the Twilio messaging webhook to ingestion
// and acknowledges with empty TwiML.
//
// No business logic here.
type TwilioSMSWebhookHandler struct {
	Ingest InboundReceiver

	// PublicBaseURL is the externally visible origin Twilio calls.
	PublicBaseURL string
}

func (h TwilioSMSWebhookHandler) HandleInboundSMS(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Ingest == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "ingestion not configured"})
		return
	}

	// An unreadable body cannot be verified, so it is rejected like a bad signature.
	if err := c.Request.ParseForm(); err != nil {
		log.Warn("twilio webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
		return
	}

	form := ParseTwilioInboundSMS(c.Request)
	res, err := h.Ingest.Receive(c.Request.Context(), ingest.Webhook{
		URL:       SignedURL(c.Request, h.PublicBaseURL),
		Signature: c.GetHeader(SignatureHeader),
		Params:    c.Request.PostForm,
	})
	switch {
	case errors.Is(err, ingest.ErrUnauthenticated):
		log.Warn("twilio webhook rejected", "reason", "signature")
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
		return
	case errors.Is(err, ingest.ErrInvalidPayload):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing From or Body"})
		return
	case err != nil:
		log.Error("inbound sms failed", "message_sid", form.MessageSid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to process inbound message"})
		return
	}

	log.Info("inbound sms accepted",
		"message_sid", form.MessageSid,
		"to", form.To,
		"num_media", form.NumMedia,
		"duplicate", res.Duplicate,
	)

	twiml, err := RenderEmptyTwiML()
	if err != nil {
		log.Error("twiml render failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "twiml failed"})
		return
	}
	c.Data(http.StatusOK, TwiMLContentType, []byte(twiml))
}
