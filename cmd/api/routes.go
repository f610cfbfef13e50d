package main

import (
	"sms-relay/internal/httpapi"
	"sms-relay/internal/telephony"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, webhook telephony.TwilioSMSWebhookHandler, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", h.Health)

	// Carrier webhooks are authenticated by signature, not bearer token.
	r.POST("/webhooks/twilio/sms", webhook.HandleInboundSMS)

	authGroup := r.Group("/v1/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
	}

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		v1.GET("/me", h.Me)
		v1.GET("/events", h.StreamEvents)

		v1.POST("/send", h.Send)
		v1.POST("/messages/:id/retry", h.RetryMessage)
		v1.DELETE("/messages/:id", h.DeleteMessage)

		convs := v1.Group("/conversations")
		{
			convs.GET("", h.ListConversations)
			convs.GET("/:id", h.GetConversation)
			convs.PATCH("/:id", h.RenameContact)
			convs.POST("/:id/resolve", h.ResolveConversation)
			convs.POST("/:id/reopen", h.ReopenConversation)
		}

		vols := v1.Group("/volunteers")
		{
			vols.GET("", h.ListVolunteers)
			vols.POST("/me/heartbeat", h.Heartbeat)
			vols.POST("/me/offline", h.GoOffline)
		}
	}
}
