package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"sms-relay/internal/httpapi"
	"sms-relay/internal/telephony"

	"github.com/gin-gonic/gin"
)

func TestRegisterRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	deny := func(c *gin.Context) { c.AbortWithStatus(http.StatusUnauthorized) }
	registerRoutes(r, httpapi.Handlers{}, telephony.TwilioSMSWebhookHandler{}, deny)

	want := map[string]bool{
		"GET /healthz":                       true,
		"POST /webhooks/twilio/sms":          true,
		"POST /v1/auth/login":                true,
		"POST /v1/auth/refresh":              true,
		"GET /v1/me":                         true,
		"GET /v1/events":                     true,
		"POST /v1/send":                      true,
		"POST /v1/messages/:id/retry":        true,
		"DELETE /v1/messages/:id":            true,
		"GET /v1/conversations":              true,
		"GET /v1/conversations/:id":          true,
		"PATCH /v1/conversations/:id":        true,
		"POST /v1/conversations/:id/resolve": true,
		"POST /v1/conversations/:id/reopen":  true,
		"GET /v1/volunteers":                 true,
		"POST /v1/volunteers/me/heartbeat":   true,
		"POST /v1/volunteers/me/offline":     true,
	}
	for _, rt := range r.Routes() {
		delete(want, rt.Method+" "+rt.Path)
	}
	if len(want) != 0 {
		t.Fatalf("routes not registered: %v", want)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/conversations", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected protected route to require auth, got %d", w.Code)
	}
}
