package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sms-relay/internal/audit"
	"sms-relay/internal/auth"
	"sms-relay/internal/config"
	"sms-relay/internal/conversations"
	"sms-relay/internal/dispatch"
	"sms-relay/internal/events"
	"sms-relay/internal/telephony"
	"sms-relay/internal/translation"
	"sms-relay/internal/volunteers"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCarrier struct{ err error }

func (stubCarrier) Name() string { return "stub" }

func (s stubCarrier) SendSMS(ctx context.Context, req telephony.SendSMSRequest) (telephony.SendSMSResult, error) {
	if s.err != nil {
		return telephony.SendSMSResult{}, s.err
	}
	return telephony.SendSMSResult{ProviderMessageID: "SM1"}, nil
}

type stubTranslator struct{}

func (stubTranslator) ToTarget(ctx context.Context, text, target string) translation.TargetResult {
	switch target {
	case "en":
		return translation.TargetResult{TranslatedText: &text}
	case "unknown":
		return translation.TargetResult{Err: "translation: contact language is unknown"}
	}
	out := "[" + target + "] " + text
	return translation.TargetResult{TranslatedText: &out}
}

type testAPI struct {
	router    *gin.Engine
	store     *conversations.MemoryStore
	volunteer volunteers.Volunteer
	token     string
}

func newTestAPI(t *testing.T, carrier telephony.SMSProvider) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := auth.NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Hour, RefreshTokenTTL: 24 * time.Hour})
	require.NoError(t, err)

	store := conversations.NewMemoryStore()
	auditor := audit.NewService(audit.NewMemoryRepo())
	vols := volunteers.NewService(volunteers.NewMemoryRepo(), tokens, time.Minute)
	v, err := vols.Register(context.Background(), "ana@example.org", "Ana", "longenough")
	require.NoError(t, err)
	pair, err := vols.IssueTokens(context.Background(), v)
	require.NoError(t, err)

	h := Handlers{
		Volunteers:    vols,
		Conversations: conversations.NewService(store, auditor),
		Dispatch: dispatch.NewService(store, stubTranslator{}, carrier, auditor,
			dispatch.Config{MaxAttempts: 2, FromNumber: "+15550000000"},
			dispatch.WithSleep(func(context.Context, time.Duration) error { return nil })),
	}

	r := gin.New()
	r.POST("/v1/auth/login", h.Login)
	r.POST("/v1/auth/refresh", h.Refresh)
	v1 := r.Group("/v1", auth.RequireAccessToken(tokens))
	v1.GET("/me", h.Me)
	v1.POST("/send", h.Send)
	v1.POST("/messages/:id/retry", h.RetryMessage)
	v1.DELETE("/messages/:id", h.DeleteMessage)
	v1.GET("/conversations", h.ListConversations)
	v1.GET("/conversations/:id", h.GetConversation)
	v1.PATCH("/conversations/:id", h.RenameContact)
	v1.POST("/conversations/:id/resolve", h.ResolveConversation)
	v1.POST("/conversations/:id/reopen", h.ReopenConversation)
	v1.GET("/volunteers", h.ListVolunteers)
	v1.POST("/volunteers/me/heartbeat", h.Heartbeat)

	return &testAPI{router: r, store: store, volunteer: v, token: pair.AccessToken}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) seed(t *testing.T, lang string) conversations.Conversation {
	t.Helper()
	c, err := a.store.CreateConversation(context.Background(), conversations.Conversation{
		PhoneNumber: "+15551234567", DetectedLanguage: lang, Status: conversations.StatusNew,
	})
	require.NoError(t, err)
	return c
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestSend_Success(t *testing.T) {
	api := newTestAPI(t, stubCarrier{})
	conv := api.seed(t, "es")

	w := api.do(t, http.MethodPost, "/v1/send", gin.H{
		"conversationId": conv.ID, "messageText": "On my way", "volunteerId": api.volunteer.ID, "volunteerName": "Ana",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "[es] On my way", body["translatedText"])
	assert.Nil(t, body["error"])
	assert.NotEmpty(t, body["messageId"])
}

func TestSend_FailuresAreOKResponses(t *testing.T) {
	t.Run("delivery", func(t *testing.T) {
		api := newTestAPI(t, stubCarrier{err: errors.New("carrier down")})
		conv := api.seed(t, "es")
		w := api.do(t, http.MethodPost, "/v1/send", gin.H{
			"conversationId": conv.ID, "messageText": "hi", "volunteerId": api.volunteer.ID,
		})
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "carrier down", body["error"])
		assert.NotEmpty(t, body["messageId"])
	})

	t.Run("translation", func(t *testing.T) {
		api := newTestAPI(t, stubCarrier{})
		conv := api.seed(t, "unknown")
		w := api.do(t, http.MethodPost, "/v1/send", gin.H{
			"conversationId": conv.ID, "messageText": "hi", "volunteerId": api.volunteer.ID,
		})
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "hi", body["originalText"])
		assert.Contains(t, body["translationError"], "unknown")
		_, hasID := body["messageId"]
		assert.False(t, hasID)

		w = api.do(t, http.MethodPost, "/v1/send", gin.H{
			"conversationId": conv.ID, "messageText": "hi", "volunteerId": api.volunteer.ID, "sendUntranslated": true,
		})
		require.Equal(t, http.StatusOK, w.Code)
		body = decode(t, w)
		assert.Equal(t, true, body["success"])
		assert.Nil(t, body["translatedText"])
	})
}

func TestSend_RequestErrors(t *testing.T) {
	api := newTestAPI(t, stubCarrier{})
	conv := api.seed(t, "es")

	w := api.do(t, http.MethodPost, "/v1/send", gin.H{"conversationId": conv.ID, "volunteerId": api.volunteer.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, "/v1/send", gin.H{"conversationId": "nope", "messageText": "hi", "volunteerId": api.volunteer.ID})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodPost, "/v1/send", gin.H{"conversationId": conv.ID, "messageText": "hi", "volunteerId": "someone-else"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	api.token = ""
	w = api.do(t, http.MethodPost, "/v1/send", gin.H{"conversationId": conv.ID, "messageText": "hi", "volunteerId": api.volunteer.ID})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRetryAndDelete(t *testing.T) {
	api := newTestAPI(t, stubCarrier{err: errors.New("carrier down")})
	conv := api.seed(t, "es")
	w := api.do(t, http.MethodPost, "/v1/send", gin.H{"conversationId": conv.ID, "messageText": "hi", "volunteerId": api.volunteer.ID})
	failedID := decode(t, w)["messageId"].(string)

	// Still failing: a new failed message is left next to the old one.
	w = api.do(t, http.MethodPost, "/v1/messages/"+failedID+"/retry", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	_, replaced := body["replacedMessageId"]
	assert.False(t, replaced)

	w = api.do(t, http.MethodDelete, "/v1/messages/"+failedID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = api.do(t, http.MethodDelete, "/v1/messages/"+failedID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(t, http.MethodGet, "/v1/conversations/"+conv.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	msgs := decode(t, w)["messages"].([]any)
	assert.Len(t, msgs, 1)
}

func TestConversationLifecycle(t *testing.T) {
	api := newTestAPI(t, stubCarrier{})
	conv := api.seed(t, "es")

	w := api.do(t, http.MethodGet, "/v1/conversations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["conversations"], 1)

	w = api.do(t, http.MethodPatch, "/v1/conversations/"+conv.ID, gin.H{"contactName": "  Maria "})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Maria", decode(t, w)["contact_name"])

	w = api.do(t, http.MethodPatch, "/v1/conversations/"+conv.ID, gin.H{"contactName": strings.Repeat("x", 101)})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, "/v1/conversations/"+conv.ID+"/resolve", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "resolved", decode(t, w)["status"])

	w = api.do(t, http.MethodGet, "/v1/conversations?view=resolved", nil)
	assert.Len(t, decode(t, w)["conversations"], 1)
	w = api.do(t, http.MethodGet, "/v1/conversations", nil)
	assert.Len(t, decode(t, w)["conversations"], 0)

	w = api.do(t, http.MethodPost, "/v1/conversations/"+conv.ID+"/resolve", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = api.do(t, http.MethodPost, "/v1/conversations/"+conv.ID+"/reopen", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "active", decode(t, w)["status"])

	w = api.do(t, http.MethodGet, "/v1/conversations?view=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginMeAndPresence(t *testing.T) {
	api := newTestAPI(t, stubCarrier{})

	api.token = ""
	w := api.do(t, http.MethodPost, "/v1/auth/login", gin.H{"email": "ana@example.org", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(t, http.MethodPost, "/v1/auth/login", gin.H{"email": "ana@example.org", "password": "longenough"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	api.token = body["access_token"].(string)
	refresh := body["refresh_token"].(string)
	_, leaked := body["volunteer"].(map[string]any)["PasswordHash"]
	assert.False(t, leaked)

	w = api.do(t, http.MethodGet, "/v1/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, api.volunteer.ID, decode(t, w)["id"])

	w = api.do(t, http.MethodPost, "/v1/auth/refresh", gin.H{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["access_token"])

	w = api.do(t, http.MethodPost, "/v1/volunteers/me/heartbeat", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["online"])

	w = api.do(t, http.MethodGet, "/v1/volunteers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	vols := decode(t, w)["volunteers"].([]any)
	require.Len(t, vols, 1)
	assert.Equal(t, true, vols[0].(map[string]any)["online"])
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	ok := func(context.Context) error { return nil }
	h := Handlers{Checks: map[string]func(context.Context) error{"postgres": ok, "redis": ok}}
	r.GET("/healthz", h.Health)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	h.Checks["redis"] = func(context.Context) error { return errors.New("down") }
	r = gin.New()
	r.GET("/healthz", h.Health)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "redis")
}

type staticFeed struct{ changes []events.Change }

func (f staticFeed) Subscribe(ctx context.Context) (<-chan events.Change, error) {
	ch := make(chan events.Change, len(f.changes))
	for _, c := range f.changes {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func TestStreamEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := Handlers{Feed: staticFeed{changes: []events.Change{
		{ID: "e1", Entity: events.EntityMessage, Op: events.OpCreated, RecordID: "m1", ConversationID: "c1"},
	}}}
	r := gin.New()
	r.GET("/v1/events", h.StreamEvents)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/events", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/event-stream"))
	assert.Contains(t, w.Body.String(), "event:change")
	assert.Contains(t, w.Body.String(), `"record_id":"m1"`)
}
