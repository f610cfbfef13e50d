package telephony

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTwilioClient_SendSMS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/2010-04-01/Accounts/AC123/Messages.json" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "token" {
			t.Errorf("unexpected basic auth %q %q", user, pass)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("To") != "+15551234567" || r.PostForm.Get("From") != "+15550000000" || r.PostForm.Get("Body") != "hola" {
			t.Errorf("unexpected form %v", r.PostForm)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM999","status":"queued"}`))
	}))
	defer srv.Close()

	c := NewTwilioClient(TwilioConfig{AccountSID: "AC123", AuthToken: "token", BaseURL: srv.URL})
	res, err := c.SendSMS(context.Background(), SendSMSRequest{To: "+15551234567", From: "+15550000000", Body: "hola"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.ProviderMessageID != "SM999" || res.Status != "queued" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestTwilioClient_SendSMSError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"The 'To' number is not a valid phone number.","status":400}`))
	}))
	defer srv.Close()

	c := NewTwilioClient(TwilioConfig{AccountSID: "AC123", AuthToken: "token", BaseURL: srv.URL})
	_, err := c.SendSMS(context.Background(), SendSMSRequest{To: "bad", From: "+15550000000", Body: "hola"})
	var apiErr *TwilioError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected TwilioError, got %v", err)
	}
	if apiErr.Code != 21211 || apiErr.HTTPStatus != http.StatusBadRequest {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestTwilioClient_RequiresFields(t *testing.T) {
	c := NewTwilioClient(TwilioConfig{AccountSID: "AC123", AuthToken: "token"})
	if _, err := c.SendSMS(context.Background(), SendSMSRequest{To: "+1"}); err == nil {
		t.Fatalf("expected error for missing from/body")
	}
}
