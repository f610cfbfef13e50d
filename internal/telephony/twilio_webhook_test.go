package telephony

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseTwilioInboundSMS(t *testing.T) {
	body := strings.NewReader("MessageSid=SM123&From=%2B15551234567&To=%2B15557654321&Body=Hola+amigo&NumMedia=0")
	r := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/sms", body)
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if err := r.ParseForm(); err != nil {
		t.Fatalf("parse form: %v", err)
	}

	form := ParseTwilioInboundSMS(r)
	if form.MessageSid != "SM123" {
		t.Fatalf("expected MessageSid, got %q", form.MessageSid)
	}
	if form.From != "+15551234567" || form.To != "+15557654321" {
		t.Fatalf("unexpected from/to: %q %q", form.From, form.To)
	}
	if form.Body != "Hola amigo" || form.NumMedia != "0" {
		t.Fatalf("unexpected body/media %q %q", form.Body, form.NumMedia)
	}
}

func TestSignedURL(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "http://internal:8080/webhooks/twilio/sms?x=1", nil)
	if got := SignedURL(r, "https://relay.example.org/"); got != "https://relay.example.org/webhooks/twilio/sms?x=1" {
		t.Fatalf("public base: got %q", got)
	}

	r.Header.Set("X-Forwarded-Proto", "https, http")
	if got := SignedURL(r, ""); got != "https://internal:8080/webhooks/twilio/sms?x=1" {
		t.Fatalf("forwarded proto: got %q", got)
	}

	r = httptest.NewRequest(http.MethodPost, "http://relay.example.org/webhooks/twilio/sms", nil)
	r.TLS = &tls.ConnectionState{}
	if got := SignedURL(r, ""); got != "https://relay.example.org/webhooks/twilio/sms" {
		t.Fatalf("tls: got %q", got)
	}
}
