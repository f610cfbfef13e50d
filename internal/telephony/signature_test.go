package telephony

import (
	"net/url"
	"testing"
)

// Worked example from Twilio's webhook security documentation.
func TestComputeSignature_KnownVector(t *testing.T) {
	params := url.Values{}
	params.Set("CallSid", "CA1234567890ABCDE")
	params.Set("Caller", "+12349013030")
	params.Set("Digits", "1234")
	params.Set("From", "+12349013030")
	params.Set("To", "+18005551212")

	got := ComputeSignature("12345", "https://mycompany.com/myapp.php?foo=1&bar=2", params)
	if want := "0/KCTR6DLpKmkAf8muzZqo1nDgQ="; got != want {
		t.Fatalf("signature mismatch: got %s want %s", got, want)
	}
}

func TestRequestValidator(t *testing.T) {
	const token = "secret-token"
	const u = "https://relay.example.org/webhooks/twilio/sms"
	params := url.Values{"From": {"+15551234567"}, "Body": {"hola"}, "MessageSid": {"SM1"}}
	sig := ComputeSignature(token, u, params)

	v := NewRequestValidator(token)
	if !v.Valid(u, sig, params) {
		t.Fatalf("expected valid signature")
	}
	if v.Valid(u, "", params) {
		t.Fatalf("missing signature must not validate")
	}
	if v.Valid(u+"?x=1", sig, params) {
		t.Fatalf("different url must not validate")
	}

	tampered := url.Values{"From": {"+15551234567"}, "Body": {"adios"}, "MessageSid": {"SM1"}}
	if v.Valid(u, sig, tampered) {
		t.Fatalf("tampered body must not validate")
	}
	if NewRequestValidator("").Valid(u, sig, params) {
		t.Fatalf("unconfigured token must not validate")
	}
}
