package telephony

import (
	"net/http"
	"strings"
)

// TwilioInboundSMS captures the subset of messaging webhook fields we use.
// Twilio posts application/x-www-form-urlencoded.
type TwilioInboundSMS struct {
	MessageSid string
	From       string
	To         string
	Body       string
	NumMedia   string
}

// ParseTwilioInboundSMS reads the form fields. The caller must have already
// parsed the form (r.ParseForm) to verify the signature.
func ParseTwilioInboundSMS(r *http.Request) TwilioInboundSMS {
	return TwilioInboundSMS{
		MessageSid: strings.TrimSpace(r.PostFormValue("MessageSid")),
		From:       normalizePhone(r.PostFormValue("From")),
		To:         normalizePhone(r.PostFormValue("To")),
		Body:       r.PostFormValue("Body"),
		NumMedia:   r.PostFormValue("NumMedia"),
	}
}

func normalizePhone(s string) string {
	return strings.TrimSpace(s)
}

// SignedURL rebuilds the URL Twilio signed. When publicBaseURL is set it
// replaces scheme and host (the service usually sits behind a proxy);
// otherwise they come from the request and X-Forwarded-Proto.
func SignedURL(r *http.Request, publicBaseURL string) string {
	if publicBaseURL != "" {
		return strings.TrimRight(publicBaseURL, "/") + r.URL.RequestURI()
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = strings.TrimSpace(strings.Split(p, ",")[0])
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
