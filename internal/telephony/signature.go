package telephony

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
	"strings"
)

// SignatureHeader carries the webhook signature Twilio computes.
const SignatureHeader = "X-Twilio-Signature"

// ComputeSignature implements Twilio's request signing: HMAC-SHA1 keyed by
// the auth token over the full callback URL followed by every POST parameter
// (keys sorted, each key immediately followed by its value), base64-encoded.
func ComputeSignature(authToken, fullURL string, params url.Values) string {
	var b strings.Builder
	b.WriteString(fullURL)

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		values := append([]string(nil), params[k]...)
		sort.Strings(values)
		for _, v := range values {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// RequestValidator checks webhook signatures against the account auth token.
type RequestValidator struct {
	authToken string
}

func NewRequestValidator(authToken string) RequestValidator {
	return RequestValidator{authToken: authToken}
}

// Valid reports whether signature matches. A missing signature or an
// unconfigured token never validates.
func (v RequestValidator) Valid(fullURL, signature string, params url.Values) bool {
	if v.authToken == "" || signature == "" {
		return false
	}
	expected := ComputeSignature(v.authToken, fullURL, params)
	return hmac.Equal([]byte(expected), []byte(signature))
}
