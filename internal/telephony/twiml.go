package telephony

import (
	"bytes"
	"encoding/xml"
)

// TwiML is built with encoding/xml; no provider SDK.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
}

// TwiMLContentType is what Twilio expects on webhook replies.
const TwiMLContentType = "text/xml"

// RenderEmptyTwiML returns the acknowledgment document: a Response with no
// verbs, so Twilio sends nothing back to the contact.
func RenderEmptyTwiML() (string, error) {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	enc := xml.NewEncoder(&buf)
	if err := enc.Encode(twimlResponse{}); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
