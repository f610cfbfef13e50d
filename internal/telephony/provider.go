package telephony

import "context"

// SMSProvider is the carrier transport used by outbound dispatch.
//
// Rules:
// - No provider SDK calls outside telephony adapters.
// - A provider may retry internally; callers still own the retry policy.
type SMSProvider interface {
	Name() string
	SendSMS(ctx context.Context, req SendSMSRequest) (SendSMSResult, error)
}

// SendSMSRequest addresses are E.164.
type SendSMSRequest struct {
	To   string `json:"to"`
	From string `json:"from"`
	Body string `json:"body"`
}

type SendSMSResult struct {
	// ProviderMessageID is the carrier's id for the accepted message.
	ProviderMessageID string `json:"provider_message_id"`
	// Status is the provider's initial delivery state (e.g. queued).
	Status string `json:"status,omitempty"`
}
