package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sms-relay/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
)

// TwilioConfig holds REST credentials. AuthToken also signs webhooks.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	BaseURL    string
	Timeout    time.Duration
}

// TwilioClient sends SMS through the Twilio REST API over net/http.
type TwilioClient struct {
	cfg        TwilioConfig
	httpClient *http.Client
}

func NewTwilioClient(cfg TwilioConfig) *TwilioClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twilio.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &TwilioClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *TwilioClient) Name() string { return "twilio" }

// TwilioError is the error document Twilio returns with non-2xx statuses.
type TwilioError struct {
	HTTPStatus int    `json:"-"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
}

func (e *TwilioError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("twilio: %s (code %d, status %d)", e.Message, e.Code, e.HTTPStatus)
	}
	return fmt.Sprintf("twilio: unexpected status %d", e.HTTPStatus)
}

type twilioMessage struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

func (c *TwilioClient) SendSMS(ctx context.Context, req SendSMSRequest) (SendSMSResult, error) {
	ctx, span := tracing.StartSpan(ctx, "twilio.send_sms", attribute.String("provider", c.Name()))
	defer span.End()

	res, err := c.send(ctx, req)
	if err != nil {
		tracing.RecordError(ctx, err)
		return SendSMSResult{}, err
	}
	span.SetAttributes(attribute.String("provider_message_id", res.ProviderMessageID))
	return res, nil
}

func (c *TwilioClient) send(ctx context.Context, req SendSMSRequest) (SendSMSResult, error) {
	if req.To == "" || req.From == "" || req.Body == "" {
		return SendSMSResult{}, errors.New("twilio: to, from and body are required")
	}

	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", req.From)
	form.Set("Body", req.Body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.cfg.BaseURL, url.PathEscape(c.cfg.AccountSID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return SendSMSResult{}, err
	}
	httpReq.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return SendSMSResult{}, fmt.Errorf("twilio: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return SendSMSResult{}, fmt.Errorf("twilio: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &TwilioError{HTTPStatus: resp.StatusCode}
		_ = json.Unmarshal(raw, apiErr)
		return SendSMSResult{}, apiErr
	}

	var msg twilioMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return SendSMSResult{}, fmt.Errorf("twilio: decode response: %w", err)
	}
	if msg.SID == "" {
		return SendSMSResult{}, errors.New("twilio: response has no message sid")
	}
	return SendSMSResult{ProviderMessageID: msg.SID, Status: msg.Status}, nil
}
