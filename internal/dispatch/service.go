package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sms-relay/internal/audit"
	"sms-relay/internal/conversations"
	"sms-relay/internal/telephony"
	"sms-relay/internal/translation"
	"sms-relay/pkg/logger"
	"sms-relay/pkg/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// ErrInvalidRequest means a required send field was empty.
var ErrInvalidRequest = errors.New("conversationId, message and volunteerId are required")

type Config struct {
	// MaxAttempts bounds carrier calls per send, including the first.
	MaxAttempts int
	// BaseDelay is the wait after the first failed attempt; it doubles after each.
	BaseDelay time.Duration
	// FromNumber is the relay's own address.
	FromNumber string
}

type Translator interface {
	ToTarget(ctx context.Context, text, target string) translation.TargetResult
}

// Request is one volunteer reply.
type Request struct {
	ConversationID string
	Text           string
	VolunteerID    string
	VolunteerName  string
	// SendUntranslated delivers Text as written, skipping translation.
	SendUntranslated bool
}

type Outcome string

const (
	OutcomeSent              Outcome = "sent"
	OutcomeDeliveryFailed    Outcome = "delivery_failed"
	OutcomeTranslationFailed Outcome = "translation_failed"
)

// Result reports a send. Delivery and translation failures are results, not
// errors; errors are reserved for bad requests and store failures.
type Result struct {
	Outcome          Outcome
	MessageID        string
	OriginalText     string
	TranslatedText   *string
	Error            string
	TranslationError string
	// ReplacedMessageID is the failed message a successful retry removed.
	ReplacedMessageID string
}

func (r Result) Success() bool { return r.Outcome == OutcomeSent }

type Service struct {
	store      conversations.Store
	translator Translator
	carrier    telephony.SMSProvider
	audit      conversations.Auditor
	cfg        Config

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

type Option func(*Service)

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Service) { s.sleep = sleep }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store conversations.Store, tr Translator, carrier telephony.SMSProvider, auditor conversations.Auditor, cfg Config, opts ...Option) *Service {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay < 0 {
		cfg.BaseDelay = 0
	}
	s := &Service{
		store:      store,
		translator: tr,
		carrier:    carrier,
		audit:      auditor,
		cfg:        cfg,
		sleep:      sleepContext,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send translates a reply into the contact's language and delivers it.
//
// Once the pending message is written the send runs to completion even if
// ctx is cancelled, so the stored status always reaches sent or failed.
func (s *Service) Send(ctx context.Context, req Request) (Result, error) {
	req.ConversationID = strings.TrimSpace(req.ConversationID)
	req.VolunteerID = strings.TrimSpace(req.VolunteerID)
	req.VolunteerName = strings.TrimSpace(req.VolunteerName)
	if req.ConversationID == "" || req.VolunteerID == "" || strings.TrimSpace(req.Text) == "" {
		return Result{}, ErrInvalidRequest
	}

	ctx, span := tracing.StartSpan(ctx, "dispatch.send", attribute.String("conversation_id", req.ConversationID))
	defer span.End()
	log := logger.From(ctx).With("conversation_id", req.ConversationID, "volunteer_id", req.VolunteerID)

	conv, err := s.store.GetConversation(ctx, req.ConversationID)
	if err != nil {
		return Result{}, fmt.Errorf("load conversation: %w", err)
	}

	body := req.Text
	var translated *string
	if !req.SendUntranslated {
		tr := s.translator.ToTarget(ctx, req.Text, conv.DetectedLanguage)
		if tr.Err != "" {
			log.Warn("reply not sent, translation failed", "target", conv.DetectedLanguage, "err", tr.Err)
			return Result{
				Outcome:          OutcomeTranslationFailed,
				OriginalText:     req.Text,
				TranslationError: tr.Err,
			}, nil
		}
		translated = tr.TranslatedText
		body = *tr.TranslatedText
	}

	msg, err := s.store.CreateMessage(ctx, conversations.Message{
		ID:               uuid.Must(uuid.NewV7()).String(),
		ConversationID:   conv.ID,
		Direction:        conversations.DirectionOutbound,
		OriginalText:     req.Text,
		TranslatedText:   translated,
		DetectedLanguage: conversations.Ptr(conv.DetectedLanguage),
		Status:           conversations.MessagePending,
		VolunteerID:      conversations.Ptr(req.VolunteerID),
		VolunteerName:    optional(req.VolunteerName),
		CreatedAt:        s.now(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("create outbound message: %w", err)
	}
	log = log.With("message_id", msg.ID)

	// Delivery outlives the caller from here on.
	ctx = context.WithoutCancel(ctx)

	sid, deliveryErr := s.deliver(ctx, log, msg.ID, conv.PhoneNumber, body)

	res := Result{MessageID: msg.ID, OriginalText: req.Text, TranslatedText: translated}
	if deliveryErr != nil {
		if _, err := s.store.UpdateMessage(ctx, msg.ID, conversations.MessageUpdate{
			Status:       conversations.Ptr(conversations.MessageFailed),
			ErrorMessage: conversations.Ptr(deliveryErr.Error()),
		}); err != nil {
			return Result{}, fmt.Errorf("mark message failed: %w", err)
		}
		tracing.RecordError(ctx, deliveryErr)
		log.Warn("reply delivery failed", "attempts", s.cfg.MaxAttempts, "err", deliveryErr)
		res.Outcome = OutcomeDeliveryFailed
		res.Error = deliveryErr.Error()
		return res, nil
	}

	if _, err := s.store.UpdateMessage(ctx, msg.ID, conversations.MessageUpdate{
		Status:           conversations.Ptr(conversations.MessageSent),
		CarrierMessageID: conversations.Ptr(sid),
	}); err != nil {
		return Result{}, fmt.Errorf("mark message sent: %w", err)
	}
	if _, err := s.store.UpdateConversation(ctx, conv.ID, conversations.ConversationUpdate{
		Status:      conversations.Ptr(conversations.StatusActive),
		LastReplyBy: conversations.Ptr(req.VolunteerID),
		LastReplyAt: conversations.Ptr(s.now()),
	}); err != nil {
		return Result{}, fmt.Errorf("update conversation after send: %w", err)
	}

	log.Info("reply delivered", "carrier_message_id", sid)
	res.Outcome = OutcomeSent
	return res, nil
}

// deliver calls the carrier up to MaxAttempts times. Each failure is recorded
// on the message as it happens.
func (s *Service) deliver(ctx context.Context, log *slog.Logger, messageID, to, body string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		actx, span := tracing.StartSpan(ctx, "dispatch.attempt", attribute.Int("attempt", attempt+1))
		res, err := s.carrier.SendSMS(actx, telephony.SendSMSRequest{To: to, From: s.cfg.FromNumber, Body: body})
		if err != nil {
			tracing.RecordError(actx, err)
		}
		span.End()
		if err == nil {
			return res.ProviderMessageID, nil
		}
		lastErr = err
		log.Warn("carrier attempt failed", "attempt", attempt+1, "err", err)

		if _, uerr := s.store.UpdateMessage(ctx, messageID, conversations.MessageUpdate{
			RetryCount: conversations.Ptr(attempt + 1),
		}); uerr != nil {
			log.Warn("record retry count failed", "err", uerr)
		}

		if attempt+1 < s.cfg.MaxAttempts {
			if err := s.sleep(ctx, backoffDelay(s.cfg.BaseDelay, attempt)); err != nil {
				return "", err
			}
		}
	}
	return "", lastErr
}

// Retry resends a failed outbound message as a new message. When the resend
// is delivered the failed one is removed.
func (s *Service) Retry(ctx context.Context, messageID, volunteerID, volunteerName string) (Result, error) {
	if strings.TrimSpace(messageID) == "" {
		return Result{}, ErrInvalidRequest
	}
	old, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return Result{}, err
	}
	if old.Direction != conversations.DirectionOutbound || old.Status != conversations.MessageFailed {
		return Result{}, conversations.ErrInvalidTransition
	}

	// A message that went out untranslated is retried the same way.
	res, err := s.Send(ctx, Request{
		ConversationID:   old.ConversationID,
		Text:             old.OriginalText,
		VolunteerID:      volunteerID,
		VolunteerName:    volunteerName,
		SendUntranslated: old.TranslatedText == nil,
	})
	if err != nil || !res.Success() {
		return res, err
	}

	ctx = context.WithoutCancel(ctx)
	log := logger.From(ctx)
	if err := s.store.DeleteMessage(ctx, old.ID); err != nil {
		log.Warn("remove replaced message failed", "message_id", old.ID, "err", err)
	} else {
		res.ReplacedMessageID = old.ID
	}
	if s.audit != nil {
		if err := s.audit.Log(ctx, audit.EventMessageResent, volunteerID, old.ConversationID, res.MessageID, "resent failed message "+old.ID); err != nil {
			log.Warn("audit append failed", "err", err)
		}
	}
	return res, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
