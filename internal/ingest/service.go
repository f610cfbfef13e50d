package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"sms-relay/internal/conversations"
	"sms-relay/internal/translation"
	"sms-relay/pkg/logger"
	"sms-relay/pkg/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// ErrUnauthenticated means the webhook signature did not verify.
	ErrUnauthenticated = errors.New("webhook signature invalid")
	// ErrInvalidPayload means a required field was missing.
	ErrInvalidPayload = errors.New("invalid webhook payload")
)

// Webhook is one carrier callback as received.
type Webhook struct {
	// URL is the full URL the carrier signed.
	URL       string
	Signature string
	Params    url.Values
}

type Verifier interface {
	Valid(fullURL, signature string, params url.Values) bool
}

type Translator interface {
	ToEnglish(ctx context.Context, text string) translation.EnglishResult
}

// Deduper suppresses carrier redeliveries of the same message sid.
type Deduper interface {
	Claim(ctx context.Context, messageSid string) (bool, error)
	Release(ctx context.Context, messageSid string) error
}

// Result describes what an accepted webhook produced.
// Duplicate results carry no conversation or message.
type Result struct {
	Conversation        conversations.Conversation
	Message             conversations.Message
	CreatedConversation bool
	Duplicate           bool
}

type Service struct {
	verifier   Verifier
	translator Translator
	store      conversations.Store
	dedupe     Deduper
	now        func() time.Time
}

type Option func(*Service)

// WithDeduper enables MessageSid deduplication.
func WithDeduper(d Deduper) Option {
	return func(s *Service) { s.dedupe = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(v Verifier, tr Translator, store conversations.Store, opts ...Option) *Service {
	s := &Service{
		verifier:   v,
		translator: tr,
		store:      store,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Receive verifies, translates and records one inbound text.
//
// Nothing is written unless the signature verifies. A translation failure
// still records the message (with the error) so no inbound text is lost.
func (s *Service) Receive(ctx context.Context, w Webhook) (Result, error) {
	ctx, span := tracing.StartSpan(ctx, "ingest.receive")
	defer span.End()

	if !s.verifier.Valid(w.URL, w.Signature, w.Params) {
		return Result{}, ErrUnauthenticated
	}

	from := strings.TrimSpace(w.Params.Get("From"))
	body := w.Params.Get("Body")
	sid := strings.TrimSpace(w.Params.Get("MessageSid"))
	if from == "" || body == "" {
		return Result{}, ErrInvalidPayload
	}

	log := logger.From(ctx).With("from", logger.Phone(from), "message_sid", sid)
	span.SetAttributes(attribute.String("message_sid", sid))

	if s.dedupe != nil && sid != "" {
		fresh, err := s.dedupe.Claim(ctx, sid)
		if err != nil {
			// Redis being down must not drop inbound texts.
			log.Warn("inbound dedupe claim failed", "err", err)
		} else if !fresh {
			log.Info("duplicate inbound webhook ignored")
			return Result{Duplicate: true}, nil
		}
	}

	res, err := s.record(ctx, from, body, sid)
	if err != nil {
		tracing.RecordError(ctx, err)
		if s.dedupe != nil && sid != "" {
			if rerr := s.dedupe.Release(ctx, sid); rerr != nil {
				log.Warn("inbound dedupe release failed", "err", rerr)
			}
		}
		return Result{}, err
	}
	log.Info("inbound message recorded",
		"conversation_id", res.Conversation.ID,
		"message_id", res.Message.ID,
		"detected_language", res.Conversation.DetectedLanguage,
	)
	return res, nil
}

func (s *Service) record(ctx context.Context, from, body, sid string) (Result, error) {
	tr := s.translator.ToEnglish(ctx, body)
	now := s.now()

	conv, created, err := s.conversationFor(ctx, from, tr, now)
	if err != nil {
		return Result{}, err
	}

	// A failed translation keeps the language already known for the contact
	// instead of resetting it to unknown.
	if !created && !tr.IsEnglish && tr.Err == "" && tr.DetectedLanguage != conv.DetectedLanguage {
		conv, err = s.store.UpdateConversation(ctx, conv.ID, conversations.ConversationUpdate{
			DetectedLanguage: conversations.Ptr(tr.DetectedLanguage),
		})
		if err != nil {
			return Result{}, fmt.Errorf("update conversation language: %w", err)
		}
	}

	msg := conversations.Message{
		ID:               uuid.Must(uuid.NewV7()).String(),
		ConversationID:   conv.ID,
		Direction:        conversations.DirectionInbound,
		OriginalText:     body,
		TranslatedText:   tr.TranslatedText,
		DetectedLanguage: conversations.Ptr(tr.DetectedLanguage),
		Status:           conversations.MessageSent,
		CreatedAt:        now,
	}
	if tr.Err != "" {
		msg.TranslationError = conversations.Ptr(tr.Err)
	}
	if sid != "" {
		msg.CarrierMessageID = conversations.Ptr(sid)
	}
	msg, err = s.store.CreateMessage(ctx, msg)
	if err != nil {
		return Result{}, fmt.Errorf("create inbound message: %w", err)
	}

	return Result{Conversation: conv, Message: msg, CreatedConversation: created}, nil
}

// conversationFor finds the contact's thread or opens a new one. A concurrent
// first message from the same number loses the insert race with ErrConflict
// and then reads the winner's row.
func (s *Service) conversationFor(ctx context.Context, phone string, tr translation.EnglishResult, now time.Time) (conversations.Conversation, bool, error) {
	conv, found, err := s.store.FindConversationByPhone(ctx, phone)
	if err != nil {
		return conversations.Conversation{}, false, fmt.Errorf("find conversation: %w", err)
	}
	if found {
		return conv, false, nil
	}

	lang := tr.DetectedLanguage
	if lang == "" {
		lang = conversations.UnknownLanguage
	}
	conv, err = s.store.CreateConversation(ctx, conversations.Conversation{
		ID:               uuid.NewString(),
		PhoneNumber:      phone,
		DetectedLanguage: lang,
		Status:           conversations.StatusNew,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if errors.Is(err, conversations.ErrConflict) {
		conv, found, err = s.store.FindConversationByPhone(ctx, phone)
		if err == nil && !found {
			err = conversations.ErrNotFound
		}
		if err != nil {
			return conversations.Conversation{}, false, fmt.Errorf("find conversation after conflict: %w", err)
		}
		return conv, false, nil
	}
	if err != nil {
		return conversations.Conversation{}, false, fmt.Errorf("create conversation: %w", err)
	}
	return conv, true, nil
}
