package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It is append-only: no Update/Delete methods exist.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records operator actions. Callers treat it as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" || e.ActorVolunteerID == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// Log records an action against a conversation and, optionally, one message.
func (s *Service) Log(ctx context.Context, t EventType, actorVolunteerID, conversationID, messageID, message string) error {
	return s.Append(ctx, Event{
		Type:             t,
		ActorVolunteerID: actorVolunteerID,
		ConversationID:   conversationID,
		MessageID:        messageID,
		Message:          message,
	})
}
