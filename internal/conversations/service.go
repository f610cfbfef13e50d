package conversations

import (
	"context"
	"strings"
	"unicode/utf8"

	"sms-relay/internal/audit"
	"sms-relay/pkg/logger"
)

const maxContactNameLen = 100

// Auditor records operator actions. Failures never block the action.
type Auditor interface {
	Log(ctx context.Context, t audit.EventType, actorVolunteerID, conversationID, messageID, message string) error
}

// Service exposes the operator-facing conversation operations.
type Service struct {
	store Store
	audit Auditor
}

func NewService(store Store, auditor Auditor) *Service {
	return &Service{store: store, audit: auditor}
}

// Views accepted by List.
const (
	ViewOpen     = "open"
	ViewResolved = "resolved"
)

// List returns the conversations of a view, most recent activity first.
// "open" (the default) covers new and active threads.
func (s *Service) List(ctx context.Context, view string) ([]Conversation, error) {
	switch view {
	case "", ViewOpen:
		return s.store.ListConversations(ctx, StatusNew, StatusActive)
	case ViewResolved:
		return s.store.ListConversations(ctx, StatusResolved)
	default:
		return nil, ErrInvalidArgument
	}
}

// Thread returns a conversation and its messages in creation order.
func (s *Service) Thread(ctx context.Context, id string) (Conversation, []Message, error) {
	if id == "" {
		return Conversation{}, nil, ErrInvalidArgument
	}
	c, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return Conversation{}, nil, err
	}
	msgs, err := s.store.ListMessages(ctx, id)
	if err != nil {
		return Conversation{}, nil, err
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return c, msgs, nil
}

// Rename sets the contact's display name. An empty name clears it.
func (s *Service) Rename(ctx context.Context, actorID, id, name string) (Conversation, error) {
	name = strings.TrimSpace(name)
	if id == "" || utf8.RuneCountInString(name) > maxContactNameLen {
		return Conversation{}, ErrInvalidArgument
	}
	c, err := s.store.UpdateConversation(ctx, id, ConversationUpdate{ContactName: &name})
	if err != nil {
		return Conversation{}, err
	}
	s.record(ctx, audit.EventContactRenamed, actorID, id, "", "contact renamed")
	return c, nil
}

// Resolve archives a thread. Any non-resolved thread may be resolved.
func (s *Service) Resolve(ctx context.Context, actorID, id string) (Conversation, error) {
	return s.transition(ctx, actorID, id, StatusResolved)
}

// Reopen moves a resolved thread back to active.
func (s *Service) Reopen(ctx context.Context, actorID, id string) (Conversation, error) {
	return s.transition(ctx, actorID, id, StatusActive)
}

func (s *Service) transition(ctx context.Context, actorID, id string, to ConversationStatus) (Conversation, error) {
	if id == "" {
		return Conversation{}, ErrInvalidArgument
	}
	c, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return Conversation{}, err
	}

	switch to {
	case StatusResolved:
		if c.Status == StatusResolved {
			return Conversation{}, ErrInvalidTransition
		}
	case StatusActive:
		if c.Status != StatusResolved {
			return Conversation{}, ErrInvalidTransition
		}
	default:
		return Conversation{}, ErrInvalidTransition
	}

	updated, err := s.store.UpdateConversation(ctx, id, ConversationUpdate{Status: &to})
	if err != nil {
		return Conversation{}, err
	}

	evt := audit.EventConversationResolved
	if to == StatusActive {
		evt = audit.EventConversationReopened
	}
	s.record(ctx, evt, actorID, id, "", string(c.Status)+" -> "+string(to))
	return updated, nil
}

// DeleteFailedMessage removes a failed outbound message, typically after a
// successful resend replaced it. Any other message is immutable history.
func (s *Service) DeleteFailedMessage(ctx context.Context, actorID, messageID string) error {
	if messageID == "" {
		return ErrInvalidArgument
	}
	m, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if m.Direction != DirectionOutbound || m.Status != MessageFailed {
		return ErrInvalidTransition
	}
	if err := s.store.DeleteMessage(ctx, messageID); err != nil {
		return err
	}
	s.record(ctx, audit.EventMessageDeleted, actorID, m.ConversationID, messageID, "failed message deleted")
	return nil
}

func (s *Service) record(ctx context.Context, t audit.EventType, actorID, conversationID, messageID, msg string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, t, actorID, conversationID, messageID, msg); err != nil {
		logger.From(ctx).Warn("audit append failed", "type", t, "err", err)
	}
}
