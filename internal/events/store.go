package events

import (
	"context"
	"log/slog"
	"time"

	"sms-relay/internal/conversations"
)

// NotifyingStore publishes a Change after every successful write to the
// wrapped store. Publish failures are logged and never fail the write.
type NotifyingStore struct {
	conversations.Store
	pub Publisher
	log *slog.Logger
	now func() time.Time
}

func NewNotifyingStore(inner conversations.Store, pub Publisher, log *slog.Logger) *NotifyingStore {
	if log == nil {
		log = slog.Default()
	}
	return &NotifyingStore{
		Store: inner,
		pub:   pub,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *NotifyingStore) CreateConversation(ctx context.Context, c conversations.Conversation) (conversations.Conversation, error) {
	out, err := s.Store.CreateConversation(ctx, c)
	if err == nil {
		s.emit(ctx, EntityConversation, OpCreated, out.ID, out.ID)
	}
	return out, err
}

func (s *NotifyingStore) UpdateConversation(ctx context.Context, id string, u conversations.ConversationUpdate) (conversations.Conversation, error) {
	out, err := s.Store.UpdateConversation(ctx, id, u)
	if err == nil {
		s.emit(ctx, EntityConversation, OpUpdated, out.ID, out.ID)
	}
	return out, err
}

func (s *NotifyingStore) CreateMessage(ctx context.Context, m conversations.Message) (conversations.Message, error) {
	out, err := s.Store.CreateMessage(ctx, m)
	if err == nil {
		s.emit(ctx, EntityMessage, OpCreated, out.ID, out.ConversationID)
	}
	return out, err
}

func (s *NotifyingStore) UpdateMessage(ctx context.Context, id string, u conversations.MessageUpdate) (conversations.Message, error) {
	out, err := s.Store.UpdateMessage(ctx, id, u)
	if err == nil {
		s.emit(ctx, EntityMessage, OpUpdated, out.ID, out.ConversationID)
	}
	return out, err
}

func (s *NotifyingStore) DeleteMessage(ctx context.Context, id string) error {
	var convID string
	if m, err := s.Store.GetMessage(ctx, id); err == nil {
		convID = m.ConversationID
	}
	if err := s.Store.DeleteMessage(ctx, id); err != nil {
		return err
	}
	s.emit(ctx, EntityMessage, OpDeleted, id, convID)
	return nil
}

func (s *NotifyingStore) emit(ctx context.Context, entity, op, id, conversationID string) {
	if s.pub == nil {
		return
	}
	c := NewChange(entity, op, id, conversationID, s.now())
	if err := s.pub.Publish(context.WithoutCancel(ctx), c); err != nil {
		s.log.Warn("change notification failed", "entity", entity, "op", op, "id", id, "err", err)
	}
}
