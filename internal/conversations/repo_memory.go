package conversations

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and local runs.
// It is not intended for production use.
type MemoryStore struct {
	mu sync.Mutex

	conversations map[string]Conversation
	byPhone       map[string]string

	messages map[string]Message
	seq      map[string]int64
	next     int64

	clock func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: map[string]Conversation{},
		byPhone:       map[string]string{},
		messages:      map[string]Message{},
		seq:           map[string]int64{},
		clock:         time.Now,
	}
}

func (s *MemoryStore) GetConversation(ctx context.Context, id string) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) FindConversationByPhone(ctx context.Context, phone string) (Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byPhone[phone]
	if !ok {
		return Conversation{}, false, nil
	}
	return s.conversations[id], true, nil
}

func (s *MemoryStore) CreateConversation(ctx context.Context, c Conversation) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byPhone[c.PhoneNumber]; dup {
		return Conversation{}, ErrConflict
	}
	now := s.clock().UTC()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	s.conversations[c.ID] = c
	s.byPhone[c.PhoneNumber] = c.ID
	return c, nil
}

func (s *MemoryStore) UpdateConversation(ctx context.Context, id string, u ConversationUpdate) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	if u.ContactName != nil {
		if *u.ContactName == "" {
			c.ContactName = nil
		} else {
			c.ContactName = Ptr(*u.ContactName)
		}
	}
	if u.DetectedLanguage != nil {
		c.DetectedLanguage = *u.DetectedLanguage
	}
	if u.Status != nil {
		c.Status = *u.Status
	}
	if u.LastReplyBy != nil {
		c.LastReplyBy = Ptr(*u.LastReplyBy)
	}
	if u.LastReplyAt != nil {
		c.LastReplyAt = Ptr(u.LastReplyAt.UTC())
	}
	c.UpdatedAt = s.clock().UTC()
	s.conversations[id] = c
	return c, nil
}

func (s *MemoryStore) ListConversations(ctx context.Context, statuses ...ConversationStatus) ([]Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := map[ConversationStatus]bool{}
	for _, st := range statuses {
		want[st] = true
	}
	out := make([]Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		if len(want) > 0 && !want[c.Status] {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *MemoryStore) CreateMessage(ctx context.Context, m Message) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[m.ConversationID]; !ok {
		return Message{}, ErrNotFound
	}
	if m.ID == "" {
		m.ID = uuid.Must(uuid.NewV7()).String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.clock().UTC()
	}
	s.next++
	s.messages[m.ID] = m
	s.seq[m.ID] = s.next
	return m, nil
}

func (s *MemoryStore) GetMessage(ctx context.Context, id string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return Message{}, ErrNotFound
	}
	return m, nil
}

func (s *MemoryStore) UpdateMessage(ctx context.Context, id string, u MessageUpdate) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return Message{}, ErrNotFound
	}
	if u.Status != nil {
		m.Status = *u.Status
	}
	if u.RetryCount != nil {
		m.RetryCount = *u.RetryCount
	}
	if u.CarrierMessageID != nil {
		m.CarrierMessageID = Ptr(*u.CarrierMessageID)
	}
	if u.ErrorMessage != nil {
		m.ErrorMessage = Ptr(*u.ErrorMessage)
	}
	s.messages[id] = m
	return m, nil
}

func (s *MemoryStore) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Message
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return s.seq[out[i].ID] < s.seq[out[j].ID]
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) DeleteMessage(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[id]; !ok {
		return ErrNotFound
	}
	delete(s.messages, id)
	delete(s.seq, id)
	return nil
}
