package conversations

import (
	"context"
	"errors"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInvalidTransition = errors.New("invalid transition")
)

// ConversationStore persists conversation threads keyed by contact address.
type ConversationStore interface {
	GetConversation(ctx context.Context, id string) (Conversation, error)
	// FindConversationByPhone reports found=false (and no error) when no thread exists.
	FindConversationByPhone(ctx context.Context, phone string) (Conversation, bool, error)
	// CreateConversation returns ErrConflict when the phone number already has a thread.
	CreateConversation(ctx context.Context, c Conversation) (Conversation, error)
	UpdateConversation(ctx context.Context, id string, u ConversationUpdate) (Conversation, error)
	// ListConversations returns threads in the given statuses, most recently updated first.
	ListConversations(ctx context.Context, statuses ...ConversationStatus) ([]Conversation, error)
}

// MessageStore persists the per-conversation message log.
type MessageStore interface {
	CreateMessage(ctx context.Context, m Message) (Message, error)
	GetMessage(ctx context.Context, id string) (Message, error)
	UpdateMessage(ctx context.Context, id string, u MessageUpdate) (Message, error)
	// ListMessages returns a conversation's messages in creation order.
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)
	DeleteMessage(ctx context.Context, id string) error
}

// Store is the full persistence contract used by ingestion and dispatch.
type Store interface {
	ConversationStore
	MessageStore
}
