package audit

import "time"

// Event is an immutable, append-only record of an operator action.
// Events are never updated or deleted.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	// ActorVolunteerID is the authenticated volunteer who acted.
	ActorVolunteerID string `json:"actor_volunteer_id" db:"actor_volunteer_id"`

	ConversationID string `json:"conversation_id,omitempty" db:"conversation_id"`
	MessageID      string `json:"message_id,omitempty" db:"message_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventConversationResolved EventType = "conversation_resolved"
	EventConversationReopened EventType = "conversation_reopened"
	EventContactRenamed       EventType = "contact_renamed"
	EventMessageDeleted       EventType = "message_deleted"
	EventMessageResent        EventType = "message_resent"
)
