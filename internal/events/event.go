package events

import (
	"time"

	"github.com/google/uuid"
)

// Entities a change can refer to.
const (
	EntityConversation = "conversation"
	EntityMessage      = "message"
	EntityVolunteer    = "volunteer"
)

// Operations.
const (
	OpCreated = "created"
	OpUpdated = "updated"
	OpDeleted = "deleted"
)

// Change tells subscribers that a record changed. It carries identifiers
// only; clients re-read what they display.
type Change struct {
	ID             string    `json:"id"`
	Entity         string    `json:"entity"`
	Op             string    `json:"op"`
	RecordID       string    `json:"record_id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	At             time.Time `json:"at"`
}

func NewChange(entity, op, recordID, conversationID string, at time.Time) Change {
	return Change{
		ID:             uuid.NewString(),
		Entity:         entity,
		Op:             op,
		RecordID:       recordID,
		ConversationID: conversationID,
		At:             at,
	}
}
