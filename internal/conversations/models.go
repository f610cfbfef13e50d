package conversations

import "time"

// Conversation is one thread with exactly one contact address.
type Conversation struct {
	ID               string             `json:"id" db:"id"`
	PhoneNumber      string             `json:"phone_number" db:"phone_number"`
	ContactName      *string            `json:"contact_name" db:"contact_name"`
	DetectedLanguage string             `json:"detected_language" db:"detected_language"`
	Status           ConversationStatus `json:"status" db:"status"`
	LastReplyBy      *string            `json:"last_reply_by" db:"last_reply_by"`
	LastReplyAt      *time.Time         `json:"last_reply_at" db:"last_reply_at"`
	CreatedAt        time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at" db:"updated_at"`
}

type ConversationStatus string

const (
	StatusNew      ConversationStatus = "new"
	StatusActive   ConversationStatus = "active"
	StatusResolved ConversationStatus = "resolved"
)

// DefaultLanguage is used until the contact's first message is classified.
const DefaultLanguage = "en"

// UnknownLanguage marks a contact whose language could not be detected.
const UnknownLanguage = "unknown"

// Message is a single inbound or outbound text.
//
// Outbound invariants:
// - status=sent implies CarrierMessageID is set and ErrorMessage is nil.
// - status=failed implies ErrorMessage is set.
// - RetryCount never exceeds the configured maximum attempts.
type Message struct {
	ID               string        `json:"id" db:"id"`
	ConversationID   string        `json:"conversation_id" db:"conversation_id"`
	Direction        Direction     `json:"direction" db:"direction"`
	OriginalText     string        `json:"original_text" db:"original_text"`
	TranslatedText   *string       `json:"translated_text" db:"translated_text"`
	DetectedLanguage *string       `json:"detected_language" db:"detected_language"`
	TranslationError *string       `json:"translation_error" db:"translation_error"`
	Status           MessageStatus `json:"status" db:"status"`
	RetryCount       int           `json:"retry_count" db:"retry_count"`
	CarrierMessageID *string       `json:"carrier_message_id" db:"carrier_message_id"`
	ErrorMessage     *string       `json:"error_message" db:"error_message"`
	VolunteerID      *string       `json:"volunteer_id" db:"volunteer_id"`
	VolunteerName    *string       `json:"volunteer_name" db:"volunteer_name"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
}

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type MessageStatus string

const (
	MessagePending MessageStatus = "pending"
	MessageSent    MessageStatus = "sent"
	MessageFailed  MessageStatus = "failed"
)

// ConversationUpdate is a partial update; nil fields are left untouched.
// An empty ContactName clears the name.
type ConversationUpdate struct {
	ContactName      *string
	DetectedLanguage *string
	Status           *ConversationStatus
	LastReplyBy      *string
	LastReplyAt      *time.Time
}

func (u ConversationUpdate) empty() bool {
	return u.ContactName == nil && u.DetectedLanguage == nil && u.Status == nil &&
		u.LastReplyBy == nil && u.LastReplyAt == nil
}

// MessageUpdate is a partial update; nil fields are left untouched.
type MessageUpdate struct {
	Status           *MessageStatus
	RetryCount       *int
	CarrierMessageID *string
	ErrorMessage     *string
}

func (u MessageUpdate) empty() bool {
	return u.Status == nil && u.RetryCount == nil && u.CarrierMessageID == nil && u.ErrorMessage == nil
}

// Ptr returns a pointer to v. Handy for optional model fields.
func Ptr[T any](v T) *T { return &v }
