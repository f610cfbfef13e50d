package conversations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"sms-relay/pkg/utils"
)

// PostgresStore implements Store on the conversations and messages tables
// (see migrations/). phone_number carries a UNIQUE constraint.
type PostgresStore struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, clock: time.Now}
}

const conversationColumns = `id, phone_number, contact_name, detected_language, status,
       last_reply_by, last_reply_at, created_at, updated_at`

const messageColumns = `id, conversation_id, direction, original_text, translated_text,
       detected_language, translation_error, status, retry_count, carrier_message_id,
       error_message, volunteer_id, volunteer_name, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (Conversation, error) {
	var (
		c           Conversation
		status      string
		contactName sql.NullString
		lastReplyBy sql.NullString
		lastReplyAt sql.NullTime
	)
	if err := row.Scan(
		&c.ID,
		&c.PhoneNumber,
		&contactName,
		&c.DetectedLanguage,
		&status,
		&lastReplyBy,
		&lastReplyAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return Conversation{}, err
	}
	c.Status = ConversationStatus(status)
	c.ContactName = nullString(contactName)
	c.LastReplyBy = nullString(lastReplyBy)
	if lastReplyAt.Valid {
		c.LastReplyAt = Ptr(lastReplyAt.Time)
	}
	return c, nil
}

func scanMessage(row rowScanner) (Message, error) {
	var (
		m                                               Message
		direction, status                               string
		translated, detected, translationErr, carrierID sql.NullString
		errorMessage, volunteerID, volunteerName        sql.NullString
	)
	if err := row.Scan(
		&m.ID,
		&m.ConversationID,
		&direction,
		&m.OriginalText,
		&translated,
		&detected,
		&translationErr,
		&status,
		&m.RetryCount,
		&carrierID,
		&errorMessage,
		&volunteerID,
		&volunteerName,
		&m.CreatedAt,
	); err != nil {
		return Message{}, err
	}
	m.Direction = Direction(direction)
	m.Status = MessageStatus(status)
	m.TranslatedText = nullString(translated)
	m.DetectedLanguage = nullString(detected)
	m.TranslationError = nullString(translationErr)
	m.CarrierMessageID = nullString(carrierID)
	m.ErrorMessage = nullString(errorMessage)
	m.VolunteerID = nullString(volunteerID)
	m.VolunteerName = nullString(volunteerName)
	return m, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return Ptr(ns.String)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) || utils.IsInvalidText(err) {
		return ErrNotFound
	}
	return err
}

func (s *PostgresStore) GetConversation(ctx context.Context, id string) (Conversation, error) {
	q := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`
	c, err := scanConversation(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return Conversation{}, notFound(err)
	}
	return c, nil
}

func (s *PostgresStore) FindConversationByPhone(ctx context.Context, phone string) (Conversation, bool, error) {
	q := `SELECT ` + conversationColumns + ` FROM conversations WHERE phone_number = $1`
	c, err := scanConversation(s.db.QueryRowContext(ctx, q, phone))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Conversation{}, false, nil
		}
		return Conversation{}, false, err
	}
	return c, true, nil
}

func (s *PostgresStore) CreateConversation(ctx context.Context, c Conversation) (Conversation, error) {
	q := `
INSERT INTO conversations (
  id, phone_number, contact_name, detected_language, status,
  last_reply_by, last_reply_at, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
RETURNING ` + conversationColumns
	out, err := scanConversation(s.db.QueryRowContext(ctx, q,
		c.ID,
		c.PhoneNumber,
		c.ContactName,
		c.DetectedLanguage,
		string(c.Status),
		c.LastReplyBy,
		c.LastReplyAt,
		c.CreatedAt,
		c.UpdatedAt,
	))
	if err != nil {
		if utils.IsUniqueViolation(err) {
			return Conversation{}, ErrConflict
		}
		return Conversation{}, err
	}
	return out, nil
}

func (s *PostgresStore) UpdateConversation(ctx context.Context, id string, u ConversationUpdate) (Conversation, error) {
	if u.empty() {
		return s.GetConversation(ctx, id)
	}

	var sets []string
	var args []any
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if u.ContactName != nil {
		if *u.ContactName == "" {
			set("contact_name", nil)
		} else {
			set("contact_name", *u.ContactName)
		}
	}
	if u.DetectedLanguage != nil {
		set("detected_language", *u.DetectedLanguage)
	}
	if u.Status != nil {
		set("status", string(*u.Status))
	}
	if u.LastReplyBy != nil {
		set("last_reply_by", *u.LastReplyBy)
	}
	if u.LastReplyAt != nil {
		set("last_reply_at", u.LastReplyAt.UTC())
	}
	set("updated_at", s.clock().UTC())

	args = append(args, id)
	q := fmt.Sprintf(`UPDATE conversations SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), conversationColumns)

	c, err := scanConversation(s.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		return Conversation{}, notFound(err)
	}
	return c, nil
}

func (s *PostgresStore) ListConversations(ctx context.Context, statuses ...ConversationStatus) ([]Conversation, error) {
	q := `SELECT ` + conversationColumns + ` FROM conversations`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		holders := make([]string, len(statuses))
		for i, st := range statuses {
			args = append(args, string(st))
			holders[i] = fmt.Sprintf("$%d", i+1)
		}
		q += ` WHERE status IN (` + strings.Join(holders, ",") + `)`
	}
	q += ` ORDER BY updated_at DESC, id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateMessage(ctx context.Context, m Message) (Message, error) {
	q := `
INSERT INTO messages (
  id, conversation_id, direction, original_text, translated_text,
  detected_language, translation_error, status, retry_count, carrier_message_id,
  error_message, volunteer_id, volunteer_name, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
RETURNING ` + messageColumns
	return scanMessage(s.db.QueryRowContext(ctx, q,
		m.ID,
		m.ConversationID,
		string(m.Direction),
		m.OriginalText,
		m.TranslatedText,
		m.DetectedLanguage,
		m.TranslationError,
		string(m.Status),
		m.RetryCount,
		m.CarrierMessageID,
		m.ErrorMessage,
		m.VolunteerID,
		m.VolunteerName,
		m.CreatedAt,
	))
}

func (s *PostgresStore) GetMessage(ctx context.Context, id string) (Message, error) {
	q := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	m, err := scanMessage(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return Message{}, notFound(err)
	}
	return m, nil
}

func (s *PostgresStore) UpdateMessage(ctx context.Context, id string, u MessageUpdate) (Message, error) {
	if u.empty() {
		return s.GetMessage(ctx, id)
	}

	var sets []string
	var args []any
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if u.Status != nil {
		set("status", string(*u.Status))
	}
	if u.RetryCount != nil {
		set("retry_count", *u.RetryCount)
	}
	if u.CarrierMessageID != nil {
		set("carrier_message_id", *u.CarrierMessageID)
	}
	if u.ErrorMessage != nil {
		set("error_message", *u.ErrorMessage)
	}

	args = append(args, id)
	q := fmt.Sprintf(`UPDATE messages SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), messageColumns)

	m, err := scanMessage(s.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		return Message{}, notFound(err)
	}
	return m, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	q := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, q, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteMessage(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return notFound(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
