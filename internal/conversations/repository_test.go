package conversations

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	convCols = []string{"id", "phone_number", "contact_name", "detected_language", "status",
		"last_reply_by", "last_reply_at", "created_at", "updated_at"}
	msgCols = []string{"id", "conversation_id", "direction", "original_text", "translated_text",
		"detected_language", "translation_error", "status", "retry_count", "carrier_message_id",
		"error_message", "volunteer_id", "volunteer_name", "created_at"}
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(db), mock
}

func TestPostgresStore_GetConversationNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT .* FROM conversations WHERE id = \\$1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := s.GetConversation(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresStore_MalformedIDIsNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT .* FROM conversations WHERE id = \\$1").
		WithArgs("abc").
		WillReturnError(&pgconn.PgError{Code: "22P02", Message: "invalid input syntax for type uuid"})
	mock.ExpectExec("DELETE FROM messages WHERE id = \\$1").
		WithArgs("abc").
		WillReturnError(&pgconn.PgError{Code: "22P02"})

	if _, err := s.GetConversation(context.Background(), "abc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get: expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteMessage(context.Background(), "abc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete: expected ErrNotFound, got %v", err)
	}
}

func TestPostgresStore_FindByPhoneScansNullables(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM conversations WHERE phone_number = \\$1").
		WithArgs("+15551234567").
		WillReturnRows(sqlmock.NewRows(convCols).
			AddRow("c1", "+15551234567", nil, "es", "new", nil, nil, at, at))

	c, found, err := s.FindConversationByPhone(context.Background(), "+15551234567")
	if err != nil || !found {
		t.Fatalf("find: found=%v err=%v", found, err)
	}
	if c.Status != StatusNew || c.DetectedLanguage != "es" || c.ContactName != nil || c.LastReplyAt != nil {
		t.Fatalf("unexpected conversation: %+v", c)
	}
}

func TestPostgresStore_FindByPhoneAbsent(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("FROM conversations WHERE phone_number").WillReturnError(sql.ErrNoRows)

	_, found, err := s.FindConversationByPhone(context.Background(), "+1")
	if err != nil || found {
		t.Fatalf("expected absent without error, got found=%v err=%v", found, err)
	}
}

func TestPostgresStore_CreateConversationConflict(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("INSERT INTO conversations").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "conversations_phone_number_key"})

	_, err := s.CreateConversation(context.Background(), Conversation{ID: "c1", PhoneNumber: "+1", Status: StatusNew})
	if err != ErrConflict {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestPostgresStore_UpdateConversationBuildsPartialSet(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	s.clock = func() time.Time { return now }

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE conversations SET status = $1, last_reply_by = $2, last_reply_at = $3, updated_at = $4 WHERE id = $5")).
		WithArgs("active", "v1", now, now, "c1").
		WillReturnRows(sqlmock.NewRows(convCols).
			AddRow("c1", "+1", "Ana", "es", "active", "v1", now, now, now))

	status := StatusActive
	by := "v1"
	c, err := s.UpdateConversation(context.Background(), "c1", ConversationUpdate{
		Status:      &status,
		LastReplyBy: &by,
		LastReplyAt: &now,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if c.LastReplyBy == nil || *c.LastReplyBy != "v1" || c.ContactName == nil || *c.ContactName != "Ana" {
		t.Fatalf("unexpected conversation: %+v", c)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresStore_ClearContactNameWritesNull(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	s.clock = func() time.Time { return now }

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE conversations SET contact_name = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(nil, now, "c1").
		WillReturnRows(sqlmock.NewRows(convCols).
			AddRow("c1", "+1", nil, "en", "new", nil, nil, now, now))

	empty := ""
	if _, err := s.UpdateConversation(context.Background(), "c1", ConversationUpdate{ContactName: &empty}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresStore_ListConversationsFiltersStatuses(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status IN ($1,$2) ORDER BY updated_at DESC, id")).
		WithArgs("new", "active").
		WillReturnRows(sqlmock.NewRows(convCols).
			AddRow("c2", "+2", nil, "en", "active", "v1", at, at, at).
			AddRow("c1", "+1", nil, "es", "new", nil, nil, at, at))

	out, err := s.ListConversations(context.Background(), StatusNew, StatusActive)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 2 || out[0].ID != "c2" {
		t.Fatalf("unexpected list: %+v", out)
	}
}

func TestPostgresStore_MessageRoundTrip(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	translated := "Hola"

	mock.ExpectQuery("INSERT INTO messages").
		WithArgs("m1", "c1", "outbound", "Hello", translated, "es", nil, "pending", 0, nil, nil, "v1", "Sam", at).
		WillReturnRows(sqlmock.NewRows(msgCols).
			AddRow("m1", "c1", "outbound", "Hello", "Hola", "es", nil, "pending", 0, nil, nil, "v1", "Sam", at))

	m, err := s.CreateMessage(context.Background(), Message{
		ID:               "m1",
		ConversationID:   "c1",
		Direction:        DirectionOutbound,
		OriginalText:     "Hello",
		TranslatedText:   &translated,
		DetectedLanguage: Ptr("es"),
		Status:           MessagePending,
		VolunteerID:      Ptr("v1"),
		VolunteerName:    Ptr("Sam"),
		CreatedAt:        at,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.Status != MessagePending || m.TranslatedText == nil || *m.TranslatedText != "Hola" || m.CarrierMessageID != nil {
		t.Fatalf("unexpected message: %+v", m)
	}

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE messages SET status = $1, carrier_message_id = $2 WHERE id = $3")).
		WithArgs("sent", "SM123", "m1").
		WillReturnRows(sqlmock.NewRows(msgCols).
			AddRow("m1", "c1", "outbound", "Hello", "Hola", "es", nil, "sent", 0, "SM123", nil, "v1", "Sam", at))

	m, err = s.UpdateMessage(context.Background(), "m1", MessageUpdate{Status: Ptr(MessageSent), CarrierMessageID: Ptr("SM123")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if m.Status != MessageSent || *m.CarrierMessageID != "SM123" {
		t.Fatalf("unexpected update: %+v", m)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresStore_ListMessagesOrdered(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE conversation_id = $1 ORDER BY created_at ASC, id ASC")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(msgCols).
			AddRow("m1", "c1", "inbound", "Hola", "Hello", "es", nil, "sent", 0, "SM1", nil, nil, nil, at).
			AddRow("m2", "c1", "outbound", "Hi", "Hola", "es", nil, "sent", 0, "SM2", nil, "v1", "Sam", at.Add(time.Minute)))

	msgs, err := s.ListMessages(context.Background(), "c1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Direction != DirectionInbound || msgs[1].VolunteerName == nil {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
}

func TestPostgresStore_DeleteMessageMissing(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("DELETE FROM messages WHERE id = \\$1").
		WithArgs("m9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.DeleteMessage(context.Background(), "m9"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
