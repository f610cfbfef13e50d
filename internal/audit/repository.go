package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends to audit_events. The table has no UPDATE/DELETE path.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
  id, type, actor_volunteer_id, conversation_id, message_id, message, metadata, created_at
) VALUES (
  $1,$2,$3,NULLIF($4,'')::uuid,NULLIF($5,'')::uuid,$6,NULLIF($7,'')::jsonb,$8
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		string(e.Type),
		e.ActorVolunteerID,
		e.ConversationID,
		e.MessageID,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}
