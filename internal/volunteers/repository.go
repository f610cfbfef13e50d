package volunteers

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"sms-relay/pkg/utils"
)

var (
	ErrNotFound = errors.New("volunteer not found")
	ErrConflict = errors.New("email already registered")
)

type Repository interface {
	Create(ctx context.Context, v Volunteer) (Volunteer, error)
	GetByID(ctx context.Context, id string) (Volunteer, error)
	GetByEmail(ctx context.Context, email string) (Volunteer, error)
	SetPresence(ctx context.Context, id string, online bool, at time.Time) (Volunteer, error)
	// List returns all volunteers ordered by display name.
	List(ctx context.Context) ([]Volunteer, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const volunteerColumns = `id, email, display_name, password_hash, is_online, last_seen, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVolunteer(row rowScanner) (Volunteer, error) {
	var (
		v        Volunteer
		lastSeen sql.NullTime
	)
	if err := row.Scan(&v.ID, &v.Email, &v.DisplayName, &v.PasswordHash, &v.IsOnline, &lastSeen, &v.CreatedAt); err != nil {
		return Volunteer{}, err
	}
	if lastSeen.Valid {
		t := lastSeen.Time
		v.LastSeen = &t
	}
	return v, nil
}

func (r *PostgresRepo) Create(ctx context.Context, v Volunteer) (Volunteer, error) {
	row := r.db.QueryRowContext(ctx, `
INSERT INTO volunteers (id, email, display_name, password_hash, is_online, last_seen, created_at)
VALUES ($1, $2, $3, $4, false, NULL, $5)
RETURNING `+volunteerColumns,
		v.ID, v.Email, v.DisplayName, v.PasswordHash, v.CreatedAt,
	)
	out, err := scanVolunteer(row)
	if utils.IsUniqueViolation(err) {
		return Volunteer{}, ErrConflict
	}
	return out, err
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (Volunteer, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+volunteerColumns+` FROM volunteers WHERE id = $1`, id)
	return notFound(scanVolunteer(row))
}

func (r *PostgresRepo) GetByEmail(ctx context.Context, email string) (Volunteer, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+volunteerColumns+` FROM volunteers WHERE email = $1`, email)
	return notFound(scanVolunteer(row))
}

func (r *PostgresRepo) SetPresence(ctx context.Context, id string, online bool, at time.Time) (Volunteer, error) {
	row := r.db.QueryRowContext(ctx, `
UPDATE volunteers SET is_online = $2, last_seen = $3
WHERE id = $1
RETURNING `+volunteerColumns,
		id, online, at,
	)
	return notFound(scanVolunteer(row))
}

func (r *PostgresRepo) List(ctx context.Context) ([]Volunteer, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+volunteerColumns+` FROM volunteers ORDER BY display_name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Volunteer
	for rows.Next() {
		v, err := scanVolunteer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func notFound(v Volunteer, err error) (Volunteer, error) {
	if errors.Is(err, sql.ErrNoRows) || utils.IsInvalidText(err) {
		return Volunteer{}, ErrNotFound
	}
	return v, err
}
