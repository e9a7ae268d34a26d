package auth

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRepository persists session metadata for auditing.
type SessionRepository interface {
	CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// PGSessionRepository implements SessionRepository using PostgreSQL.
type PGSessionRepository struct {
	pool *pgxpool.Pool
}

var _ SessionRepository = (*PGSessionRepository)(nil)

// NewSessionRepository constructs a PostgreSQL session repository.
func NewSessionRepository(pool *pgxpool.Pool) *PGSessionRepository {
	return &PGSessionRepository{pool: pool}
}

// CreateSession persists a new login session in the database for auditing.
func (r *PGSessionRepository) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, created_at, expires_at, ip, ua)
		VALUES ($1, $2, NOW(), $3, $4, $5)`,
		id, userID, expiresAt.UTC(),
		pgtype.Text{String: ip, Valid: ip != ""},
		pgtype.Text{String: ua, Valid: ua != ""},
	)
	return err
}

// DeleteSession removes a session record from the database.
func (r *PGSessionRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}
