package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/auth"
)

const (
	findSessionSQL = `SELECT id::text, user_id, token_hash, expires_at
		FROM sessions WHERE token_hash = $1 AND revoked_at IS NULL`

	createSessionSQL = `INSERT INTO sessions (user_id, token_hash, expires_at) VALUES ($1, $2, $3)
		RETURNING id::text, user_id, token_hash, expires_at`

	revokeSessionSQL = `UPDATE sessions SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`
)

var _ auth.Repository = (*SessionRepository)(nil)

// SessionRepository provides sign-in session storage backed by PostgreSQL.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository returns a SessionRepository that uses the given pool.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// FindByHash looks up an active session by its token hash.
func (r *SessionRepository) FindByHash(ctx context.Context, hash string) (*auth.Session, error) {
	rows, err := r.pool.Query(ctx, findSessionSQL, hash)
	if err != nil {
		return nil, fmt.Errorf("finding session by hash: %w", err)
	}
	s, err := pgx.CollectExactlyOneRow(rows, scanSession)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrSessionNotFound
		}
		return nil, fmt.Errorf("finding session by hash: %w", err)
	}
	return &s, nil
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, userID, hash string, expiresAt *time.Time) (*auth.Session, error) {
	rows, err := r.pool.Query(ctx, createSessionSQL, userID, hash, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	s, err := pgx.CollectExactlyOneRow(rows, scanSession)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return &s, nil
}

// Revoke marks the session as signed out.
func (r *SessionRepository) Revoke(ctx context.Context, sessionID string) error {
	if _, err := r.pool.Exec(ctx, revokeSessionSQL, sessionID); err != nil {
		return fmt.Errorf("revoking session %q: %w", sessionID, err)
	}
	return nil
}

func scanSession(row pgx.CollectableRow) (auth.Session, error) {
	var s auth.Session
	err := row.Scan(&s.ID, &s.UserID, &s.TokenHash, &s.ExpiresAt)
	return s, err
}
