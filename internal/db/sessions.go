package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRepository stores signed-in web sessions.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// Create inserts a session for an existing user.
func (r *SessionRepository) Create(ctx context.Context, s *Session) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
	`, s.ID, s.UserID, s.CreatedAt, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// GetActive returns the session with id and its user, provided the session
// has not expired at now.
func (r *SessionRepository) GetActive(ctx context.Context, id string, now time.Time) (*ActiveSession, error) {
	var a ActiveSession
	err := r.pool.QueryRow(ctx, `
		SELECT s.id, s.user_id, s.created_at, s.expires_at, u.email, u.display_name
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.id = $1 AND s.expires_at > $2
	`, id, now).Scan(
		&a.ID,
		&a.UserID,
		&a.CreatedAt,
		&a.ExpiresAt,
		&a.Email,
		&a.DisplayName,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return &a, nil
}

// Delete removes a session. Deleting an unknown id is not an error.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// Prune removes sessions that expired at or before now and reports how many.
func (r *SessionRepository) Prune(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("pruning sessions: %w", err)
	}
	return result.RowsAffected(), nil
}
