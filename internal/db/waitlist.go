package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WaitlistRepository handles waitlist database operations.
type WaitlistRepository struct {
	pool *pgxpool.Pool
}

// InsertIfAbsent inserts entry unless its email key is taken. It reports
// whether the row was inserted.
func (r *WaitlistRepository) InsertIfAbsent(ctx context.Context, entry *WaitlistEntry) (bool, error) {
	query := `
		INSERT INTO waitlist_entries (id, email_key, email, name, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email_key) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.EmailKey,
		entry.Email,
		entry.Name,
		entry.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("inserting waitlist entry: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// GetByKey retrieves an entry by its lowercased email.
func (r *WaitlistRepository) GetByKey(ctx context.Context, emailKey string) (*WaitlistEntry, error) {
	query := `
		SELECT id, email_key, email, name, created_at
		FROM waitlist_entries
		WHERE email_key = $1
	`
	var e WaitlistEntry
	err := r.pool.QueryRow(ctx, query, emailKey).Scan(
		&e.ID,
		&e.EmailKey,
		&e.Email,
		&e.Name,
		&e.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying waitlist entry: %w", err)
	}
	return &e, nil
}
