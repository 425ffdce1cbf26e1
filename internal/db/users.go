package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository stores people who signed in with Google.
type UserRepository struct {
	pool *pgxpool.Pool
}

// RecordLogin creates the user or refreshes their name and email, and stamps
// the login time. CreatedAt, UpdatedAt and LastLoginAt are filled from the row.
func (r *UserRepository) RecordLogin(ctx context.Context, u *User, at time.Time) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, display_name, email, created_at, updated_at, last_login_at)
		VALUES ($1, $2, $3, $4, $4, $4)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			email = EXCLUDED.email,
			updated_at = EXCLUDED.updated_at,
			last_login_at = EXCLUDED.last_login_at
		RETURNING created_at, updated_at, last_login_at
	`, u.ID, u.DisplayName, u.Email, at).Scan(&u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt)
	if err != nil {
		return fmt.Errorf("recording login: %w", err)
	}
	return nil
}
