package db

import (
	"time"

	"github.com/google/uuid"
)

// User is a person who signed in with Google.
type User struct {
	ID          string // provider subject
	DisplayName string
	Email       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time // nullable
}

// Session is a signed-in browser session.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ActiveSession is an unexpired session joined with its user.
type ActiveSession struct {
	Session
	Email       string
	DisplayName string
}

// WaitlistEntry is a waitlist registration. EmailKey is the lowercased
// email and is unique.
type WaitlistEntry struct {
	ID        uuid.UUID
	EmailKey  string
	Email     string
	Name      string
	CreatedAt time.Time
}
