// Package waitlist registers people for early access.
//
// Entries are keyed by lowercased email. Registration is a single atomic
// insert-if-absent on the Store, so two concurrent registrations for the same
// email yield exactly one entry and one ErrAlreadyRegistered.
package waitlist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/justestif/muse/internal/logger"
)

// Sentinel errors.
var (
	// ErrInvalidRequest is returned when email or name is missing.
	ErrInvalidRequest = errors.New("invalid waitlist request")

	// ErrAlreadyRegistered is returned when the email is already on the list.
	ErrAlreadyRegistered = errors.New("email already registered")

	// ErrNotFound is returned by stores for unknown keys.
	ErrNotFound = errors.New("waitlist entry not found")
)

// Entry is a waitlist registration.
type Entry struct {
	ID        uuid.UUID `json:"-"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
}

// Key returns the case-insensitive lookup key of an email.
func Key(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Store persists entries.
type Store interface {
	// InsertIfAbsent stores e unless an entry with the same key exists. It
	// reports whether e was stored.
	InsertIfAbsent(ctx context.Context, e Entry) (bool, error)
	// Get returns the entry for key, or ErrNotFound.
	Get(ctx context.Context, key string) (Entry, error)
}

// Notifier is told about new registrations. Failures are logged only.
type Notifier interface {
	Notify(ctx context.Context, e Entry) error
}

// CheckResult is the outcome of an existence check. User is set only when
// Exists is true.
type CheckResult struct {
	Exists bool   `json:"exists"`
	User   *Entry `json:"user,omitempty"`
}

// Service implements the waitlist operations over a Store.
type Service struct {
	store    Store
	notifier Notifier
	log      *logger.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the notifier for new registrations.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the registration time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a waitlist service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		log:   logger.NewNop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check reports whether email is registered, ignoring case.
func (s *Service) Check(ctx context.Context, email string) (CheckResult, error) {
	key := Key(email)
	if key == "" {
		return CheckResult{}, fmt.Errorf("%w: email is required", ErrInvalidRequest)
	}

	e, err := s.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return CheckResult{Exists: false}, nil
	}
	if err != nil {
		return CheckResult{}, fmt.Errorf("checking waitlist: %w", err)
	}
	return CheckResult{Exists: true, User: &e}, nil
}

// Register adds email and name to the waitlist. A duplicate email returns
// ErrAlreadyRegistered and leaves the existing entry untouched. The notifier
// runs after the insert and cannot change the outcome.
func (s *Service) Register(ctx context.Context, email, name string) (Entry, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if email == "" || name == "" {
		return Entry{}, fmt.Errorf("%w: email and name are required", ErrInvalidRequest)
	}

	e := Entry{
		ID:        uuid.New(),
		Email:     email,
		Name:      name,
		Timestamp: s.now().UTC(),
	}
	inserted, err := s.store.InsertIfAbsent(ctx, e)
	if err != nil {
		return Entry{}, fmt.Errorf("registering: %w", err)
	}
	if !inserted {
		return Entry{}, ErrAlreadyRegistered
	}

	s.log.Info("waitlist registration", "email", e.Email)

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, e); err != nil {
			s.log.Warn("waitlist notification failed", "email", e.Email, "error", err)
		}
	}
	return e, nil
}
