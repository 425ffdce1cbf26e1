package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/justestif/muse/internal/auth"
	"github.com/justestif/muse/internal/db"
)

const (
	sessionCookieName = "session_id"
	sessionTTL        = 24 * time.Hour
)

// Session represents a signed-in user.
type Session struct {
	ID        string
	UserID    string
	Email     string
	Name      string
	CreatedAt time.Time
}

// SessionManager creates, resolves and expires sign-in sessions.
type SessionManager interface {
	Create(ctx context.Context, id auth.Identity) (*Session, error)
	Get(ctx context.Context, id string) *Session
	Delete(ctx context.Context, id string)
	// Prune drops expired sessions and reports how many went.
	Prune(ctx context.Context) (int64, error)
	GetFromRequest(r *http.Request) *Session
	SetCookie(w http.ResponseWriter, session *Session)
	ClearCookie(w http.ResponseWriter)
}

// ============================================================================
// In-Memory Session Store (for development/testing)
// ============================================================================

// SessionStore keeps sessions in a map guarded by a mutex.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewSessionStore creates an empty in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create starts a session for a signed-in identity.
func (s *SessionStore) Create(_ context.Context, id auth.Identity) (*Session, error) {
	sid, err := generateSessionID()
	if err != nil {
		return nil, err
	}

	session := &Session{
		ID:        sid,
		UserID:    userID(id),
		Email:     id.Email,
		Name:      id.Name,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	s.sessions[sid] = session
	s.mu.Unlock()

	return session, nil
}

// Get returns the session with id, or nil when unknown or expired.
func (s *SessionStore) Get(_ context.Context, id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok || s.expired(session) {
		return nil
	}
	return session
}

// Delete forgets the session with id.
func (s *SessionStore) Delete(_ context.Context, id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Prune drops every expired session.
func (s *SessionStore) Prune(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, session := range s.sessions {
		if s.expired(session) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

func (s *SessionStore) expired(session *Session) bool {
	return s.now().Sub(session.CreatedAt) > sessionTTL
}

// GetFromRequest resolves the session cookie of r.
func (s *SessionStore) GetFromRequest(r *http.Request) *Session {
	return sessionFromRequest(r, s)
}

// SetCookie writes the session cookie.
func (s *SessionStore) SetCookie(w http.ResponseWriter, session *Session) {
	setCookie(w, session)
}

// ClearCookie expires the session cookie.
func (s *SessionStore) ClearCookie(w http.ResponseWriter) {
	clearCookie(w)
}

// ============================================================================
// Database-Backed Session Store
// ============================================================================

// DBSessionStore keeps users and sessions in PostgreSQL.
type DBSessionStore struct {
	database *db.DB
	now      func() time.Time
}

// NewDBSessionStore creates a session store over database.
func NewDBSessionStore(database *db.DB) *DBSessionStore {
	return &DBSessionStore{database: database, now: time.Now}
}

// Create records the login for the identity's user and stores a new session.
func (s *DBSessionStore) Create(ctx context.Context, id auth.Identity) (*Session, error) {
	sid, err := generateSessionID()
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &db.User{
		ID:          userID(id),
		DisplayName: id.Name,
		Email:       id.Email,
	}
	if err := s.database.Users().RecordLogin(ctx, user, now); err != nil {
		return nil, err
	}

	err = s.database.Sessions().Create(ctx, &db.Session{
		ID:        sid,
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(sessionTTL),
	})
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:        sid,
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.DisplayName,
		CreatedAt: now,
	}, nil
}

// Get returns the unexpired session with id, or nil.
func (s *DBSessionStore) Get(ctx context.Context, id string) *Session {
	a, err := s.database.Sessions().GetActive(ctx, id, s.now())
	if err != nil {
		return nil
	}
	return &Session{
		ID:        a.ID,
		UserID:    a.UserID,
		Email:     a.Email,
		Name:      a.DisplayName,
		CreatedAt: a.CreatedAt,
	}
}

// Delete removes the session row.
func (s *DBSessionStore) Delete(ctx context.Context, id string) {
	_ = s.database.Sessions().Delete(ctx, id)
}

// Prune deletes expired session rows.
func (s *DBSessionStore) Prune(ctx context.Context) (int64, error) {
	return s.database.Sessions().Prune(ctx, s.now())
}

// GetFromRequest resolves the session cookie of r.
func (s *DBSessionStore) GetFromRequest(r *http.Request) *Session {
	return sessionFromRequest(r, s)
}

// SetCookie writes the session cookie.
func (s *DBSessionStore) SetCookie(w http.ResponseWriter, session *Session) {
	setCookie(w, session)
}

// ClearCookie expires the session cookie.
func (s *DBSessionStore) ClearCookie(w http.ResponseWriter) {
	clearCookie(w)
}

// ============================================================================
// Helper Functions
// ============================================================================

// userID keys users by provider subject, falling back to the email.
func userID(id auth.Identity) string {
	if id.Subject != "" {
		return id.Subject
	}
	return id.Email
}

func sessionFromRequest(r *http.Request, m SessionManager) *Session {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil
	}
	return m.Get(r.Context(), cookie.Value)
}

// generateSessionID creates a cryptographically random session ID.
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// setCookie sets the session cookie on the response.
func setCookie(w http.ResponseWriter, session *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sessionTTL.Seconds()),
	})
}

// clearCookie removes the session cookie from the response.
func clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// Ensure both stores implement SessionManager.
var (
	_ SessionManager = (*SessionStore)(nil)
	_ SessionManager = (*DBSessionStore)(nil)
)
