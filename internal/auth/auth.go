// Package auth implements Google sign-in and the waitlist side effects that
// run when someone signs in.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"

	"github.com/justestif/muse/internal/logger"
	"github.com/justestif/muse/internal/waitlist"
)

var (
	// ErrMissingCredentials is returned when the Google client ID or secret is not set.
	ErrMissingCredentials = errors.New("missing GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET")

	// ErrStateMismatch is returned when the OAuth state parameter doesn't match.
	ErrStateMismatch = errors.New("OAuth state mismatch")

	// ErrIncompleteIdentity is returned when the provider omits email or name.
	ErrIncompleteIdentity = errors.New("identity is missing email or name")
)

// Identity is what the identity provider tells us about the user.
type Identity struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

// Complete reports whether both email and name are present.
func (id Identity) Complete() bool {
	return strings.TrimSpace(id.Email) != "" && strings.TrimSpace(id.Name) != ""
}

// Waitlist is the part of the waitlist the sign-in chain needs. Both the
// in-process service and the HTTP client satisfy it.
type Waitlist interface {
	Check(ctx context.Context, email string) (waitlist.CheckResult, error)
	Register(ctx context.Context, email, name string) (waitlist.Entry, error)
}

// SignIn runs the waitlist side effects of a successful sign-in.
type SignIn struct {
	waitlist Waitlist
	log      *logger.Logger
}

// NewSignIn creates a sign-in chain over wl.
func NewSignIn(wl Waitlist, log *logger.Logger) *SignIn {
	if log == nil {
		log = logger.NewNop()
	}
	return &SignIn{waitlist: wl, log: log}
}

// Allow decides whether id may sign in. Identities without email or name
// are rejected. Otherwise the person is added to the waitlist if missing;
// waitlist failures are logged and never block the sign-in.
func (s *SignIn) Allow(ctx context.Context, id Identity) bool {
	if !id.Complete() {
		s.log.Warn("sign-in rejected", "error", ErrIncompleteIdentity)
		return false
	}

	res, err := s.waitlist.Check(ctx, id.Email)
	if err != nil {
		s.log.Error("waitlist check during sign-in failed", "email", id.Email, "error", err)
		return true
	}
	if res.Exists {
		s.log.Info("existing user signing in", "email", id.Email)
		return true
	}

	if _, err := s.waitlist.Register(ctx, id.Email, id.Name); err != nil {
		if errors.Is(err, waitlist.ErrAlreadyRegistered) {
			s.log.Info("user registered concurrently", "email", id.Email)
		} else {
			s.log.Error("waitlist registration during sign-in failed", "email", id.Email, "error", err)
		}
		return true
	}
	s.log.Info("added new user to waitlist", "email", id.Email)
	return true
}

// Post-sign-in destinations.
const (
	PathLogin       = "/login"
	PathCheckStatus = "/auth/check-status"
	LoginErrorQuery = "error=auth_failed"
)

// Redirect maps a requested post-sign-in target to the final URL. Targets
// mentioning "error" go to the login page with an error flag. Targets on the
// same origin as baseURL, including relative paths, pass through. Anything
// else goes to the status check page.
func Redirect(target, baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if strings.Contains(target, "error") {
		return base + PathLogin + "?" + LoginErrorQuery
	}

	b, err := url.Parse(base)
	if err != nil {
		return base + PathCheckStatus
	}
	t, err := url.Parse(target)
	if err != nil || target == "" {
		return base + PathCheckStatus
	}

	if !t.IsAbs() && t.Host == "" && strings.HasPrefix(t.Path, "/") && !strings.HasPrefix(target, "//") {
		return b.ResolveReference(t).String()
	}
	if strings.EqualFold(t.Scheme, b.Scheme) && strings.EqualFold(t.Host, b.Host) {
		return target
	}
	return base + PathCheckStatus
}

// GenerateState creates a random state string for OAuth.
func GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
