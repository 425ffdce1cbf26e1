package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/muse/internal/auth"
	"github.com/justestif/muse/internal/db"
)

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	sess, err := s.Create(ctx, auth.Identity{Subject: "g-1", Email: "a@x.com", Name: "Ann"})
	require.NoError(t, err)
	assert.Len(t, sess.ID, 64)
	assert.Equal(t, "g-1", sess.UserID)

	noSubject, err := s.Create(ctx, auth.Identity{Email: "b@x.com", Name: "Bo"})
	require.NoError(t, err)
	assert.Equal(t, "b@x.com", noSubject.UserID)

	rec := httptest.NewRecorder()
	s.SetCookie(rec, sess)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	got := s.GetFromRequest(req)
	require.NotNil(t, got)
	assert.Equal(t, "Ann", got.Name)

	now = now.Add(sessionTTL + time.Minute)
	assert.Nil(t, s.Get(ctx, sess.ID), "expired session")

	s.Delete(ctx, noSubject.ID)
	assert.Nil(t, s.Get(ctx, noSubject.ID))

	assert.Nil(t, s.GetFromRequest(httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestSessionStorePrune(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	old, err := s.Create(ctx, auth.Identity{Subject: "g-1", Email: "a@x.com", Name: "Ann"})
	require.NoError(t, err)

	now = now.Add(sessionTTL - time.Hour)
	fresh, err := s.Create(ctx, auth.Identity{Subject: "g-2", Email: "b@x.com", Name: "Bo"})
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	n, err := s.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Nil(t, s.Get(ctx, old.ID))
	assert.NotNil(t, s.Get(ctx, fresh.ID))

	n, err = s.Prune(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDBSessionStore(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()

	database, err := db.New(ctx, url)
	require.NoError(t, err)
	defer database.Close()
	require.NoError(t, database.EnsureSchema(ctx))

	s := NewDBSessionStore(database)
	now := time.Now().UTC().Truncate(time.Second)
	s.now = func() time.Time { return now }

	sess, err := s.Create(ctx, auth.Identity{Subject: "pg-session-test", Email: "pg@x.com", Name: "Pat"})
	require.NoError(t, err)

	got := s.Get(ctx, sess.ID)
	require.NotNil(t, got)
	assert.Equal(t, "pg-session-test", got.UserID)
	assert.Equal(t, "Pat", got.Name)

	renamed, err := s.Create(ctx, auth.Identity{Subject: "pg-session-test", Email: "pg@x.com", Name: "Patricia"})
	require.NoError(t, err)
	assert.Equal(t, "Patricia", s.Get(ctx, renamed.ID).Name)

	now = now.Add(sessionTTL + time.Minute)
	assert.Nil(t, s.Get(ctx, sess.ID), "expired session")

	n, err := s.Prune(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(2))

	s.Delete(ctx, renamed.ID)
}
