package waitlist

import (
	"context"
	"errors"
	"sync"

	"github.com/justestif/muse/internal/db"
)

// MemoryStore keeps entries for the lifetime of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

// InsertIfAbsent implements Store.
func (m *MemoryStore) InsertIfAbsent(_ context.Context, e Entry) (bool, error) {
	key := Key(e.Email)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; ok {
		return false, nil
	}
	m.entries[key] = e
	return true, nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

// Len returns the number of entries.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// PostgresStore keeps entries in the waitlist_entries table.
type PostgresStore struct {
	repo *db.WaitlistRepository
}

// NewPostgresStore creates a store backed by database.
func NewPostgresStore(database *db.DB) *PostgresStore {
	return &PostgresStore{repo: database.Waitlist()}
}

// InsertIfAbsent implements Store.
func (p *PostgresStore) InsertIfAbsent(ctx context.Context, e Entry) (bool, error) {
	return p.repo.InsertIfAbsent(ctx, &db.WaitlistEntry{
		ID:        e.ID,
		EmailKey:  Key(e.Email),
		Email:     e.Email,
		Name:      e.Name,
		CreatedAt: e.Timestamp,
	})
}

// Get implements Store.
func (p *PostgresStore) Get(ctx context.Context, key string) (Entry, error) {
	row, err := p.repo.GetByKey(ctx, key)
	if errors.Is(err, db.ErrNotFound) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		ID:        row.ID,
		Email:     row.Email,
		Name:      row.Name,
		Timestamp: row.CreatedAt.UTC(),
	}, nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
