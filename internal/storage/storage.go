// Package storage provides the key-value persistence used for per-client state.
//
// A nil Storage stands for "no storage medium": reads fall back to defaults
// and writes are silently dropped, so callers never have to special-case a
// rendering context without durable storage.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by backends when a key has no value.
var ErrNotFound = errors.New("storage: key not found")

// Storage is a durable key-value medium holding raw JSON documents.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Read returns the decoded value stored under key, or def when the key is
// absent or s is nil. A stored value that does not decode is an error.
func Read[T any](ctx context.Context, s Storage, key string, def T) (T, error) {
	if s == nil {
		return def, nil
	}

	data, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("reading %s: %w", key, err)
	}
	if len(data) == 0 {
		return def, nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return def, fmt.Errorf("decoding %s: %w", key, err)
	}
	return v, nil
}

// Write encodes value as JSON and stores it under key. It is a no-op when
// s is nil.
func Write[T any](ctx context.Context, s Storage, key string, value T) error {
	if s == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := s.Set(ctx, key, data); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. It is a no-op when s is nil or the key is absent.
func Remove(ctx context.Context, s Storage, key string) error {
	if s == nil {
		return nil
	}
	if err := s.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}
