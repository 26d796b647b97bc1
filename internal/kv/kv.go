// Package kv provides the key-value capability debate state is persisted to.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("key not found")

// Store defines a minimal key-value persistence capability.
type Store interface {
	// Get returns the raw value for key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any existing entry.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists every key starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases the underlying connection.
	Close() error
}

// GetJSON decodes the value at key into a T. Missing or corrupt entries
// are treated as absent and yield def.
func GetJSON[T any](ctx context.Context, s Store, key string, def T) T {
	data, err := s.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Debug("kv read failed", "key", key, "error", err)
		}
		return def
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		slog.Debug("kv entry is corrupt", "key", key, "error", err)
		return def
	}
	return v
}

// SetJSON encodes v and stores it under key. It reports whether the write succeeded.
func SetJSON(ctx context.Context, s Store, key string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Debug("kv encode failed", "key", key, "error", err)
		return false
	}
	if err := s.Set(ctx, key, data); err != nil {
		slog.Debug("kv write failed", "key", key, "error", err)
		return false
	}
	return true
}
