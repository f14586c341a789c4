// ABOUTME: Persisted key-value store interface for client-side state
// ABOUTME: Backs session identifiers and calendar link state across restarts

package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has no stored value
var ErrNotFound = errors.New("not found")

// KV is a string key-value store that survives process restarts.
// Implementations must be safe for concurrent use.
type KV interface {
	// Get returns the value for key, or ErrNotFound if it is absent.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Store is a KV that holds resources which must be released.
type Store interface {
	KV

	// Close releases any resources held by the store
	Close() error
}
