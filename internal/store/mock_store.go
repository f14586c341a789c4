// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sync"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu     sync.RWMutex
	values map[string]string

	// GetErr and SetErr, when set, are returned by Get and Set to
	// simulate an unreadable or read-only backing store.
	GetErr error
	SetErr error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		values: make(map[string]string),
	}
}

// Get retrieves the value stored under key.
func (m *MockStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetErr != nil {
		return "", m.GetErr
	}

	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores value under key.
func (m *MockStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SetErr != nil {
		return m.SetErr
	}

	m.values[key] = value
	return nil
}

// Delete removes key.
func (m *MockStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	return nil
}

// Len returns the number of stored keys.
func (m *MockStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

// Close is a no-op for MockStore.
func (m *MockStore) Close() error {
	return nil
}
