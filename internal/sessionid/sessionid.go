// ABOUTME: Per-assignment conversation session identifiers persisted in a KV store
// ABOUTME: Generates a time-prefixed random ID once and returns it unchanged afterwards

package sessionid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/stakeholder-chat/internal/store"
)

// keyPrefix namespaces session identifiers inside the shared KV store.
const keyPrefix = "session_"

// Store derives and persists one session identifier per assignment.
type Store struct {
	kv     store.KV
	now    func() time.Time
	logger *slog.Logger
}

// New creates a Store backed by kv. Pass nil logger for default.
func New(kv store.KV, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		kv:     kv,
		now:    time.Now,
		logger: logger.With("component", "sessionid"),
	}
}

// Key returns the KV key holding the session identifier for an assignment.
func Key(assignmentID string) string {
	return keyPrefix + assignmentID
}

// GetOrCreate returns the persisted session identifier for assignmentID,
// generating and storing a new one on first use. Entries that are missing,
// blank or unreadable are treated as absent and replaced.
//
// A failed write is returned alongside the freshly generated identifier so the
// caller can continue the conversation for the lifetime of the process.
func (s *Store) GetOrCreate(ctx context.Context, assignmentID string) (string, error) {
	key := Key(assignmentID)

	existing, err := s.kv.Get(ctx, key)
	switch {
	case err == nil && strings.TrimSpace(existing) != "":
		return existing, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		s.logger.Warn("unreadable session entry, regenerating",
			"assignment_id", assignmentID,
			"error", err)
	}

	id := s.generate()
	if err := s.kv.Set(ctx, key, id); err != nil {
		return id, fmt.Errorf("persisting session id: %w", err)
	}

	s.logger.Debug("created session id",
		"assignment_id", assignmentID,
		"session_id", id)
	return id, nil
}

// generate builds session_<unix-millis>_<random suffix>.
func (s *Store) generate() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%s%d_%s", keyPrefix, s.now().UnixMilli(), suffix)
}
