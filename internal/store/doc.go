// Package store provides persistent client-side storage using SQLite.
//
// # Architecture
//
// The package exposes a small key-value contract:
//
//   - KV: Get/Set/Delete of string values, ErrNotFound when absent
//   - Store: KV plus Close
//
// SQLiteStore implements Store on a single `kv` table. MockStore is an
// in-memory implementation for tests that can also inject read and write
// failures.
//
// # Keys
//
// Callers own their key namespaces:
//
//   - session_<assignmentID>: persisted conversation session identifier
//   - calendar_link_<identity>: external calendar link state
//
// # Usage
//
//	s, err := store.NewSQLiteStore("/home/me/.local/share/stakeholder-chat/state.db")
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	if err := s.Set(ctx, "session_a1", "session_1700000000000_ab12cd34e"); err != nil {
//	    return err
//	}
package store
