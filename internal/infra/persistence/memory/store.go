// Package memory provides a volatile store.Backend used by tests and the
// "memory" storage driver. State survives engine reopen within a process but
// not a process restart.
package memory

import (
	"context"
	"errors"
	"sync"

	"recordstore/internal/store"
)

// ErrClosed is returned by operations on a closed backend.
var ErrClosed = errors.New("memory backend closed")

// Store keeps committed batches in a snapshot guarded by a mutex.
type Store struct {
	mu       sync.Mutex
	snapshot store.Snapshot
	closed   bool
	failFn   func(store.Batch) error
}

var _ store.Backend = (*Store)(nil)

// NewStore returns an empty in-memory backend.
func NewStore() *Store {
	return &Store{snapshot: store.NewSnapshot()}
}

// NewStoreFromSnapshot seeds the backend with a previously exported snapshot.
func NewStoreFromSnapshot(snapshot store.Snapshot) *Store {
	return &Store{snapshot: snapshot.Clone()}
}

// FailCommits installs a hook consulted before each commit. A non-nil error
// aborts the commit without changing state. Passing nil removes the hook.
func (s *Store) FailCommits(fn func(store.Batch) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFn = fn
}

// Load returns a copy of the committed snapshot.
func (s *Store) Load(context.Context) (store.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.Snapshot{}, ErrClosed
	}
	return s.snapshot.Clone(), nil
}

// Commit folds the batch into the snapshot.
func (s *Store) Commit(ctx context.Context, batch store.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.failFn != nil {
		if err := s.failFn(batch); err != nil {
			return err
		}
	}
	s.snapshot.Apply(batch)
	return nil
}

// Snapshot returns a copy of the committed state.
func (s *Store) Snapshot() store.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Clone()
}

// Reopen clears the closed flag so a new engine can load the retained state.
func (s *Store) Reopen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = false
}

// Close marks the backend closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
