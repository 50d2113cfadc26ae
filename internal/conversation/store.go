package conversation

import (
	"context"
	"sync"
	"time"
)

// Store holds per-user conversation histories. Implementations must
// replace a user's record wholesale on write (copy-on-write) so a
// concurrent reader sees either the old or the new history, never a
// partially edited one.
type Store interface {
	// Get returns the user's history, or an empty slice if none exists.
	// The returned slice is owned by the caller.
	Get(ctx context.Context, userID string) ([]Turn, error)
	// Put replaces the user's history and bumps its last-activity time.
	Put(ctx context.Context, userID string, turns []Turn) error
	// Delete removes the user's history and activity record. No-op if
	// the user is unknown.
	Delete(ctx context.Context, userID string) error
	// Cleanup drops every history whose last activity predates the
	// store's idle threshold. Idempotent.
	Cleanup(ctx context.Context) error
}

type memoryRecord struct {
	turns        []Turn
	lastActivity time.Time
}

// MemoryStore is the default in-process Store: a mutex-guarded map with
// per-user copy-on-write records.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[string]*memoryRecord
	idleAfter time.Duration
	now       func() time.Time
}

// NewMemoryStore creates an in-memory store that expires conversations
// idle for longer than idleAfter.
func NewMemoryStore(idleAfter time.Duration) *MemoryStore {
	return &MemoryStore{
		records:   make(map[string]*memoryRecord),
		idleAfter: idleAfter,
		now:       time.Now,
	}
}

// WithClock overrides the store's clock. Test hook.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Get(_ context.Context, userID string) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[userID]
	if !ok {
		return nil, nil
	}
	return cloneTurns(rec.turns), nil
}

func (s *MemoryStore) Put(_ context.Context, userID string, turns []Turn) error {
	rec := &memoryRecord{turns: cloneTurns(turns), lastActivity: s.now()}

	s.mu.Lock()
	s.records[userID] = rec
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	delete(s.records, userID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Cleanup(_ context.Context) error {
	cutoff := s.now().Add(-s.idleAfter)

	s.mu.Lock()
	defer s.mu.Unlock()

	for userID, rec := range s.records {
		if rec.lastActivity.Before(cutoff) {
			delete(s.records, userID)
		}
	}
	return nil
}

// Len returns the number of stored conversations.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
