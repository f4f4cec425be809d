// Package state owns each conversation's program start date.
package state

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store resolves and records program start dates.
type Store interface {
	// EnsureStart returns the start date of a conversation, if any.
	EnsureStart(ctx context.Context, conversationID string) (time.Time, bool)
	// SetStart records a start date. It never fails from the caller's view.
	SetStart(ctx context.Context, conversationID string, start time.Time)
	// Conversations lists every conversation known to have a start date.
	Conversations(ctx context.Context) []string
}

// MemoryStore is a map-only Store.
type MemoryStore struct {
	mu     sync.RWMutex
	starts map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{starts: make(map[string]time.Time)}
}

func (s *MemoryStore) EnsureStart(_ context.Context, conversationID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start, ok := s.starts[conversationID]
	return start, ok
}

func (s *MemoryStore) SetStart(_ context.Context, conversationID string, start time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts[conversationID] = start
}

func (s *MemoryStore) Conversations(context.Context) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.starts)
}

func sortedKeys(m map[string]time.Time) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
