package storage

import (
	"context"
	"sort"
	"sync"
)

type MemoryStorage struct {
	mu    sync.RWMutex
	dates map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		dates: make(map[string]string),
	}
}

func (s *MemoryStorage) GetStartDate(ctx context.Context, conversationID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	date, exists := s.dates[conversationID]
	return date, exists, nil
}

func (s *MemoryStorage) SaveStartDate(ctx context.Context, conversationID, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dates[conversationID] = date
	return nil
}

func (s *MemoryStorage) ListConversations(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.dates))
	for id := range s.dates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
