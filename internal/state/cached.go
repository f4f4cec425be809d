package state

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xaenox/slimday-bot/internal/clock"
	"github.com/xaenox/slimday-bot/internal/storage"
	"go.uber.org/zap"
)

const defaultWriteTimeout = 10 * time.Second

// CachedStore keeps an in-process cache that is authoritative for the
// lifetime of the process, backed by a durable storage.Storage that is read
// on cache misses and written behind every SetStart.
type CachedStore struct {
	mu      sync.RWMutex
	starts  map[string]time.Time
	seq     map[string]uint64
	writers map[string]*sync.Mutex
	durable storage.Storage
	clock   *clock.Clock
	logger  *zap.Logger

	writeTimeout time.Duration
	pending      sync.WaitGroup
}

func NewCachedStore(durable storage.Storage, clk *clock.Clock, logger *zap.Logger) *CachedStore {
	return &CachedStore{
		starts:       make(map[string]time.Time),
		seq:          make(map[string]uint64),
		writers:      make(map[string]*sync.Mutex),
		durable:      durable,
		clock:        clk,
		logger:       logger,
		writeTimeout: defaultWriteTimeout,
	}
}

func (s *CachedStore) cached(conversationID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start, ok := s.starts[conversationID]
	return start, ok
}

// EnsureStart checks the cache, then the durable store. Durable errors and
// unparseable dates are logged and read as "no program started".
func (s *CachedStore) EnsureStart(ctx context.Context, conversationID string) (time.Time, bool) {
	if start, ok := s.cached(conversationID); ok {
		return start, true
	}

	raw, found, err := s.durable.GetStartDate(ctx, conversationID)
	if err != nil {
		s.logger.Warn("Failed to read start date from durable store",
			zap.Error(err),
			zap.String("conversation_id", conversationID))
		return time.Time{}, false
	}
	if !found {
		return time.Time{}, false
	}

	start, err := s.clock.ParseDate(raw)
	if err != nil {
		s.logger.Warn("Ignoring malformed start date from durable store",
			zap.Error(err),
			zap.String("conversation_id", conversationID))
		return time.Time{}, false
	}

	s.mu.Lock()
	// a SetStart that raced with the lookup wins
	if existing, ok := s.starts[conversationID]; ok {
		s.mu.Unlock()
		return existing, true
	}
	s.starts[conversationID] = start
	s.mu.Unlock()

	return start, true
}

// SetStart updates the cache immediately and writes the durable store in the
// background. The write is attempted once; failures are only logged.
// Writes for one conversation run one at a time, and a write that has been
// superseded by a later SetStart is dropped, so the durable store ends up
// with the same value as the cache.
func (s *CachedStore) SetStart(ctx context.Context, conversationID string, start time.Time) {
	s.mu.Lock()
	s.starts[conversationID] = start
	s.seq[conversationID]++
	seq := s.seq[conversationID]
	writer, ok := s.writers[conversationID]
	if !ok {
		writer = &sync.Mutex{}
		s.writers[conversationID] = writer
	}
	s.mu.Unlock()

	date := clock.FormatDate(start)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		writer.Lock()
		defer writer.Unlock()
		if !s.latest(conversationID, seq) {
			s.logger.Debug("Skipping superseded start date write",
				zap.String("conversation_id", conversationID),
				zap.String("start_date", date))
			return
		}

		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
		defer cancel()

		if err := s.durable.SaveStartDate(writeCtx, conversationID, date); err != nil {
			s.logger.Warn("Failed to persist start date",
				zap.Error(err),
				zap.String("conversation_id", conversationID),
				zap.String("start_date", date))
		}
	}()
}

func (s *CachedStore) latest(conversationID string, seq uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq[conversationID] == seq
}

// Conversations merges the cache with the durable store when it can list.
func (s *CachedStore) Conversations(ctx context.Context) []string {
	s.mu.RLock()
	seen := make(map[string]struct{}, len(s.starts))
	for id := range s.starts {
		seen[id] = struct{}{}
	}
	s.mu.RUnlock()

	if lister, ok := s.durable.(storage.Lister); ok {
		ids, err := lister.ListConversations(ctx)
		if err != nil {
			s.logger.Warn("Failed to list conversations from durable store", zap.Error(err))
		}
		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Flush waits for background writes started so far.
func (s *CachedStore) Flush() {
	s.pending.Wait()
}
