package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
)

// InMemoryStore keeps memories in a map. Values are deep-copied on the way
// in and out so callers never share slices with the store.
type InMemoryStore struct {
	mu   sync.RWMutex
	data map[string]domain.ConversationMemory
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: make(map[string]domain.ConversationMemory)}
}

func (s *InMemoryStore) LoadMemory(_ context.Context, key string) (*domain.ConversationMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	c := m.Clone()
	return &c, nil
}

func (s *InMemoryStore) SaveMemory(_ context.Context, key string, mem domain.ConversationMemory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = mem.Clone()
	return nil
}

func (s *InMemoryStore) DeleteMemory(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *InMemoryStore) ListConversations(_ context.Context, limit int) ([]domain.ConversationSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.RLock()
	out := make([]domain.ConversationSummary, 0, len(s.data))
	for k, m := range s.data {
		out = append(out, domain.ConversationSummary{
			Key:          k,
			Stage:        m.Stage,
			Confidence:   m.Confidence,
			CaseID:       m.CaseID,
			MessageCount: len(m.Messages),
			UpdatedAt:    time.UnixMilli(m.LastUpdated),
		})
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.ConversationSummary) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
