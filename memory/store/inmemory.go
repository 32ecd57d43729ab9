package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/datatalk-ai/datatalk/memory"
)

// InMemoryStore implements memory.Store with an in-process map. Histories are
// deep-copied on both save and load so callers never share message structs
// with the store.
type InMemoryStore struct {
	mu        sync.RWMutex
	histories map[string]*memory.History
}

// NewInMemoryStore creates a new in-memory thread history store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		histories: make(map[string]*memory.History),
	}
}

// Load returns the history for a thread, or an empty history when unknown.
func (s *InMemoryStore) Load(ctx context.Context, threadID string) (*memory.History, error) {
	if threadID == "" {
		return nil, fmt.Errorf("thread id cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.histories[threadID]
	if !ok {
		return memory.NewHistory(), nil
	}
	return h.Clone(), nil
}

// Save persists the history for a thread.
func (s *InMemoryStore) Save(ctx context.Context, threadID string, h *memory.History) error {
	if threadID == "" {
		return fmt.Errorf("thread id cannot be empty")
	}
	if h == nil {
		return fmt.Errorf("history cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.histories[threadID] = h.Clone()
	return nil
}

// Delete removes a thread's history.
func (s *InMemoryStore) Delete(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.histories, threadID)
	return nil
}

// List returns all known thread identifiers.
func (s *InMemoryStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.histories))
	for id := range s.histories {
		ids = append(ids, id)
	}
	return ids, nil
}

// Count returns the number of stored threads.
func (s *InMemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.histories), nil
}

// Exists reports whether a thread has persisted history.
func (s *InMemoryStore) Exists(ctx context.Context, threadID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.histories[threadID]
	return ok, nil
}

// Clear removes all histories from the store
func (s *InMemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.histories = make(map[string]*memory.History)
	return nil
}
