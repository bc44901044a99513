package alarm

import (
	"context"
	"sort"
	"sync"
)

// StubBlacklistRepository is an in-memory BlacklistRepository used in tests.
type StubBlacklistRepository struct {
	mu  sync.Mutex
	ids map[string]bool

	// Calls records mutating operations in order, e.g. "add:1", "remove:2".
	Calls []string
}

func NewStubBlacklistRepository() *StubBlacklistRepository {
	return &StubBlacklistRepository{ids: make(map[string]bool)}
}

func (s *StubBlacklistRepository) ListAll(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]string, 0, len(s.ids))
	for id := range s.ids {
		all = append(all, id)
	}
	sort.Strings(all)
	return all, nil
}

func (s *StubBlacklistRepository) Contains(ctx context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids[eventID], nil
}

func (s *StubBlacklistRepository) Add(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "add:"+eventID)
	s.ids[eventID] = true
	return nil
}

func (s *StubBlacklistRepository) Remove(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "remove:"+eventID)
	delete(s.ids, eventID)
	return nil
}

// Put seeds an id directly, without recording a call.
func (s *StubBlacklistRepository) Put(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[eventID] = true
}

func (s *StubBlacklistRepository) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = nil
}
