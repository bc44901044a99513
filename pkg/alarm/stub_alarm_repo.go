package alarm

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// StubAlarmRepository is an in-memory Repository used in tests.
type StubAlarmRepository struct {
	mu     sync.Mutex
	alarms map[string]ScheduledAlarm

	// FailUpsertFor makes Upsert fail for the given event ids.
	FailUpsertFor map[string]bool
	// Calls records mutating operations in order, e.g. "upsert:1", "delete:2".
	Calls []string
}

func NewStubAlarmRepository() *StubAlarmRepository {
	return &StubAlarmRepository{
		alarms: make(map[string]ScheduledAlarm),
	}
}

func (s *StubAlarmRepository) ListAll(ctx context.Context) ([]ScheduledAlarm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]ScheduledAlarm, 0, len(s.alarms))
	for _, a := range s.alarms {
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].StartTime.Before(all[j].StartTime)
	})
	return all, nil
}

func (s *StubAlarmRepository) FindByEventID(ctx context.Context, eventID string) (*ScheduledAlarm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alarms[eventID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *StubAlarmRepository) Upsert(ctx context.Context, a ScheduledAlarm) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUpsertFor[a.EventID] {
		return fmt.Errorf("stub: upsert failure for %s", a.EventID)
	}
	s.Calls = append(s.Calls, "upsert:"+a.EventID)
	s.alarms[a.EventID] = a
	return nil
}

func (s *StubAlarmRepository) Delete(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "delete:"+eventID)
	delete(s.alarms, eventID)
	return nil
}

// Put seeds a row directly, without recording a call.
func (s *StubAlarmRepository) Put(a ScheduledAlarm) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alarms[a.EventID] = a
}

func (s *StubAlarmRepository) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alarms)
}

func (s *StubAlarmRepository) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = nil
}
