package eventsource

import (
	"context"
	"sync"
	"time"
)

// StubEventSource serves a fixed snapshot in tests.
type StubEventSource struct {
	mu     sync.Mutex
	events []Event

	// Err, when set, is returned by UpcomingEvents.
	Err error
	// FetchCount counts UpcomingEvents calls.
	FetchCount int
	// LastCalendarIDs records the selection of the most recent fetch.
	LastCalendarIDs []string
}

func NewStubEventSource(events ...Event) *StubEventSource {
	return &StubEventSource{events: events}
}

func (s *StubEventSource) UpcomingEvents(ctx context.Context, calendarIDs []string, from time.Time) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FetchCount++
	s.LastCalendarIDs = calendarIDs
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out, nil
}

func (s *StubEventSource) SetEvents(events ...Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = events
}
