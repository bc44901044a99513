package timer

import (
	"fmt"
	"sync"
	"time"
)

// StubTimer records Schedule and Cancel calls for assertions in tests.
type StubTimer struct {
	mu sync.Mutex

	// Calls records operations in order, e.g. "schedule:1", "cancel:2".
	Calls []string
	// ScheduledAt holds the last requested trigger time per event id.
	ScheduledAt map[string]time.Time
	// FailScheduleFor makes Schedule fail for the given event ids.
	FailScheduleFor map[string]bool
}

func NewStubTimer() *StubTimer {
	return &StubTimer{
		ScheduledAt: make(map[string]time.Time),
	}
}

func (t *StubTimer) Schedule(eventID string, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.FailScheduleFor[eventID] {
		return fmt.Errorf("stub: schedule failure for %s", eventID)
	}
	t.Calls = append(t.Calls, "schedule:"+eventID)
	t.ScheduledAt[eventID] = at
	return nil
}

func (t *StubTimer) Cancel(eventID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Calls = append(t.Calls, "cancel:"+eventID)
	delete(t.ScheduledAt, eventID)
	return nil
}

// Live returns the number of schedule calls without a matching cancel.
func (t *StubTimer) Live(eventID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	live := 0
	for _, call := range t.Calls {
		switch call {
		case "schedule:" + eventID:
			live++
		case "cancel:" + eventID:
			live--
		}
	}
	return live
}

func (t *StubTimer) CallsSnapshot() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.Calls))
	copy(out, t.Calls)
	return out
}

func (t *StubTimer) ResetCalls() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Calls = nil
}
