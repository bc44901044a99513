package reconciler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wekker/wekker/internal/event_bus"
	"github.com/wekker/wekker/internal/utils"
	"github.com/wekker/wekker/pkg/alarm"
	"github.com/wekker/wekker/pkg/eventsource"
	"github.com/wekker/wekker/pkg/timer"
)

// gatedSource blocks every fetch until released, so tests can hold a pass
// in-flight deterministically.
type gatedSource struct {
	mu      sync.Mutex
	started chan struct{}
	release chan struct{}
	fetches int
}

func newGatedSource() *gatedSource {
	return &gatedSource{
		started: make(chan struct{}, 16),
		release: make(chan struct{}, 16),
	}
}

func (g *gatedSource) UpcomingEvents(ctx context.Context, calendarIDs []string, from time.Time) ([]eventsource.Event, error) {
	g.mu.Lock()
	g.fetches++
	g.mu.Unlock()
	g.started <- struct{}{}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-g.release:
		return nil, nil
	}
}

func (g *gatedSource) fetchCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fetches
}

func (g *gatedSource) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-g.started:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a pass to start")
	}
}

func newGatedCoalescer(source eventsource.EventSource) *Coalescer {
	r := &Reconciler{
		alarms:    alarm.NewStubAlarmRepository(),
		blacklist: alarm.NewStubBlacklistRepository(),
		source:    source,
		timer:     timer.NewStubTimer(),
		clock:     &utils.MockClock{FixedNow: time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)},
		bus:       event_bus.NewEventBus(),
	}
	return NewCoalescer(r)
}

func TestCoalescerRunsOnePassPerTrigger(t *testing.T) {
	source := newGatedSource()
	c := newGatedCoalescer(source)

	c.Start(context.Background())
	defer c.Stop()

	c.Notify("test")
	source.waitStarted(t)
	source.release <- struct{}{}

	// Give the consumer a moment to go idle, then confirm no extra pass ran.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, source.fetchCount())
}

func TestCoalescerCancelsInFlightPassOnFreshTrigger(t *testing.T) {
	source := newGatedSource()
	c := newGatedCoalescer(source)

	c.Start(context.Background())
	defer c.Stop()

	c.Notify("first")
	source.waitStarted(t)

	// The in-flight pass is blocked on the source. A fresh trigger must
	// cancel it and start a new pass with fresh inputs.
	c.Notify("second")
	source.waitStarted(t)
	source.release <- struct{}{}

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, source.fetchCount())
}

func TestCoalescerDropsBurstTriggers(t *testing.T) {
	source := newGatedSource()
	c := newGatedCoalescer(source)

	c.Start(context.Background())
	defer c.Stop()

	c.Notify("first")
	source.waitStarted(t)

	// A burst while a pass is in flight collapses into one pending trigger.
	for i := 0; i < 10; i++ {
		c.Notify("burst")
	}
	source.waitStarted(t)
	source.release <- struct{}{}
	source.release <- struct{}{}

	time.Sleep(50 * time.Millisecond)
	// Ten triggers never fan out into ten passes: the slot holds one.
	assert.GreaterOrEqual(t, source.fetchCount(), 2)
	assert.LessOrEqual(t, source.fetchCount(), 3)
}

func TestCoalescerSelectionChange(t *testing.T) {
	t.Run("changed selection triggers a pass", func(t *testing.T) {
		c := newGatedCoalescer(eventsource.NewStubEventSource())
		c.reconciler.SetSelectedCalendars([]string{"work"})

		c.NotifySelectionChanged([]string{"work", "home"})

		assert.Len(t, c.pending, 1)
		assert.ElementsMatch(t, []string{"work", "home"}, c.reconciler.SelectedCalendars())
	})

	t.Run("identical selection is a no-op", func(t *testing.T) {
		c := newGatedCoalescer(eventsource.NewStubEventSource())
		c.reconciler.SetSelectedCalendars([]string{"home", "work"})

		c.NotifySelectionChanged([]string{"work", "home"})

		assert.Len(t, c.pending, 0)
	})
}

func TestCoalescerStopWaitsForInFlightPass(t *testing.T) {
	source := newGatedSource()
	c := newGatedCoalescer(source)

	c.Start(context.Background())
	c.Notify("test")
	source.waitStarted(t)

	stopped := make(chan struct{})
	go func() {
		c.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	require.Equal(t, 1, source.fetchCount())
}
