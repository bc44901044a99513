package reconciler

import (
	"context"
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

type fixture struct {
	reconciler *Reconciler
	repo       *alarm.StubAlarmRepository
	blacklist  *alarm.StubBlacklistRepository
	source     *eventsource.StubEventSource
	timer      *timer.StubTimer
	clock      *utils.MockClock
}

func newFixture(now time.Time, events ...eventsource.Event) *fixture {
	f := &fixture{
		repo:      alarm.NewStubAlarmRepository(),
		blacklist: alarm.NewStubBlacklistRepository(),
		source:    eventsource.NewStubEventSource(events...),
		timer:     timer.NewStubTimer(),
		clock:     &utils.MockClock{FixedNow: now},
	}
	f.reconciler = &Reconciler{
		alarms:    f.repo,
		blacklist: f.blacklist,
		source:    f.source,
		timer:     f.timer,
		clock:     f.clock,
		bus:       event_bus.NewEventBus(),
		calendars: []string{"primary"},
	}
	return f
}

func (f *fixture) resetCalls() {
	f.repo.ResetCalls()
	f.blacklist.ResetCalls()
	f.timer.ResetCalls()
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)

	t.Run("new upstream event gets a row and a timer", func(t *testing.T) {
		start := now.Add(time.Hour)
		f := newFixture(now, eventsource.Event{ID: "1", Title: "Standup", StartTime: start, CalendarID: "primary"})

		require.NoError(t, f.reconciler.Reconcile(ctx))

		row, err := f.repo.FindByEventID(ctx, "1")
		require.NoError(t, err)
		require.NotNil(t, row)
		assert.Equal(t, "Standup", row.Title)
		assert.Equal(t, start, row.StartTime)
		assert.Equal(t, time.Duration(0), row.SnoozeOffset)
		assert.Equal(t, []string{"schedule:1"}, f.timer.CallsSnapshot())
		assert.Equal(t, start, f.timer.ScheduledAt["1"])
	})

	t.Run("row is persisted before the timer is scheduled", func(t *testing.T) {
		f := newFixture(now, eventsource.Event{ID: "1", StartTime: now.Add(time.Hour)})
		f.timer.FailScheduleFor = map[string]bool{"1": true}

		require.NoError(t, f.reconciler.Reconcile(ctx))

		// The row survives the schedule failure and is re-schedulable.
		row, err := f.repo.FindByEventID(ctx, "1")
		require.NoError(t, err)
		require.NotNil(t, row)

		f.timer.FailScheduleFor = nil
		f.resetCalls()
		require.NoError(t, f.reconciler.Reconcile(ctx))
		assert.Equal(t, []string{"schedule:1"}, f.timer.CallsSnapshot())

		// Once the retry succeeded the pass is idempotent again.
		f.resetCalls()
		require.NoError(t, f.reconciler.Reconcile(ctx))
		assert.Empty(t, f.timer.CallsSnapshot())
	})

	t.Run("a failed schedule call is not retried after the event disappears", func(t *testing.T) {
		f := newFixture(now, eventsource.Event{ID: "1", StartTime: now.Add(time.Hour)})
		f.timer.FailScheduleFor = map[string]bool{"1": true}

		require.NoError(t, f.reconciler.Reconcile(ctx))

		f.timer.FailScheduleFor = nil
		f.source.SetEvents()
		f.resetCalls()
		require.NoError(t, f.reconciler.Reconcile(ctx))
		assert.Equal(t, 0, f.repo.Len())
		assert.Equal(t, []string{"cancel:1"}, f.timer.CallsSnapshot())

		// A later pass must not arm a timer for the removed id.
		f.resetCalls()
		require.NoError(t, f.reconciler.Reconcile(ctx))
		assert.Empty(t, f.timer.CallsSnapshot())
	})

	t.Run("alarm gone upstream is deleted and cancelled", func(t *testing.T) {
		f := newFixture(now)
		f.repo.Put(alarm.ScheduledAlarm{EventID: "2", StartTime: now.Add(time.Hour)})

		require.NoError(t, f.reconciler.Reconcile(ctx))

		assert.Equal(t, 0, f.repo.Len())
		assert.Equal(t, []string{"cancel:2"}, f.timer.CallsSnapshot())
	})

	t.Run("past alarm is deleted even if still reported upstream", func(t *testing.T) {
		start := now.Add(-time.Hour)
		f := newFixture(now, eventsource.Event{ID: "2", StartTime: start})
		f.repo.Put(alarm.ScheduledAlarm{EventID: "2", StartTime: start})

		require.NoError(t, f.reconciler.Reconcile(ctx))

		assert.Equal(t, 0, f.repo.Len())
		assert.Equal(t, []string{"cancel:2"}, f.timer.CallsSnapshot())
	})

	t.Run("upstream start time change cancels before rescheduling", func(t *testing.T) {
		newStart := now.Add(2 * time.Hour)
		f := newFixture(now, eventsource.Event{ID: "3", Title: "Moved", StartTime: newStart, CalendarID: "primary"})
		f.repo.Put(alarm.ScheduledAlarm{EventID: "3", Title: "Moved", StartTime: now.Add(time.Hour), CalendarID: "primary"})

		require.NoError(t, f.reconciler.Reconcile(ctx))

		assert.Equal(t, []string{"cancel:3", "schedule:3"}, f.timer.CallsSnapshot())
		assert.LessOrEqual(t, f.timer.Live("3"), 1)
		row, err := f.repo.FindByEventID(ctx, "3")
		require.NoError(t, err)
		require.NotNil(t, row)
		assert.Equal(t, newStart, row.StartTime)
		assert.Equal(t, newStart, f.timer.ScheduledAt["3"])
	})

	t.Run("identical inputs produce zero mutating calls on a second pass", func(t *testing.T) {
		f := newFixture(now,
			eventsource.Event{ID: "1", StartTime: now.Add(time.Hour)},
			eventsource.Event{ID: "3", StartTime: now.Add(2 * time.Hour)},
		)
		f.repo.Put(alarm.ScheduledAlarm{EventID: "3", StartTime: now.Add(time.Hour)})
		f.blacklist.Put("6")

		require.NoError(t, f.reconciler.Reconcile(ctx))
		f.resetCalls()
		require.NoError(t, f.reconciler.Reconcile(ctx))

		assert.Empty(t, f.repo.Calls)
		assert.Empty(t, f.blacklist.Calls)
		assert.Empty(t, f.timer.CallsSnapshot())
	})
}

func TestReconcileSnoozePriority(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)

	t.Run("snoozed row is untouched by upstream start time drift", func(t *testing.T) {
		f := newFixture(now, eventsource.Event{ID: "4", StartTime: now.Add(3 * time.Hour)})
		snoozed := alarm.ScheduledAlarm{EventID: "4", StartTime: now.Add(time.Hour), SnoozeOffset: 30 * time.Minute}
		f.repo.Put(snoozed)

		require.NoError(t, f.reconciler.Reconcile(ctx))

		row, err := f.repo.FindByEventID(ctx, "4")
		require.NoError(t, err)
		require.NotNil(t, row)
		assert.Equal(t, snoozed, *row)
		assert.Empty(t, f.timer.CallsSnapshot())
	})

	t.Run("snoozed row survives the upstream event disappearing", func(t *testing.T) {
		f := newFixture(now)
		snoozed := alarm.ScheduledAlarm{EventID: "4", StartTime: now.Add(time.Hour), SnoozeOffset: 30 * time.Minute}
		f.repo.Put(snoozed)

		require.NoError(t, f.reconciler.Reconcile(ctx))

		assert.Equal(t, 1, f.repo.Len())
		assert.Empty(t, f.timer.CallsSnapshot())
	})

	t.Run("snoozed row is removed once its trigger time has passed", func(t *testing.T) {
		f := newFixture(now, eventsource.Event{ID: "4", StartTime: now.Add(3 * time.Hour)})
		f.repo.Put(alarm.ScheduledAlarm{EventID: "4", StartTime: now.Add(-time.Hour), SnoozeOffset: 30 * time.Minute})

		require.NoError(t, f.reconciler.Reconcile(ctx))

		assert.Equal(t, 0, f.repo.Len())
		assert.Equal(t, []string{"cancel:4"}, f.timer.CallsSnapshot())
	})
}

func TestReconcileBlacklist(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)

	t.Run("blacklisted id is never recreated however often it reappears", func(t *testing.T) {
		f := newFixture(now, eventsource.Event{ID: "5", StartTime: now.Add(time.Hour)})
		f.blacklist.Put("5")

		for i := 0; i < 3; i++ {
			require.NoError(t, f.reconciler.Reconcile(ctx))
		}

		assert.Equal(t, 0, f.repo.Len())
		assert.Empty(t, f.timer.CallsSnapshot())
	})

	t.Run("blacklist entry is collected once the event vanishes upstream", func(t *testing.T) {
		f := newFixture(now)
		f.blacklist.Put("5")

		require.NoError(t, f.reconciler.Reconcile(ctx))

		ids, err := f.blacklist.ListAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}

func TestReconcileFailureHandling(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)

	t.Run("source failure aborts the pass with zero mutations", func(t *testing.T) {
		f := newFixture(now)
		f.repo.Put(alarm.ScheduledAlarm{EventID: "9", StartTime: now.Add(-time.Hour)})
		f.source.Err = eventsource.ErrUnavailable

		err := f.reconciler.Reconcile(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, eventsource.ErrUnavailable)
		assert.Equal(t, 1, f.repo.Len())
		assert.Empty(t, f.repo.Calls)
		assert.Empty(t, f.timer.CallsSnapshot())
	})

	t.Run("a failing event id does not abort the rest of the pass", func(t *testing.T) {
		f := newFixture(now,
			eventsource.Event{ID: "a", StartTime: now.Add(time.Hour)},
			eventsource.Event{ID: "b", StartTime: now.Add(2 * time.Hour)},
		)
		f.repo.FailUpsertFor = map[string]bool{"a": true}

		require.NoError(t, f.reconciler.Reconcile(ctx))

		rowB, err := f.repo.FindByEventID(ctx, "b")
		require.NoError(t, err)
		assert.NotNil(t, rowB)
		assert.Equal(t, []string{"schedule:b"}, f.timer.CallsSnapshot())
	})

	t.Run("cancellation stops the pass before further mutations", func(t *testing.T) {
		f := newFixture(now, eventsource.Event{ID: "1", StartTime: now.Add(time.Hour)})
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := f.reconciler.Reconcile(cancelled)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, f.repo.Len())
		assert.Empty(t, f.timer.CallsSnapshot())
	})
}

func TestReconcileSelection(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)

	f := newFixture(now)
	f.reconciler.SetSelectedCalendars([]string{"work", "home"})

	require.NoError(t, f.reconciler.Reconcile(ctx))
	assert.Equal(t, []string{"work", "home"}, f.source.LastCalendarIDs)
}
