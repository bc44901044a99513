package reconciler

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/wekker/wekker/internal/event_bus"
	"github.com/wekker/wekker/internal/utils"
	"github.com/wekker/wekker/pkg/alarm"
	"github.com/wekker/wekker/pkg/eventsource"
	"github.com/wekker/wekker/pkg/timer"
)

// Reconciler converges the alarm store with the event source in discrete
// passes. A pass fetches a fresh upstream snapshot and the full store state,
// diffs them, and applies the minimal schedule/cancel/update set.
//
// Failure handling follows three rules: a source fetch failure aborts the
// pass before any mutation; a store or timer failure for one event id is
// logged and skipped without aborting the rest (every per-id operation is
// idempotent on retry, so the next pass heals it); context cancellation is
// observed between per-id operations and surfaces as ctx.Err(), not as a
// failure.
type Reconciler struct {
	alarms    alarm.Repository
	blacklist alarm.BlacklistRepository
	source    eventsource.EventSource
	timer     timer.AlarmTimer
	clock     utils.Clock
	bus       *event_bus.EventBus

	mu        sync.RWMutex
	calendars []string

	// needsSchedule holds event ids whose row is persisted but whose
	// Schedule call failed; the next pass re-issues it. Only touched inside
	// Reconcile, which the coalescer runs serially.
	needsSchedule map[string]bool
}

func NewReconciler(
	alarms alarm.Repository,
	blacklist alarm.BlacklistRepository,
	source eventsource.EventSource,
	alarmTimer timer.AlarmTimer,
	bus *event_bus.EventBus,
	calendars []string,
) *Reconciler {
	return &Reconciler{
		alarms:    alarms,
		blacklist: blacklist,
		source:    source,
		timer:     alarmTimer,
		clock:     utils.SystemClock{},
		bus:       bus,
		calendars: calendars,
	}
}

// SelectedCalendars returns the current selected-calendar-id set.
func (r *Reconciler) SelectedCalendars() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.calendars))
	copy(out, r.calendars)
	return out
}

// SetSelectedCalendars replaces the selected-calendar-id set. It does not
// trigger a pass by itself; the coalescer does that.
func (r *Reconciler) SetSelectedCalendars(ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calendars = make([]string, len(ids))
	copy(r.calendars, ids)
}

// Reconcile runs one convergence pass.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	now := r.clock.Now()
	if r.needsSchedule == nil {
		r.needsSchedule = make(map[string]bool)
	}

	events, err := r.source.UpcomingEvents(ctx, r.SelectedCalendars(), now)
	if err != nil {
		return fmt.Errorf("fetching upstream events: %w", err)
	}
	tracked, err := r.alarms.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("listing tracked alarms: %w", err)
	}
	disabled, err := r.blacklist.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("listing disabled event ids: %w", err)
	}

	upstream := make(map[string]eventsource.Event, len(events))
	for _, ev := range events {
		upstream[ev.ID] = ev
	}
	trackedIDs := make(map[string]bool, len(tracked))
	for _, a := range tracked {
		trackedIDs[a.EventID] = true
	}
	disabledIDs := make(map[string]bool, len(disabled))
	for _, id := range disabled {
		disabledIDs[id] = true
	}

	mutated := false

	// New upstream events that are neither tracked nor blacklisted get a row
	// and a timer. The row is persisted first: a crash between the two steps
	// leaves a re-schedulable row, never an orphaned timer.
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if trackedIDs[ev.ID] || disabledIDs[ev.ID] {
			continue
		}
		a := alarm.ScheduledAlarm{
			EventID:    ev.ID,
			Title:      ev.Title,
			StartTime:  ev.StartTime,
			CalendarID: ev.CalendarID,
		}
		if err := r.alarms.Upsert(ctx, a); err != nil {
			log.Errorf("failed to store alarm for event %s: %v", ev.ID, err)
			continue
		}
		mutated = true
		if err := r.timer.Schedule(ev.ID, a.TriggerTime()); err != nil {
			// The row is persisted, so the id is flagged for a retried
			// Schedule call on the next pass.
			log.Errorf("failed to schedule timer for event %s: %v", ev.ID, err)
			r.needsSchedule[ev.ID] = true
			continue
		}
		delete(r.needsSchedule, ev.ID)
	}

	// Tracked rows: drop what is gone or past, follow upstream start-time
	// changes, and leave snoozed rows alone until their trigger time passes.
	for _, a := range tracked {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev, present := upstream[a.EventID]

		if a.Snoozed() {
			// Snooze pins the row against any upstream drift, including the
			// event having been edited or removed.
			if !a.TriggerTime().After(now) {
				if r.removeAlarm(ctx, a.EventID) {
					mutated = true
				}
			} else if r.retrySchedule(a) {
				mutated = true
			}
			continue
		}

		if !present || !a.StartTime.After(now) {
			if r.removeAlarm(ctx, a.EventID) {
				mutated = true
			}
			continue
		}

		if !ev.StartTime.Equal(a.StartTime) && ev.StartTime.After(now) {
			// Cancel must be issued before the replacement schedule call so
			// the id never holds two live timers.
			if err := r.timer.Cancel(a.EventID); err != nil {
				log.Errorf("failed to cancel outdated timer for event %s: %v", a.EventID, err)
				continue
			}
			updated := a
			updated.Title = ev.Title
			updated.StartTime = ev.StartTime
			updated.CalendarID = ev.CalendarID
			if err := r.alarms.Upsert(ctx, updated); err != nil {
				log.Errorf("failed to update alarm for event %s: %v", a.EventID, err)
				continue
			}
			if err := r.timer.Schedule(updated.EventID, updated.TriggerTime()); err != nil {
				log.Errorf("failed to reschedule timer for event %s: %v", a.EventID, err)
				r.needsSchedule[a.EventID] = true
				continue
			}
			delete(r.needsSchedule, a.EventID)
			mutated = true
		} else if r.retrySchedule(a) {
			mutated = true
		}
	}

	// Blacklist entries for ids that vanished upstream can never suppress
	// anything again; dropping them bounds blacklist growth.
	for _, id := range disabled {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, present := upstream[id]; present {
			continue
		}
		if err := r.blacklist.Remove(ctx, id); err != nil {
			log.Errorf("failed to remove stale blacklist entry %s: %v", id, err)
			continue
		}
		mutated = true
	}

	if mutated {
		if err := r.bus.Publish(event_bus.NewEvent(event_bus.EventTypeAlarmsChanged, event_bus.AlarmsChanged{})); err != nil {
			log.Errorf("failed to publish alarms changed event: %v", err)
		}
	}
	return nil
}

// removeAlarm cancels the timer and deletes the row. Cancel goes first:
// cancel of a missing timer is a no-op, so a failed delete is safe to retry
// on the next pass.
func (r *Reconciler) removeAlarm(ctx context.Context, eventID string) bool {
	if err := r.timer.Cancel(eventID); err != nil {
		log.Errorf("failed to cancel timer for event %s: %v", eventID, err)
		return false
	}
	if err := r.alarms.Delete(ctx, eventID); err != nil {
		log.Errorf("failed to delete alarm row for event %s: %v", eventID, err)
		return false
	}
	delete(r.needsSchedule, eventID)
	return true
}

// retrySchedule re-issues a previously failed Schedule call for a row that is
// otherwise up to date. Reports whether a timer was armed.
func (r *Reconciler) retrySchedule(a alarm.ScheduledAlarm) bool {
	if !r.needsSchedule[a.EventID] {
		return false
	}
	if err := r.timer.Schedule(a.EventID, a.TriggerTime()); err != nil {
		log.Errorf("failed to schedule timer for event %s: %v", a.EventID, err)
		return false
	}
	delete(r.needsSchedule, a.EventID)
	return true
}
