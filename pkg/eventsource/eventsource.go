package eventsource

import (
	"context"
	"fmt"
	"time"
)

// ErrUnavailable marks a failure to fetch the upstream snapshot. A pass that
// hits it is aborted with zero mutations and retried on the next trigger.
var ErrUnavailable = fmt.Errorf("event source unavailable")

// Event is a single upcoming entry reported by the upstream source. Events
// are ephemeral: each reconciliation pass fetches a fresh snapshot and
// nothing in here is ever persisted directly.
type Event struct {
	// ID is stable across fetches for the same upstream entry. For recurring
	// entries it identifies one concrete occurrence.
	ID         string
	Title      string
	StartTime  time.Time
	CalendarID string
}

// EventSource reports upcoming events restricted to the selected calendars,
// future-only relative to from, non-all-day, ordered by start time ascending.
type EventSource interface {
	UpcomingEvents(ctx context.Context, calendarIDs []string, from time.Time) ([]Event, error)
}

// CalendarItem describes one upstream calendar available for selection.
type CalendarItem struct {
	ID      string
	Summary string
}

// CalendarLister is implemented by sources that can enumerate their calendars.
type CalendarLister interface {
	ListCalendars(ctx context.Context) ([]CalendarItem, error)
}
