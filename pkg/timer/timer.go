package timer

import "time"

// AlarmTimer is the facility that fires wake-capable timers for event ids.
//
// Schedule for an id that already has a pending timer replaces it, so there
// is never more than one live timer per id. Cancel for an unknown id is a
// no-op.
type AlarmTimer interface {
	Schedule(eventID string, at time.Time) error
	Cancel(eventID string) error
}
