package alarm

import "time"

// ScheduledAlarm is a persisted intent to fire a timer for one upstream event.
// There is at most one row per event id.
type ScheduledAlarm struct {
	EventID    string
	Title      string
	StartTime  time.Time
	CalendarID string
	// SnoozeOffset is the user-requested delay relative to StartTime.
	// A non-zero offset pins the row against upstream changes until the
	// trigger time has passed.
	SnoozeOffset time.Duration
}

// TriggerTime is the instant the alarm should fire.
func (a ScheduledAlarm) TriggerTime() time.Time {
	return a.StartTime.Add(a.SnoozeOffset)
}

// Snoozed reports whether the user delayed this alarm.
func (a ScheduledAlarm) Snoozed() bool {
	return a.SnoozeOffset > 0
}
