package event_bus

import "time"

const (
	// EventTypeAlarmsChanged is published whenever the scheduled_alarms table
	// was mutated. Display consumers re-list on it.
	EventTypeAlarmsChanged EventType = "alarms.changed"
	// EventTypeAlarmFired is published when a scheduled timer reaches its
	// trigger time.
	EventTypeAlarmFired EventType = "alarm.fired"
)

// AlarmsChanged carries no payload; subscribers are expected to re-read the store.
type AlarmsChanged struct{}

// AlarmFired identifies the fired alarm; subscribers join with the store for
// display data.
type AlarmFired struct {
	EventID     string
	TriggerTime time.Time
}
