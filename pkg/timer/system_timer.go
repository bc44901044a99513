package timer

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/wekker/wekker/internal/event_bus"
)

// SystemTimer fires alarms with in-process time.Timer instances and publishes
// an AlarmFired event on the bus when a timer elapses. Precision is whatever
// the host runtime provides; firing while the process is asleep is a host
// property outside this package.
type SystemTimer struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	bus    *event_bus.EventBus
}

func NewSystemTimer(bus *event_bus.EventBus) *SystemTimer {
	return &SystemTimer{
		timers: make(map[string]*time.Timer),
		bus:    bus,
	}
}

func (t *SystemTimer) Schedule(eventID string, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	// A pending timer for the same id is replaced, never doubled.
	if existing, ok := t.timers[eventID]; ok {
		existing.Stop()
	}

	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}
	log.Debugf("scheduling timer for event %s at %s", eventID, at.Format(time.RFC3339))

	t.timers[eventID] = time.AfterFunc(delay, func() {
		t.fire(eventID, at)
	})
	return nil
}

func (t *SystemTimer) Cancel(eventID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	existing, ok := t.timers[eventID]
	if !ok {
		return nil
	}
	existing.Stop()
	delete(t.timers, eventID)
	return nil
}

func (t *SystemTimer) fire(eventID string, at time.Time) {
	t.mu.Lock()
	delete(t.timers, eventID)
	t.mu.Unlock()

	log.Infof("alarm fired for event %s", eventID)
	err := t.bus.Publish(event_bus.NewEvent(event_bus.EventTypeAlarmFired, event_bus.AlarmFired{
		EventID:     eventID,
		TriggerTime: at,
	}))
	if err != nil {
		log.Errorf("failed to publish alarm fired event for %s: %v", eventID, err)
	}
}

// Pending returns the number of live timers.
func (t *SystemTimer) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}
