package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wekker/wekker/internal/event_bus"
)

func TestSystemTimer(t *testing.T) {
	t.Run("fires and publishes on the bus", func(t *testing.T) {
		bus := event_bus.NewEventBus()
		fired := make(chan event_bus.AlarmFired, 1)
		bus.Subscribe(event_bus.EventTypeAlarmFired, func(e event_bus.Event) error {
			fired <- e.Data.(event_bus.AlarmFired)
			return nil
		})

		st := NewSystemTimer(bus)
		require.NoError(t, st.Schedule("1", time.Now().Add(10*time.Millisecond)))

		select {
		case f := <-fired:
			assert.Equal(t, "1", f.EventID)
		case <-time.After(2 * time.Second):
			t.Fatal("timer did not fire")
		}
		assert.Equal(t, 0, st.Pending())
	})

	t.Run("cancel stops a pending timer", func(t *testing.T) {
		bus := event_bus.NewEventBus()
		fired := make(chan event_bus.AlarmFired, 1)
		bus.Subscribe(event_bus.EventTypeAlarmFired, func(e event_bus.Event) error {
			fired <- e.Data.(event_bus.AlarmFired)
			return nil
		})

		st := NewSystemTimer(bus)
		require.NoError(t, st.Schedule("1", time.Now().Add(50*time.Millisecond)))
		require.NoError(t, st.Cancel("1"))

		select {
		case <-fired:
			t.Fatal("cancelled timer fired")
		case <-time.After(200 * time.Millisecond):
		}
		assert.Equal(t, 0, st.Pending())
	})

	t.Run("cancel of an unknown id is a no-op", func(t *testing.T) {
		st := NewSystemTimer(event_bus.NewEventBus())
		assert.NoError(t, st.Cancel("missing"))
	})

	t.Run("rescheduling replaces the pending timer", func(t *testing.T) {
		st := NewSystemTimer(event_bus.NewEventBus())
		require.NoError(t, st.Schedule("1", time.Now().Add(time.Hour)))
		require.NoError(t, st.Schedule("1", time.Now().Add(2*time.Hour)))

		assert.Equal(t, 1, st.Pending())
	})
}
