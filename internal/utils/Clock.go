package utils

import "time"

// Clock supplies the current time to the reconciler and the snooze service.
// Every past/future decision on alarm rows goes through it, so tests can pin
// "now" instead of sleeping.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by the wall clock.
type SystemClock struct{}

func (s SystemClock) Now() time.Time {
	return time.Now()
}

// MockClock is a Clock frozen at FixedNow, for tests.
type MockClock struct {
	FixedNow time.Time
}

func (m *MockClock) Now() time.Time {
	return m.FixedNow
}

func (m *MockClock) SetNow(now time.Time) {
	m.FixedNow = now
}
