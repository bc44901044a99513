package alarm

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/wekker/wekker/internal/event_bus"
	"github.com/wekker/wekker/internal/utils"
	"github.com/wekker/wekker/pkg/timer"
)

var ErrAlarmNotFound = fmt.Errorf("alarm not found")

// Service carries the user-initiated overrides. These run outside the
// reconciler's serial loop: both sides write whole rows keyed by event id, so
// last write wins and no cross-operation transaction is needed.
type Service interface {
	List(ctx context.Context) ([]ScheduledAlarm, error)
	Snooze(ctx context.Context, eventID string, delay time.Duration, fallback *ScheduledAlarm) (ScheduledAlarm, error)
	Disable(ctx context.Context, eventID string) error
}

type ServiceImpl struct {
	repo      Repository
	blacklist BlacklistRepository
	timer     timer.AlarmTimer
	clock     utils.Clock
	bus       *event_bus.EventBus
}

func NewService(repo Repository, blacklist BlacklistRepository, alarmTimer timer.AlarmTimer, bus *event_bus.EventBus) *ServiceImpl {
	return &ServiceImpl{repo, blacklist, alarmTimer, utils.SystemClock{}, bus}
}

func (s *ServiceImpl) List(ctx context.Context) ([]ScheduledAlarm, error) {
	return s.repo.ListAll(ctx)
}

// Snooze delays the alarm for eventID so that it fires at now + delay. The
// offset is stored relative to the original start time, which lets display
// logic keep phrasing the result as "relative to the event".
//
// If the row was deleted by a concurrent reconciliation pass, a stand-in row
// is reconstructed from the caller-supplied fallback instead of failing: the
// ringing surface always still holds the event data it was ringing for.
func (s *ServiceImpl) Snooze(ctx context.Context, eventID string, delay time.Duration, fallback *ScheduledAlarm) (ScheduledAlarm, error) {
	row, err := s.repo.FindByEventID(ctx, eventID)
	if err != nil {
		return ScheduledAlarm{}, fmt.Errorf("failed to load alarm %s: %w", eventID, err)
	}
	if row == nil {
		if fallback == nil {
			return ScheduledAlarm{}, ErrAlarmNotFound
		}
		log.Warnf("alarm %s was removed concurrently, reconstructing from caller data", eventID)
		reconstructed := *fallback
		reconstructed.EventID = eventID
		reconstructed.SnoozeOffset = 0
		row = &reconstructed
	}

	now := s.clock.Now()
	offset := now.Sub(row.StartTime) + delay
	if offset <= 0 {
		// Snoozing before the original start with a short delay would yield a
		// non-positive offset, and the row would no longer read as snoozed.
		// Clamp so the row stays pinned and fires after its start time.
		offset = delay
	}
	row.SnoozeOffset = offset

	if err := s.repo.Upsert(ctx, *row); err != nil {
		return ScheduledAlarm{}, fmt.Errorf("failed to store snoozed alarm %s: %w", eventID, err)
	}
	if err := s.timer.Cancel(eventID); err != nil {
		return ScheduledAlarm{}, fmt.Errorf("failed to cancel timer for %s: %w", eventID, err)
	}
	if err := s.timer.Schedule(eventID, row.TriggerTime()); err != nil {
		return ScheduledAlarm{}, fmt.Errorf("failed to schedule snoozed timer for %s: %w", eventID, err)
	}

	log.Infof("snoozed alarm %s until %s", eventID, row.TriggerTime().Format(time.RFC3339))
	s.publishChanged()
	return *row, nil
}

// Disable permanently suppresses alarms for one event id. The blacklist entry
// keeps the next reconciliation pass from resurrecting the alarm while the
// upstream event still exists; it self-expires once the event disappears.
func (s *ServiceImpl) Disable(ctx context.Context, eventID string) error {
	if err := s.timer.Cancel(eventID); err != nil {
		return fmt.Errorf("failed to cancel timer for %s: %w", eventID, err)
	}
	if err := s.repo.Delete(ctx, eventID); err != nil {
		return fmt.Errorf("failed to delete alarm %s: %w", eventID, err)
	}
	if err := s.blacklist.Add(ctx, eventID); err != nil {
		return fmt.Errorf("failed to blacklist event %s: %w", eventID, err)
	}

	log.Infof("disabled alarm %s", eventID)
	s.publishChanged()
	return nil
}

func (s *ServiceImpl) publishChanged() {
	if err := s.bus.Publish(event_bus.NewEvent(event_bus.EventTypeAlarmsChanged, event_bus.AlarmsChanged{})); err != nil {
		log.Errorf("failed to publish alarms changed event: %v", err)
	}
}
