package alarm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

type Repository interface {
	ListAll(ctx context.Context) ([]ScheduledAlarm, error)
	FindByEventID(ctx context.Context, eventID string) (*ScheduledAlarm, error)
	Upsert(ctx context.Context, a ScheduledAlarm) error
	Delete(ctx context.Context, eventID string) error
}

type RepositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) ListAll(ctx context.Context) ([]ScheduledAlarm, error) {
	query := `SELECT event_id, title, start_time, calendar_id, snooze_offset_ms
			  FROM scheduled_alarms
			  ORDER BY start_time`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		err := fmt.Errorf("could not query scheduled alarms: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	alarms := make([]ScheduledAlarm, 0, 10)
	for rows.Next() {
		a, err := scanAlarm(rows.Scan)
		if err != nil {
			err := fmt.Errorf("could not scan row: %w", err)
			log.Error(err)
			return nil, err
		}
		alarms = append(alarms, a)
	}
	return alarms, rows.Err()
}

func (r *RepositoryImpl) FindByEventID(ctx context.Context, eventID string) (*ScheduledAlarm, error) {
	query := `SELECT event_id, title, start_time, calendar_id, snooze_offset_ms
			  FROM scheduled_alarms
			  WHERE event_id = ?`

	row := r.db.QueryRowContext(ctx, query, eventID)
	a, err := scanAlarm(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		err := fmt.Errorf("failed to find alarm for event %s: %w", eventID, err)
		log.Error(err)
		return nil, err
	}
	return &a, nil
}

// Upsert inserts or replaces the row keyed by event id, keeping the
// one-row-per-event invariant in the schema rather than in callers.
func (r *RepositoryImpl) Upsert(ctx context.Context, a ScheduledAlarm) error {
	query := `INSERT INTO scheduled_alarms (event_id, title, start_time, calendar_id, snooze_offset_ms)
			  VALUES (?, ?, ?, ?, ?)
			  ON CONFLICT (event_id) DO UPDATE SET
			      title = excluded.title,
			      start_time = excluded.start_time,
			      calendar_id = excluded.calendar_id,
			      snooze_offset_ms = excluded.snooze_offset_ms`

	stmt, err := r.db.PrepareContext(ctx, query)
	if err != nil {
		err := fmt.Errorf("could not prepare query: %v", err)
		log.Error(err)
		return err
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, a.EventID, a.Title, a.StartTime.UnixMilli(), a.CalendarID, a.SnoozeOffset.Milliseconds())
	if err != nil {
		err := fmt.Errorf("could not execute query: %v", err)
		log.Error(err)
		return err
	}
	return nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, eventID string) error {
	query := `DELETE FROM scheduled_alarms WHERE event_id = ?`
	_, err := r.db.ExecContext(ctx, query, eventID)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return err
	}
	return nil
}

func scanAlarm(scan func(dest ...any) error) (ScheduledAlarm, error) {
	var a ScheduledAlarm
	var startTimeMillis int64
	var snoozeOffsetMillis int64
	if err := scan(&a.EventID, &a.Title, &startTimeMillis, &a.CalendarID, &snoozeOffsetMillis); err != nil {
		return ScheduledAlarm{}, err
	}
	a.StartTime = time.UnixMilli(startTimeMillis)
	a.SnoozeOffset = time.Duration(snoozeOffsetMillis) * time.Millisecond
	return a, nil
}
