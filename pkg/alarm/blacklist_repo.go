package alarm

import (
	"context"
	"database/sql"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// BlacklistRepository tracks event ids for which the user suppressed alarm
// creation. Entries are garbage collected by the reconciler once the
// corresponding upstream event disappears.
type BlacklistRepository interface {
	ListAll(ctx context.Context) ([]string, error)
	Contains(ctx context.Context, eventID string) (bool, error)
	Add(ctx context.Context, eventID string) error
	Remove(ctx context.Context, eventID string) error
}

type BlacklistRepositoryImpl struct {
	db *sql.DB
}

func NewBlacklistRepository(db *sql.DB) *BlacklistRepositoryImpl {
	return &BlacklistRepositoryImpl{db: db}
}

func (r *BlacklistRepositoryImpl) ListAll(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT event_id FROM disabled_event_ids`)
	if err != nil {
		err := fmt.Errorf("could not query disabled event ids: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0, 10)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			err := fmt.Errorf("could not scan row: %w", err)
			log.Error(err)
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *BlacklistRepositoryImpl) Contains(ctx context.Context, eventID string) (bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM disabled_event_ids WHERE event_id = ?`, eventID)
	var count int
	if err := row.Scan(&count); err != nil {
		err := fmt.Errorf("could not check disabled event id %s: %w", eventID, err)
		log.Error(err)
		return false, err
	}
	return count > 0, nil
}

func (r *BlacklistRepositoryImpl) Add(ctx context.Context, eventID string) error {
	query := `INSERT INTO disabled_event_ids (event_id) VALUES (?)
			  ON CONFLICT (event_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, eventID)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return err
	}
	return nil
}

func (r *BlacklistRepositoryImpl) Remove(ctx context.Context, eventID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM disabled_event_ids WHERE event_id = ?`, eventID)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return err
	}
	return nil
}
