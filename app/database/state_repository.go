package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lysyi3m/postcard/app/feed"
)

var _ StateRepository = (*StateRepo)(nil)

type StateRepo struct {
	db *DB
}

func NewStateRepository(db *DB) *StateRepo {
	return &StateRepo{db: db}
}

func (r *StateRepo) GetAutoPostState(ctx context.Context) (*AutoPostState, error) {
	var (
		lastPublished sql.NullString
		hour          int
		updatedAt     int64
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT last_published_date, publish_hour, updated_at
		FROM autopost_state
		WHERE id = 1
	`).Scan(&lastPublished, &hour, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get autopost state: %w", err)
	}

	state := &AutoPostState{
		PublishHour: hour,
		UpdatedAt:   time.Unix(updatedAt, 0).UTC(),
	}

	if lastPublished.Valid && lastPublished.String != "" {
		date, err := feed.ParseDate(lastPublished.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse last published date: %w", err)
		}
		state.LastPublished = &date
	}

	return state, nil
}

func (r *StateRepo) SetLastPublished(ctx context.Context, date feed.Date) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE autopost_state
		SET last_published_date = ?, updated_at = ?
		WHERE id = 1
	`, date.String(), time.Now().UTC().Unix())

	if err != nil {
		return fmt.Errorf("failed to set last published date: %w", err)
	}

	return nil
}

func (r *StateRepo) SetPublishHour(ctx context.Context, hour int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE autopost_state
		SET publish_hour = ?, updated_at = ?
		WHERE id = 1
	`, hour, time.Now().UTC().Unix())

	if err != nil {
		return fmt.Errorf("failed to set publish hour: %w", err)
	}

	return nil
}
