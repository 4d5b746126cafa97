package database

import (
	"context"
	"fmt"
	"time"
)

var _ DestinationRepository = (*DestinationRepo)(nil)

type DestinationRepo struct {
	db *DB
}

func NewDestinationRepository(db *DB) *DestinationRepo {
	return &DestinationRepo{db: db}
}

func (r *DestinationRepo) SetDestination(ctx context.Context, guildID, channelID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO destinations (guild_id, channel_id, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (guild_id) DO UPDATE SET
			channel_id = excluded.channel_id,
			updated_at = excluded.updated_at
	`, guildID, channelID, time.Now().UTC().Unix())

	if err != nil {
		return fmt.Errorf("failed to set destination: %w", err)
	}

	return nil
}

func (r *DestinationRepo) ClearDestination(ctx context.Context, guildID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM destinations WHERE guild_id = ?`, guildID)
	if err != nil {
		return fmt.Errorf("failed to clear destination: %w", err)
	}
	return nil
}

func (r *DestinationRepo) ListDestinations(ctx context.Context) ([]Destination, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT guild_id, channel_id, updated_at
		FROM destinations
		ORDER BY guild_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list destinations: %w", err)
	}
	defer rows.Close()

	var destinations []Destination
	for rows.Next() {
		var (
			dest      Destination
			updatedAt int64
		)
		if err := rows.Scan(&dest.GuildID, &dest.ChannelID, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan destination row: %w", err)
		}
		dest.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		destinations = append(destinations, dest)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating destination rows: %w", err)
	}

	return destinations, nil
}
