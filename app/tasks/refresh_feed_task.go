package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

// RefreshFeedTask warms the post cache. The scheduler runs it once before
// the first auto-post tick.
type RefreshFeedTask struct {
	Task
	refresher Refresher
}

func NewRefreshFeedTask(refresher Refresher) *RefreshFeedTask {
	return &RefreshFeedTask{
		Task:      NewTask(TaskTypeRefreshFeed),
		refresher: refresher,
	}
}

func (t *RefreshFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	count, err := t.refresher.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh feed: %w", err)
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"id", t.ID,
		"posts", count,
		"duration", t.GetDuration())

	return nil
}
