package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/postcard/app/postcard"
)

type AutoPostTask struct {
	Task
	Result postcard.Result
	poster AutoPoster
}

func NewAutoPostTask(poster AutoPoster) *AutoPostTask {
	return &AutoPostTask{
		Task:   NewTask(TaskTypeAutoPost),
		poster: poster,
	}
}

func (t *AutoPostTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.poster.Run(ctx)
	t.Result = result
	if err != nil {
		return fmt.Errorf("failed to run auto post for %s: %w", result.Date, err)
	}

	level := slog.LevelDebug
	if result.Outcome == postcard.OutcomePublished {
		level = slog.LevelInfo
	}

	slog.Log(ctx, level, "Task completed",
		"type", string(t.Type),
		"id", t.ID,
		"date", result.Date.String(),
		"outcome", string(result.Outcome),
		"sent", result.Sent,
		"failed", result.Failed,
		"duration", t.GetDuration())

	return nil
}
