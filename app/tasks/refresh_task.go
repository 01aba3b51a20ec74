package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

type RefreshTask struct {
	Task
	refresher Refresher
}

func NewRefreshTask(refresher Refresher) *RefreshTask {
	return &RefreshTask{
		Task:      NewTask(TaskTypeRefresh, ""),
		refresher: refresher,
	}
}

func (t *RefreshTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.refresher.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh reports: %w", err)
	}

	if result.Stale {
		slog.Debug("Refresh superseded by a newer cycle", "id", t.ID, "seq", result.Seq)
	}

	slog.Info("Task completed",
		"type", "Refresh",
		"seq", result.Seq,
		"sources", result.Sources,
		"failed", result.Failed,
		"records", result.Records,
		"duration", t.GetDuration())

	return nil
}
