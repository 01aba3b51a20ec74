package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/dot-reports/app/feed"
)

type SyncSourceConfigTask struct {
	Task
	SourceConfig *feed.Config
	registry     SourceRegistry
}

func NewSyncSourceConfigTask(sourceConfig *feed.Config, registry SourceRegistry) *SyncSourceConfigTask {
	return &SyncSourceConfigTask{
		Task:         NewTask(TaskTypeSyncSourceConfig, sourceConfig.Name),
		SourceConfig: sourceConfig,
		registry:     registry,
	}
}

func (t *SyncSourceConfigTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	urlChanged, err := t.registry.UpsertSource(ctx,
		t.SourceConfig.Name,
		t.SourceConfig.URL,
		string(t.SourceConfig.Kind),
		t.SourceConfig.Settings.Enabled)
	if err != nil {
		return fmt.Errorf("failed to sync source config to database: %w", err)
	}

	if urlChanged {
		slog.Info("Source URL changed", "source", t.SourceName, "url", t.SourceConfig.URL)
	}

	slog.Info("Task completed",
		"type", "SyncSourceConfig",
		"source", t.SourceName,
		"duration", t.GetDuration())

	return nil
}
