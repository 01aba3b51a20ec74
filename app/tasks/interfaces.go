package tasks

import (
	"context"

	"github.com/lysyi3m/dot-reports/app/feed"
	"github.com/lysyi3m/dot-reports/app/refresh"
)

// TaskSchedulerInterface is what the API and main need from the scheduler:
// lifecycle control plus on-demand refreshes.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	EnqueueRefresh() (string, error)
}

type Refresher interface {
	Refresh(ctx context.Context) (*refresh.CycleResult, error)
}

type ConfigProvider interface {
	GetConfigs() map[string]*feed.Config
}

// SourceRegistry mirrors source configuration into the database.
type SourceRegistry interface {
	UpsertSource(ctx context.Context, name, url, kind string, enabled bool) (bool, error)
}
