package database

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

type SettingsRepository interface {
	// GetSettings returns ErrNotFound when nothing is stored under key.
	GetSettings(ctx context.Context, key string) (*Settings, error)
	SaveSettings(ctx context.Context, key string, settings *Settings) error
}

type SourceRepository interface {
	GetSource(ctx context.Context, name string) (*Source, error)
	GetSources(ctx context.Context) ([]Source, error)
	GetSourceCount(ctx context.Context) (int, error)

	UpsertSource(ctx context.Context, name, url, kind string, enabled bool) (bool, error)
	RecordFetch(ctx context.Context, name string, recordCount int, fetchErr error) error
}
