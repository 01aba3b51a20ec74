package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var _ SettingsRepository = (*SQLiteSettingsRepository)(nil)

type SQLiteSettingsRepository struct {
	db *DB
}

func NewSettingsRepository(db *DB) *SQLiteSettingsRepository {
	return &SQLiteSettingsRepository{db: db}
}

// GetSettings decodes the stored document over the defaults, so keys missing
// from an older blob keep their default values.
func (r *SQLiteSettingsRepository) GetSettings(ctx context.Context, key string) (*Settings, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	settings := DefaultSettings()
	if err := json.Unmarshal([]byte(value), settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if settings.ArchivedReports == nil {
		settings.ArchivedReports = make(map[string]ArchiveMarker)
	}

	return settings, nil
}

func (r *SQLiteSettingsRepository) SaveSettings(ctx context.Context, key string, settings *Settings) error {
	value, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(value), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	return nil
}
