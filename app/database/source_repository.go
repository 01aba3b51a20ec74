package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var _ SourceRepository = (*SQLiteSourceRepository)(nil)

// SQLiteSourceRepository keeps the registry of configured sources and the
// outcome of their most recent fetch.
type SQLiteSourceRepository struct {
	db *DB
}

func NewSourceRepository(db *DB) *SQLiteSourceRepository {
	return &SQLiteSourceRepository{db: db}
}

const sourceColumns = `name, url, kind, enabled, last_fetched_at, last_success_at, record_count, last_error, created_at, updated_at`

func (r *SQLiteSourceRepository) GetSource(ctx context.Context, name string) (*Source, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE name = ?`, name)

	source, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	return source, nil
}

func (r *SQLiteSourceRepository) GetSources(ctx context.Context) ([]Source, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sourceColumns+` FROM sources ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, *source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sources: %w", err)
	}

	return sources, nil
}

func (r *SQLiteSourceRepository) GetSourceCount(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sources`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sources: %w", err)
	}
	return count, nil
}

// UpsertSource registers a source or updates its configuration. It reports
// whether the URL of an existing source changed.
func (r *SQLiteSourceRepository) UpsertSource(ctx context.Context, name, url, kind string, enabled bool) (bool, error) {
	existing, err := r.GetSource(ctx, name)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return false, fmt.Errorf("failed to check existing source: %w", err)
	}

	now := time.Now().UTC()

	if existing == nil {
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO sources (name, url, kind, enabled, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, name, url, kind, enabled, now, now)
		if err != nil {
			return false, fmt.Errorf("failed to insert source: %w", err)
		}
		return false, nil
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE sources
		SET url = ?, kind = ?, enabled = ?, updated_at = ?
		WHERE name = ?
	`, url, kind, enabled, now, name)
	if err != nil {
		return false, fmt.Errorf("failed to update source: %w", err)
	}

	return existing.URL != url, nil
}

// RecordFetch stores the outcome of one fetch. A failed fetch keeps the last
// success time and record count.
func (r *SQLiteSourceRepository) RecordFetch(ctx context.Context, name string, recordCount int, fetchErr error) error {
	now := time.Now().UTC()

	var err error
	if fetchErr != nil {
		_, err = r.db.ExecContext(ctx, `
			UPDATE sources
			SET last_fetched_at = ?, last_error = ?, updated_at = ?
			WHERE name = ?
		`, now, fetchErr.Error(), now, name)
	} else {
		_, err = r.db.ExecContext(ctx, `
			UPDATE sources
			SET last_fetched_at = ?, last_success_at = ?, record_count = ?, last_error = '', updated_at = ?
			WHERE name = ?
		`, now, now, recordCount, now, name)
	}

	if err != nil {
		return fmt.Errorf("failed to record fetch: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*Source, error) {
	var source Source
	var lastFetchedAt, lastSuccessAt sql.NullTime

	err := row.Scan(
		&source.Name,
		&source.URL,
		&source.Kind,
		&source.Enabled,
		&lastFetchedAt,
		&lastSuccessAt,
		&source.RecordCount,
		&source.LastError,
		&source.CreatedAt,
		&source.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastFetchedAt.Valid {
		source.LastFetchedAt = &lastFetchedAt.Time
	}
	if lastSuccessAt.Valid {
		source.LastSuccessAt = &lastSuccessAt.Time
	}

	return &source, nil
}
