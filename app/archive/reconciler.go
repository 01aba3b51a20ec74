package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/dot-reports/app/database"
	"github.com/lysyi3m/dot-reports/app/feed"
)

// PersistenceError means the archive state could not be read or written.
// In-memory state is still updated; only durability is lost.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s archive state: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Reconciler owns the archive overlay. Every mutation rewrites the whole
// settings document.
type Reconciler struct {
	mu       sync.Mutex
	store    database.SettingsRepository
	key      string
	settings *database.Settings
	now      func() time.Time
}

func NewReconciler(store database.SettingsRepository, key string) *Reconciler {
	return &Reconciler{
		store:    store,
		key:      key,
		settings: database.DefaultSettings(),
		now:      time.Now,
	}
}

// Load reads the stored settings once. Missing settings fall back to the
// defaults silently, unreadable ones with a PersistenceError.
func (r *Reconciler) Load(ctx context.Context) error {
	settings, err := r.store.GetSettings(ctx, r.key)

	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case errors.Is(err, database.ErrNotFound):
		r.settings = database.DefaultSettings()
		return nil
	case err != nil:
		r.settings = database.DefaultSettings()
		return &PersistenceError{Op: "load", Err: err}
	}

	r.settings = settings
	slog.Debug("Archive state loaded", "archived", len(settings.ArchivedReports), "hide_archived", settings.HideArchivedReports)
	return nil
}

// Reconcile stamps each record's archived flag from the overlay. It never
// adds or removes overlay entries.
func (r *Reconciler) Reconcile(records []feed.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range records {
		_, archived := r.settings.ArchivedReports[records[i].ID]
		records[i].Archived = archived
	}
}

func (r *Reconciler) IsArchived(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, archived := r.settings.ArchivedReports[id]
	return archived
}

// SetArchived updates one record and persists. Archiving an id that already
// has a marker keeps the original marker.
func (r *Reconciler) SetArchived(ctx context.Context, record *feed.Record, archived bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.applyLocked(record, archived)
	return r.persistLocked(ctx)
}

// ArchiveAll applies the same state to every record and persists once.
func (r *Reconciler) ArchiveAll(ctx context.Context, records []feed.Record, archived bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range records {
		r.applyLocked(&records[i], archived)
	}
	return r.persistLocked(ctx)
}

func (r *Reconciler) SetHideArchived(ctx context.Context, hide bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.settings.HideArchivedReports = hide
	return r.persistLocked(ctx)
}

func (r *Reconciler) HideArchived() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.settings.HideArchivedReports
}

// MarkVersion records the running version and reports whether it differs
// from the one seen last time.
func (r *Reconciler) MarkVersion(ctx context.Context, version string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.settings.LastKnownVersion == version {
		return false, nil
	}

	r.settings.LastKnownVersion = version
	return true, r.persistLocked(ctx)
}

// Settings returns a copy of the current state.
func (r *Reconciler) Settings() *database.Settings {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.settings.Clone()
}

// Flush writes the current state, used at shutdown.
func (r *Reconciler) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.persistLocked(ctx)
}

func (r *Reconciler) applyLocked(record *feed.Record, archived bool) {
	record.Archived = archived

	if !archived {
		delete(r.settings.ArchivedReports, record.ID)
		return
	}

	if _, exists := r.settings.ArchivedReports[record.ID]; exists {
		return
	}

	archivedAt := r.now().UTC()
	r.settings.ArchivedReports[record.ID] = database.ArchiveMarker{
		UpdateNumber: record.ID,
		ArchivedAt:   &archivedAt,
	}
}

func (r *Reconciler) persistLocked(ctx context.Context) error {
	if err := r.store.SaveSettings(ctx, r.key, r.settings); err != nil {
		slog.Warn("Archive state not persisted", "error", err)
		return &PersistenceError{Op: "save", Err: err}
	}
	return nil
}
