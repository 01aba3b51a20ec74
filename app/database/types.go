package database

import (
	"maps"
	"time"
)

type Source struct {
	Name          string
	URL           string
	Kind          string
	Enabled       bool
	LastFetchedAt *time.Time
	LastSuccessAt *time.Time // Last fetch that produced a payload
	RecordCount   int
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ArchiveMarker is stored for every archived report id.
type ArchiveMarker struct {
	UpdateNumber string     `json:"updateNumber"`
	ArchivedAt   *time.Time `json:"archivedAt,omitempty"`
}

// Settings is the archive overlay and its display preferences, persisted as a
// single JSON document.
type Settings struct {
	ArchivedReports     map[string]ArchiveMarker `json:"archivedReports"`
	HideArchivedReports bool                     `json:"hideArchivedReports"`
	LastKnownVersion    string                   `json:"lastKnownVersion"`
}

func DefaultSettings() *Settings {
	return &Settings{
		ArchivedReports:     make(map[string]ArchiveMarker),
		HideArchivedReports: true,
	}
}

func (s *Settings) Clone() *Settings {
	clone := *s
	clone.ArchivedReports = maps.Clone(s.ArchivedReports)
	if clone.ArchivedReports == nil {
		clone.ArchivedReports = make(map[string]ArchiveMarker)
	}
	return &clone
}
