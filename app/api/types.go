package api

import (
	"context"
	"time"

	"github.com/lysyi3m/dot-reports/app/database"
	"github.com/lysyi3m/dot-reports/app/feed"
	"github.com/lysyi3m/dot-reports/app/refresh"
	"github.com/lysyi3m/dot-reports/app/tasks"
)

const linkTimeout = 15 * time.Second

type ConfigCounter interface {
	GetConfigCount() int
}

type PageFetcher interface {
	Get(ctx context.Context, url string, timeout time.Duration) ([]byte, int, error)
}

type PreviewExtractor interface {
	Run(data []byte, pageURL string) (*feed.LinkPreview, error)
}

var (
	_ PageFetcher      = (*feed.Fetcher)(nil)
	_ PreviewExtractor = (*feed.ContentExtractor)(nil)
)

// Info is process metadata shown on / and /health.
type Info struct {
	Version  string
	WhatsNew bool // version differs from the one seen on the previous run
}

type Handler struct {
	configs     ConfigCounter
	sourceRepo  database.SourceRepository
	coordinator *refresh.Coordinator
	pages       PageFetcher
	extractor   PreviewExtractor
	scheduler   tasks.TaskSchedulerInterface
	info        Info
}

type SortRequest struct {
	Keys []string `json:"keys" binding:"required"`
}

type HideArchivedRequest struct {
	Hide *bool `json:"hide" binding:"required"`
}

type ReportsResponse struct {
	Reports      []feed.Record `json:"reports"`
	Total        int           `json:"total"`
	Visible      int           `json:"visible"`
	Summary      string        `json:"summary"`
	HideArchived bool          `json:"hide_archived"`
	SortKeys     []string      `json:"sort_keys"`
}

type SourceStatus struct {
	Name          string     `json:"name"`
	URL           string     `json:"url"`
	Kind          string     `json:"kind"`
	Enabled       bool       `json:"enabled"`
	LastFetchedAt *time.Time `json:"last_fetched_at,omitempty"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	RecordCount   int        `json:"record_count"`
	LastError     string     `json:"last_error,omitempty"`
}
