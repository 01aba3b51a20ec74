package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/dot-reports/app/archive"
	"github.com/lysyi3m/dot-reports/app/database"
	"github.com/lysyi3m/dot-reports/app/refresh"
	"github.com/lysyi3m/dot-reports/app/tasks"
)

func NewHandler(configs ConfigCounter, sourceRepo database.SourceRepository,
	coordinator *refresh.Coordinator, pages PageFetcher, extractor PreviewExtractor,
	scheduler tasks.TaskSchedulerInterface, info Info) *Handler {
	return &Handler{
		configs:     configs,
		sourceRepo:  sourceRepo,
		coordinator: coordinator,
		pages:       pages,
		extractor:   extractor,
		scheduler:   scheduler,
		info:        info,
	}
}

func (h *Handler) ListReports(c *gin.Context) {
	hide := h.coordinator.HideArchived()

	if raw := c.Query("hide_archived"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid hide_archived parameter",
				"message": "Use true or false",
			})
			return
		}
		hide = parsed
	}

	reports, total := h.coordinator.View(hide)

	c.Header("X-Reports-Total", strconv.Itoa(total))
	c.JSON(http.StatusOK, ReportsResponse{
		Reports:      reports,
		Total:        total,
		Visible:      len(reports),
		Summary:      summary(len(reports), total),
		HideArchived: hide,
		SortKeys:     h.coordinator.SortKeys(),
	})
}

func (h *Handler) GetReport(c *gin.Context) {
	record, ok := h.coordinator.Record(c.Param("id"))
	if !ok {
		reportNotFound(c)
		return
	}

	c.JSON(http.StatusOK, record)
}

func (h *Handler) GetHealth(c *gin.Context) {
	visible, total := h.coordinator.View(h.coordinator.HideArchived())

	health := map[string]any{
		"status":                "ok",
		"timestamp":             time.Now().In(time.Local).Format(time.RFC3339),
		"version":               h.info.Version,
		"whats_new":             h.info.WhatsNew,
		"loaded_configurations": h.configs.GetConfigCount(),
		"reports": map[string]any{
			"total":   total,
			"visible": len(visible),
			"summary": summary(len(visible), total),
		},
	}

	if sourceCount, err := h.sourceRepo.GetSourceCount(c.Request.Context()); err == nil {
		health["sources"] = sourceCount
	}

	if cycle := h.coordinator.LastCycle(); cycle != nil {
		health["last_refresh"] = map[string]any{
			"seq":      cycle.Seq,
			"at":       cycle.At.In(time.Local).Format(time.RFC3339),
			"sources":  cycle.Sources,
			"failed":   cycle.Failed,
			"records":  cycle.Records,
			"duration": cycle.Duration.String(),
		}
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	sources, err := h.sourceRepo.GetSources(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "get_sources", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Database error",
			"message": "Failed to load source status",
		})
		return
	}

	statuses := make([]SourceStatus, 0, len(sources))
	for _, source := range sources {
		statuses = append(statuses, SourceStatus{
			Name:          source.Name,
			URL:           source.URL,
			Kind:          source.Kind,
			Enabled:       source.Enabled,
			LastFetchedAt: source.LastFetchedAt,
			LastSuccessAt: source.LastSuccessAt,
			RecordCount:   source.RecordCount,
			LastError:     source.LastError,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": statuses,
		"total":   len(statuses),
	})
}

func (h *Handler) ArchiveReport(c *gin.Context) {
	h.setArchived(c, true)
}

func (h *Handler) UnarchiveReport(c *gin.Context) {
	h.setArchived(c, false)
}

func (h *Handler) setArchived(c *gin.Context, archived bool) {
	id := c.Param("id")

	record, err := h.coordinator.SetArchived(c.Request.Context(), id, archived)
	if errors.Is(err, refresh.ErrRecordNotFound) {
		reportNotFound(c)
		return
	}

	persisted, ok := persistenceResult(c, err)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"persisted": persisted,
		"report":    record,
	})
}

func (h *Handler) ArchiveAll(c *gin.Context) {
	h.archiveAll(c, true)
}

func (h *Handler) UnarchiveAll(c *gin.Context) {
	h.archiveAll(c, false)
}

func (h *Handler) archiveAll(c *gin.Context, archived bool) {
	count, err := h.coordinator.ArchiveAll(c.Request.Context(), archived)

	persisted, ok := persistenceResult(c, err)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"persisted": persisted,
		"archived":  archived,
		"count":     count,
	})
}

func (h *Handler) GetReportLink(c *gin.Context) {
	record, ok := h.coordinator.Record(c.Param("id"))
	if !ok {
		reportNotFound(c)
		return
	}

	if record.URL == "" {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Report has no reference link",
			"message": fmt.Sprintf("Report %s does not carry a URL", record.ID),
		})
		return
	}

	data, status, err := h.pages.Get(c.Request.Context(), record.URL, linkTimeout)
	if err != nil {
		slog.Warn("Failed to fetch reference link", "id", record.ID, "url", record.URL, "status", status, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Failed to fetch reference link",
			"message": err.Error(),
		})
		return
	}

	preview, err := h.extractor.Run(data, record.URL)
	if err != nil {
		slog.Warn("Failed to extract reference link", "id", record.ID, "url", record.URL, "error", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "Failed to extract reference link",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, preview)
}

func (h *Handler) SetSortKeys(c *gin.Context) {
	var req SortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, err)
		return
	}

	if err := h.coordinator.SetSortKeys(req.Keys); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid sort keys",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sort_keys": h.coordinator.SortKeys()})
}

func (h *Handler) ClickColumn(c *gin.Context) {
	column := c.Param("column")

	if !h.coordinator.OnColumnClicked(column) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Unknown column",
			"message": fmt.Sprintf("Column %q is not sortable", column),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sort_keys": h.coordinator.SortKeys()})
}

func (h *Handler) SetHideArchived(c *gin.Context) {
	var req HideArchivedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, err)
		return
	}

	err := h.coordinator.SetHideArchived(c.Request.Context(), *req.Hide)

	persisted, ok := persistenceResult(c, err)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"persisted":     persisted,
		"hide_archived": *req.Hide,
	})
}

func (h *Handler) TriggerRefresh(c *gin.Context) {
	id, err := h.scheduler.EnqueueRefresh()
	if err != nil {
		slog.Error("Error enqueueing refresh task", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue refresh task",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"task": gin.H{
			"id":   id,
			"type": tasks.TaskTypeRefresh,
		},
	})
}

// persistenceResult turns an archive error into the response flag. Anything
// other than a PersistenceError is written as a 500 and reported as not ok.
func persistenceResult(c *gin.Context, err error) (bool, bool) {
	if err == nil {
		return true, true
	}

	var persistenceErr *archive.PersistenceError
	if errors.As(err, &persistenceErr) {
		return false, true
	}

	slog.Error("Archive update failed", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "Archive update failed",
		"message": err.Error(),
	})
	return false, false
}

func summary(visible, total int) string {
	return fmt.Sprintf("%d of %d reports", visible, total)
}

func reportNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error":   "Report not found",
		"message": fmt.Sprintf("No report with id %q in the current working set", c.Param("id")),
	})
}

func invalidBody(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"message": err.Error(),
	})
}
