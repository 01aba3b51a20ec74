package refresh

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lysyi3m/dot-reports/app/archive"
	"github.com/lysyi3m/dot-reports/app/feed"
	"github.com/lysyi3m/dot-reports/app/sorting"
)

var (
	ErrRecordNotFound   = errors.New("record not found")
	ErrAllSourcesFailed = errors.New("all sources failed")
)

type SourceProvider interface {
	GetEnabledConfigs() []*feed.Config
}

type Fetcher interface {
	Run(ctx context.Context, source *feed.Config) ([]byte, error)
}

type Normalizer interface {
	Run(payload []byte, source *feed.Config) ([]feed.Record, error)
}

type Filter interface {
	Run(records []feed.Record, config *feed.Config) []feed.Record
}

// SourceRecorder stores per-source fetch outcomes.
type SourceRecorder interface {
	RecordFetch(ctx context.Context, name string, recordCount int, fetchErr error) error
}

// ErrorReporter receives every source failure of a cycle.
type ErrorReporter func(source string, level slog.Level, err error)

// Update describes the working set after a change.
type Update struct {
	Reason   string    `json:"reason"`
	Seq      uint64    `json:"seq"`
	Total    int       `json:"total"`
	Visible  int       `json:"visible"`
	Archived int       `json:"archived"`
	SortKeys []string  `json:"sort_keys"`
	At       time.Time `json:"at"`
}

type Listener func(Update)

type CycleResult struct {
	Seq      uint64        `json:"seq"`
	Sources  int           `json:"sources"`
	Failed   int           `json:"failed"`
	Records  int           `json:"records"`
	Stale    bool          `json:"stale"`
	Duration time.Duration `json:"duration"`
	At       time.Time     `json:"at"`
}

type Option func(*Coordinator)

func WithErrorReporter(reporter ErrorReporter) Option {
	return func(c *Coordinator) {
		c.reporter = reporter
	}
}

func WithListener(listener Listener) Option {
	return func(c *Coordinator) {
		c.listeners = append(c.listeners, listener)
	}
}

func WithSourceRecorder(recorder SourceRecorder) Option {
	return func(c *Coordinator) {
		c.recorder = recorder
	}
}

func WithFilter(filter Filter) Option {
	return func(c *Coordinator) {
		c.filter = filter
	}
}

// Coordinator owns the working set. Cycles are never cancelled; a cycle that
// completes after a newer one has published is dropped as stale.
type Coordinator struct {
	sources    SourceProvider
	fetcher    Fetcher
	normalizer Normalizer
	filter     Filter
	archive    *archive.Reconciler
	recorder   SourceRecorder
	reporter   ErrorReporter
	listeners  []Listener

	seq atomic.Uint64

	mu           sync.Mutex
	records      []feed.Record
	spec         sorting.Spec
	publishedSeq uint64
	lastCycle    *CycleResult
}

func NewCoordinator(sources SourceProvider, fetcher Fetcher, normalizer Normalizer, reconciler *archive.Reconciler, opts ...Option) *Coordinator {
	c := &Coordinator{
		sources:    sources,
		fetcher:    fetcher,
		normalizer: normalizer,
		filter:     feed.NewFilterer(),
		archive:    reconciler,
		spec:       sorting.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type fetchOutcome struct {
	index   int
	payload []byte
	err     error
}

// Refresh runs one cycle over all enabled sources. It returns
// ErrAllSourcesFailed when no source could be read; the empty result is
// still published.
func (c *Coordinator) Refresh(ctx context.Context) (*CycleResult, error) {
	seq := c.seq.Add(1)
	start := time.Now()
	sources := c.sources.GetEnabledConfigs()

	slog.Debug("Refresh cycle started", "seq", seq, "sources", len(sources))

	outcomes := make(chan fetchOutcome, len(sources))
	for i, source := range sources {
		go func() {
			payload, err := c.fetcher.Run(ctx, source)
			outcomes <- fetchOutcome{index: i, payload: payload, err: err}
		}()
	}

	slots := make([]fetchOutcome, len(sources))
	for completed := 0; completed < len(sources); completed++ {
		outcome := <-outcomes
		slots[outcome.index] = outcome
	}

	records, fetched, failed := c.assemble(ctx, sources, slots)

	result := &CycleResult{
		Seq:      seq,
		Sources:  len(sources),
		Failed:   failed,
		Records:  len(records),
		Duration: time.Since(start),
		At:       time.Now(),
	}

	c.mu.Lock()
	if published := c.publishedSeq; published > seq {
		c.mu.Unlock()
		result.Stale = true
		slog.Info("Refresh cycle discarded", "seq", seq, "published_seq", published)
		return result, nil
	}

	c.archive.Reconcile(records)
	c.spec.Sort(records)
	c.records = records
	c.publishedSeq = seq
	c.lastCycle = result
	update := c.updateLocked("refresh")
	c.mu.Unlock()

	for _, outcome := range fetched {
		c.recordFetch(ctx, outcome)
	}

	c.notify(update)

	slog.Info("Refresh cycle completed", "seq", seq, "records", len(records), "failed", failed, "duration", result.Duration)

	if failed > 0 && failed == len(sources) {
		return result, ErrAllSourcesFailed
	}
	return result, nil
}

// sourceOutcome is what a cycle reports about one source once it publishes.
type sourceOutcome struct {
	name  string
	count int
	err   error
}

// assemble normalizes and filters each slot in declaration order, then
// removes duplicate ids keeping the later record at the earlier position.
func (c *Coordinator) assemble(ctx context.Context, sources []*feed.Config, slots []fetchOutcome) ([]feed.Record, []sourceOutcome, int) {
	var records []feed.Record
	fetched := make([]sourceOutcome, 0, len(sources))
	failed := 0

	for i, source := range sources {
		outcome := slots[i]
		if outcome.err != nil {
			c.report(ctx, source, outcome.err)
			fetched = append(fetched, sourceOutcome{name: source.Name, err: outcome.err})
			failed++
			continue
		}

		normalized, err := c.normalizer.Run(outcome.payload, source)
		if err != nil {
			c.report(ctx, source, err)
			fetched = append(fetched, sourceOutcome{name: source.Name, err: err})
			failed++
			continue
		}

		kept := c.filter.Run(normalized, source)
		records = append(records, kept...)
		fetched = append(fetched, sourceOutcome{name: source.Name, count: len(kept)})
	}

	return dedupe(records), fetched, failed
}

func dedupe(records []feed.Record) []feed.Record {
	positions := make(map[string]int, len(records))
	result := make([]feed.Record, 0, len(records))

	for _, record := range records {
		if pos, ok := positions[record.ID]; ok {
			result[pos] = record
			continue
		}
		positions[record.ID] = len(result)
		result = append(result, record)
	}

	return result
}

func (c *Coordinator) report(ctx context.Context, source *feed.Config, err error) {
	level := slog.LevelError
	var transportErr *feed.TransportError
	if errors.As(err, &transportErr) {
		level = slog.LevelWarn
	}

	slog.Log(ctx, level, "Source failed", "source", source.Name, "error", err)

	if c.reporter != nil {
		c.reporter(source.Name, level, err)
	}
}

func (c *Coordinator) recordFetch(ctx context.Context, outcome sourceOutcome) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordFetch(ctx, outcome.name, outcome.count, outcome.err); err != nil {
		slog.Warn("Failed to record fetch outcome", "source", outcome.name, "error", err)
	}
}

// Records returns the whole working set in sort order.
func (c *Coordinator) Records() []feed.Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	return slices.Clone(c.records)
}

func (c *Coordinator) Record(id string) (feed.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(id)
	if i < 0 {
		return feed.Record{}, false
	}
	return c.records[i], true
}

// Visible returns the working set honouring the stored hide-archived flag.
func (c *Coordinator) Visible() []feed.Record {
	return c.Filtered(c.archive.HideArchived())
}

func (c *Coordinator) HideArchived() bool {
	return c.archive.HideArchived()
}

func (c *Coordinator) Filtered(hideArchived bool) []feed.Record {
	records, _ := c.View(hideArchived)
	return records
}

// View returns the listing and the size of the working set it was taken
// from, read under one lock.
func (c *Coordinator) View(hideArchived bool) ([]feed.Record, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := len(c.records)
	if !hideArchived {
		return slices.Clone(c.records), total
	}

	result := make([]feed.Record, 0, total)
	for _, record := range c.records {
		if !record.Archived {
			result = append(result, record)
		}
	}
	return result, total
}

// SetArchived archives or restores one record. A PersistenceError is
// returned alongside the updated record when the change was not saved.
func (c *Coordinator) SetArchived(ctx context.Context, id string, archived bool) (feed.Record, error) {
	c.mu.Lock()

	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return feed.Record{}, ErrRecordNotFound
	}

	err := c.archive.SetArchived(ctx, &c.records[i], archived)
	record := c.records[i]
	c.spec.Sort(c.records)
	update := c.updateLocked("archive")
	c.mu.Unlock()

	c.notify(update)
	return record, err
}

// ArchiveAll applies the same archive state to the whole working set and
// notifies listeners once.
func (c *Coordinator) ArchiveAll(ctx context.Context, archived bool) (int, error) {
	c.mu.Lock()

	err := c.archive.ArchiveAll(ctx, c.records, archived)
	count := len(c.records)
	c.spec.Sort(c.records)
	update := c.updateLocked("archive_all")
	c.mu.Unlock()

	c.notify(update)
	return count, err
}

func (c *Coordinator) SetHideArchived(ctx context.Context, hide bool) error {
	c.mu.Lock()
	err := c.archive.SetHideArchived(ctx, hide)
	update := c.updateLocked("hide_archived")
	c.mu.Unlock()

	c.notify(update)
	return err
}

// SetSortKeys replaces the sort spec and re-sorts the working set.
func (c *Coordinator) SetSortKeys(keys []string) error {
	spec, err := sorting.Parse(keys)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.spec = spec
	c.spec.Sort(c.records)
	update := c.updateLocked("sort")
	c.mu.Unlock()

	c.notify(update)
	return nil
}

// OnColumnClicked toggles the field behind a table column. Unknown columns
// are ignored and reported as false.
func (c *Coordinator) OnColumnClicked(column string) bool {
	field, ok := sorting.ColumnField(column)
	if !ok {
		return false
	}

	c.mu.Lock()
	c.spec = c.spec.Toggle(field)
	c.spec.Sort(c.records)
	update := c.updateLocked("sort")
	c.mu.Unlock()

	c.notify(update)
	return true
}

func (c *Coordinator) SortKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.spec.Strings()
}

func (c *Coordinator) LastCycle() *CycleResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastCycle == nil {
		return nil
	}
	result := *c.lastCycle
	return &result
}

func (c *Coordinator) indexLocked(id string) int {
	return slices.IndexFunc(c.records, func(r feed.Record) bool { return r.ID == id })
}

func (c *Coordinator) updateLocked(reason string) Update {
	hide := c.archive.HideArchived()

	update := Update{
		Reason:   reason,
		Seq:      c.publishedSeq,
		Total:    len(c.records),
		SortKeys: c.spec.Strings(),
		At:       time.Now(),
	}
	for _, record := range c.records {
		if record.Archived {
			update.Archived++
		}
	}
	update.Visible = update.Total
	if hide {
		update.Visible -= update.Archived
	}
	return update
}

func (c *Coordinator) notify(update Update) {
	for _, listener := range c.listeners {
		listener(update)
	}
}
