package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const (
	queueSize      = 300
	taskTimeout    = 5 * time.Minute
	maxRetryDelay  = 30 * time.Second
	baseRetryDelay = time.Second
)

type Scheduler struct {
	configs     ConfigProvider
	registry    SourceRegistry
	refresher   Refresher
	cron        *cron.Cron
	workerCount int
	retryDelay  time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

// NewScheduler prepares the worker pool and the periodic refresh. The
// schedule is any robfig/cron spec, evaluated in the process time zone.
func NewScheduler(configs ConfigProvider, registry SourceRegistry, refresher Refresher, workerCount int, schedule string) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		configs:     configs,
		registry:    registry,
		refresher:   refresher,
		cron:        cron.New(cron.WithLocation(time.Local)),
		workerCount: max(workerCount, 1),
		retryDelay:  baseRetryDelay,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, queueSize),
	}

	if _, err := s.cron.AddFunc(schedule, s.enqueueScheduledRefresh); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}

	return s, nil
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.enqueueStartupTasks()
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

// EnqueueRefresh queues an immediate refresh and returns its task ID.
func (s *Scheduler) EnqueueRefresh() (string, error) {
	task := NewRefreshTask(s.refresher)
	if err := s.EnqueueTask(task); err != nil {
		return "", err
	}
	return task.GetID(), nil
}

func (s *Scheduler) enqueueStartupTasks() {
	configs := s.configs.GetConfigs()
	if len(configs) == 0 {
		slog.Debug("No source configurations found")
	}

	slog.Debug("Syncing source configurations", "count", len(configs))

	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		syncTask := NewSyncSourceConfigTask(configs[name], s.registry)
		if err := s.EnqueueTask(syncTask); err != nil {
			slog.Warn("Failed to enqueue SyncSourceConfigTask", "source", name, "error", err)
		}
	}

	if _, err := s.EnqueueRefresh(); err != nil {
		slog.Warn("Failed to enqueue startup RefreshTask", "error", err)
	}
}

func (s *Scheduler) enqueueScheduledRefresh() {
	id, err := s.EnqueueRefresh()
	if err != nil {
		slog.Warn("Failed to enqueue scheduled RefreshTask", "error", err)
		return
	}
	slog.Debug("Scheduled refresh enqueued", "id", id)
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		return
	}

	task.IncrementRetryCount()
	retryDelay := min(s.retryDelay*time.Duration(1<<uint(task.GetRetryCount()-1)), maxRetryDelay)

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "source", task.GetSourceName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	go func() {
		select {
		case <-time.After(retryDelay):
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			return
		}
		if retryErr := s.EnqueueTask(task); retryErr != nil {
			slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
		}
	}()
}
