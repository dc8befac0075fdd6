package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"ballpark/internal/domain"
	"ballpark/internal/etl"
	"ballpark/internal/lineage"
)

// ─────────────────────────────────────────────────────────────
// Pipeline Service: runs pipelines by name and keeps their history
// ─────────────────────────────────────────────────────────────

// ErrAlreadyRunning is returned when a pipeline is started while a
// previous run of it is still in flight.
var ErrAlreadyRunning = errors.New("pipeline already running")

const defaultRunTimeout = 2 * time.Hour

// RequestDefaults fill in a request that leaves teams or dates empty.
type RequestDefaults struct {
	TeamIDs      []int
	StartDate    time.Time
	EndDate      time.Time
	LookbackDays int // used when StartDate is zero
}

// Schedule runs Pipeline on a standard 5-field cron expression.
type Schedule struct {
	Pipeline string `json:"pipeline"`
	Cron     string `json:"cron"`
}

// Options tune a PipelineService.
type Options struct {
	Defaults   RequestDefaults
	RunTimeout time.Duration
	Now        func() time.Time
}

// PipelineService runs registered pipelines, records every run in the
// run store, and triggers runs from cron schedules.
type PipelineService struct {
	registry *etl.Registry
	runs     domain.RunStore
	emitter  EventEmitter
	logger   *slog.Logger
	opts     Options
	running  runningGuard

	// watcher / cron lifecycle
	mu          sync.Mutex
	watchCancel context.CancelFunc
	watcher     *fsnotify.Watcher
	cronSched   *cron.Cron
}

// NewPipelineService creates a service ready for use. A nil run store
// disables run history; a nil emitter drops notifications.
func NewPipelineService(
	registry *etl.Registry,
	runs domain.RunStore,
	emitter EventEmitter,
	logger *slog.Logger,
	opts Options,
) *PipelineService {
	if logger == nil {
		logger = slog.Default()
	}
	if emitter == nil {
		emitter = LogEmitter{Logger: logger}
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = defaultRunTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &PipelineService{
		registry: registry,
		runs:     runs,
		emitter:  emitter,
		logger:   logger,
		opts:     opts,
	}
}

// ── Listing ────────────────────────────────────────────────

// ListPipelines returns the registered pipelines.
func (s *PipelineService) ListPipelines() []etl.PipelineSpec {
	return s.registry.List()
}

// ListRuns returns the most recent runs, newest first. An empty pipeline
// name lists every pipeline.
func (s *PipelineService) ListRuns(pipeline string, limit int) ([]domain.RunLog, error) {
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.ListRuns(pipeline, limit)
}

// ListSkips returns the identifiers skipped during a run.
func (s *PipelineService) ListSkips(runID string) ([]domain.SkipRecord, error) {
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.ListSkips(runID)
}

// Running returns the pipelines currently in flight.
func (s *PipelineService) Running() []string {
	return s.running.Running()
}

// ── Run ────────────────────────────────────────────────────

// Run executes a pipeline synchronously. The returned run log is never
// nil once the pipeline was found and the guard acquired, even when the
// pipeline itself fails.
func (s *PipelineService) Run(ctx context.Context, name string, req etl.Request) (*domain.RunLog, *etl.SyncResult, error) {
	p, err := s.registry.Get(name)
	if err != nil {
		return nil, nil, err
	}

	// Prevent concurrent execution of the same pipeline.
	if !s.running.TryLock(name) {
		return nil, nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, name)
	}
	defer s.running.Unlock(name)

	req = s.WithDefaults(req)
	run := &domain.RunLog{Pipeline: name, StartedAt: s.opts.Now().UTC()}
	if s.runs != nil {
		if err := s.runs.CreateRun(run); err != nil {
			return nil, nil, fmt.Errorf("create run log: %w", err)
		}
	}

	logger := s.logger.With("pipeline", name, "run", run.ID)
	logger.Info("pipeline started",
		"games", len(req.GameIDs), "teams", req.TeamIDs,
		"start", req.StartDate.Format(time.DateOnly), "end", req.EndDate.Format(time.DateOnly))
	s.emitter.Emit(ctx, EventRunStarted, run)

	runCtx, cancel := context.WithTimeout(lineage.WithRunID(ctx, run.ID), s.opts.RunTimeout)
	defer cancel()

	res, runErr := p.Run(runCtx, req)

	run.FinishedAt = s.opts.Now().UTC()
	run.Status = domain.RunSuccess
	if res != nil {
		res.ApplyTo(run)
	}
	if runErr != nil {
		run.Status = domain.RunError
		run.Error = runErr.Error()
	}
	s.persist(logger, run, res)

	if runErr != nil {
		logger.Error("pipeline failed", "result", res, "error", runErr)
	} else {
		logger.Info("pipeline finished", "result", res)
	}
	s.emitter.Emit(ctx, EventRunFinished, run)

	return run, res, runErr
}

// persist records the outcome. Failures here are logged, not returned,
// so a broken state db never masks the pipeline's own result.
func (s *PipelineService) persist(logger *slog.Logger, run *domain.RunLog, res *etl.SyncResult) {
	if s.runs == nil {
		return
	}
	if res != nil && len(res.Skips) > 0 {
		skips := make([]domain.SkipRecord, len(res.Skips))
		for i, sk := range res.Skips {
			sk.RunID = run.ID
			skips[i] = sk
		}
		if err := s.runs.CreateSkips(skips); err != nil {
			logger.Warn("failed to record skips", "error", err)
		}
	}
	if err := s.runs.FinishRun(run); err != nil {
		logger.Warn("failed to finish run log", "error", err)
	}
}

// WithDefaults fills the teams and date window a request leaves empty.
// Explicit game ids are left alone and need no teams.
func (s *PipelineService) WithDefaults(req etl.Request) etl.Request {
	d := s.opts.Defaults
	if len(req.GameIDs) == 0 && len(req.TeamIDs) == 0 {
		req.TeamIDs = append([]int(nil), d.TeamIDs...)
	}
	today := s.opts.Now().UTC().Truncate(24 * time.Hour)
	if req.EndDate.IsZero() {
		req.EndDate = d.EndDate
		if req.EndDate.IsZero() {
			req.EndDate = today
		}
	}
	if req.StartDate.IsZero() {
		req.StartDate = d.StartDate
		if req.StartDate.IsZero() {
			req.StartDate = req.EndDate.AddDate(0, 0, -d.LookbackDays)
		}
	}
	return req
}

// ── Schedules (cron + config watch) ────────────────────────

// StartSchedules tears down the current cron scheduler and rebuilds it
// from schedules. Invalid entries are logged and skipped; the number of
// scheduled entries is returned.
func (s *PipelineService) StartSchedules(ctx context.Context, schedules []Schedule) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopCron()

	c := cron.New()
	n := 0
	for _, sc := range schedules {
		name := sc.Pipeline
		if _, err := s.registry.Get(name); err != nil {
			s.logger.Warn("cron: skipping schedule", "pipeline", name, "error", err)
			continue
		}
		_, err := c.AddFunc(sc.Cron, func() {
			s.logger.Info("cron: running pipeline", "pipeline", name)
			if _, _, err := s.Run(ctx, name, etl.Request{}); err != nil {
				s.logger.Error("cron: pipeline failed", "pipeline", name, "error", err)
			}
		})
		if err != nil {
			s.logger.Warn("cron: invalid expression", "pipeline", name, "cron", sc.Cron, "error", err)
			continue
		}
		n++
	}
	if n == 0 {
		return 0
	}
	c.Start()
	s.cronSched = c
	s.logger.Info("cron: scheduled pipelines", "count", n)
	return n
}

// Entries returns the next fire time of each scheduled entry.
func (s *PipelineService) Entries() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cronSched == nil {
		return nil
	}
	var next []time.Time
	for _, e := range s.cronSched.Entries() {
		next = append(next, e.Next)
	}
	return next
}

// WatchConfig calls reload whenever the file at path is written and
// restarts the schedules with its result. Bursts of writes are debounced.
func (s *PipelineService) WatchConfig(ctx context.Context, path string, reload func() ([]Schedule, error)) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config watch: bad path %q: %w", path, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watch: create watcher: %w", err)
	}
	// Editors replace files on save, so watch the directory.
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("config watch: watch dir: %w", err)
	}

	s.mu.Lock()
	s.stopWatcher()
	watchCtx, cancel := context.WithCancel(ctx)
	s.watchCancel = cancel
	s.watcher = watcher
	s.mu.Unlock()

	go func() {
		var timer *time.Timer
		for {
			select {
			case <-watchCtx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if p, _ := filepath.Abs(event.Name); p != absPath {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(500*time.Millisecond, func() {
					schedules, err := reload()
					if err != nil {
						s.logger.Error("config watch: reload failed, keeping schedules", "path", absPath, "error", err)
						return
					}
					s.logger.Info("config watch: config changed, rescheduling", "path", absPath)
					s.StartSchedules(ctx, schedules)
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("config watch: error", "error", err)
			}
		}
	}()

	s.logger.Info("config watch: watching", "path", absPath)
	return nil
}

// WaitRunning blocks until all running pipelines finish or ctx is cancelled.
// Used for graceful shutdown.
func (s *PipelineService) WaitRunning(ctx context.Context) {
	s.running.WaitAll(ctx)
}

// Stop tears down the config watcher and the scheduler.
func (s *PipelineService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopWatcher()
	s.stopCron()
}

func (s *PipelineService) stopWatcher() {
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
}

func (s *PipelineService) stopCron() {
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
}
