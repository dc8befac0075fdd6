package etl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"ballpark/internal/domain"
	"ballpark/internal/lineage"
)

// ── SyncResult ─────────────────────────────────────────────

// SyncResult is the outcome of running one source over a batch of identifiers.
type SyncResult struct {
	Source    string              `json:"source"`
	Requested int                 `json:"requested"` // unique identifiers dispatched
	Fetched   int                 `json:"fetched"`
	Empty     int                 `json:"empty"`
	Failed    int                 `json:"failed"`
	Defaulted int                 `json:"defaulted"` // records with at least one defaulted column
	Written   int                 `json:"written"`
	Records   []Record            `json:"-"`
	Skips     []domain.SkipRecord `json:"skips,omitempty"`
	Duration  time.Duration       `json:"duration"`
}

// LogValue implements slog.LogValuer.
func (r *SyncResult) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("source", r.Source),
		slog.Int("requested", r.Requested),
		slog.Int("fetched", r.Fetched),
		slog.Int("empty", r.Empty),
		slog.Int("failed", r.Failed),
		slog.Int("defaulted", r.Defaulted),
		slog.Int("written", r.Written),
		slog.Duration("duration", r.Duration),
	)
}

// Merge folds o's counts and skips into r. Records are not merged because
// they belong to different tables.
func (r *SyncResult) Merge(o *SyncResult) {
	if o == nil {
		return
	}
	if r.Source == "" {
		r.Source = o.Source
	} else if o.Source != "" {
		r.Source += "+" + o.Source
	}
	r.Requested += o.Requested
	r.Fetched += o.Fetched
	r.Empty += o.Empty
	r.Failed += o.Failed
	r.Defaulted += o.Defaulted
	r.Written += o.Written
	r.Skips = append(r.Skips, o.Skips...)
	r.Duration += o.Duration
}

// ApplyTo copies the counts onto a run log.
func (r *SyncResult) ApplyTo(run *domain.RunLog) {
	run.Requested = r.Requested
	run.Fetched = r.Fetched
	run.Empty = r.Empty
	run.Failed = r.Failed
	run.Defaulted = r.Defaulted
	run.Written = r.Written
}

// ── Engine ─────────────────────────────────────────────────
// The Engine composes fetch → transform → load. It never starts
// goroutines directly; all per-identifier work goes through the Executor.

// Engine runs sources over identifier batches.
type Engine struct {
	Fetcher  *Fetcher
	Executor Executor
	Lineage  lineage.Emitter
	Logger   *slog.Logger
}

// NewEngine wires an engine. A nil executor runs serially, a nil emitter drops lineage.
func NewEngine(fetcher *Fetcher, executor Executor, emitter lineage.Emitter, logger *slog.Logger) *Engine {
	if executor == nil {
		executor = SerialExecutor{}
	}
	if emitter == nil {
		emitter = lineage.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{Fetcher: fetcher, Executor: executor, Lineage: emitter, Logger: logger}
}

type outcome struct {
	id       domain.Identifier
	record   Record
	issues   []QualityIssue
	attempts int
	empty    bool
	err      error
}

// Run fetches and transforms every unique identifier. Identifiers that come
// back empty or fail after all retries are skipped and reported in the
// result; the only error Run returns is a cancelled context.
func (e *Engine) Run(ctx context.Context, src Source, ids []domain.Identifier) (*SyncResult, error) {
	start := time.Now()
	spec := src.Spec()
	logger := e.Logger.With("source", spec.Name)

	unique := lo.Uniq(ids)
	res := &SyncResult{Source: spec.Name, Requested: len(unique)}
	if len(unique) < len(ids) {
		logger.Debug("dropped duplicate identifiers", "duplicates", len(ids)-len(unique))
	}

	// One slot per identifier; each task writes only its own slot.
	outcomes := make([]*outcome, len(unique))
	handles := make([]Handle, 0, len(unique))
	for i, id := range unique {
		if ctx.Err() != nil {
			break
		}
		handles = append(handles, e.Executor.Submit(ctx, func(ctx context.Context) error {
			outcomes[i] = e.process(ctx, src, id)
			return nil
		}))
	}
	for _, h := range handles {
		if err := h.Wait(); err != nil {
			logger.Debug("task not run", "error", err)
		}
	}

	for _, o := range outcomes {
		if o == nil {
			continue
		}
		e.collect(logger, res, o)
	}
	res.Duration = time.Since(start)

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("run %s: %w", spec.Name, err)
	}
	logger.Info("fetch complete", "result", res)
	return res, nil
}

func (e *Engine) process(ctx context.Context, src Source, id domain.Identifier) *outcome {
	fr, err := e.Fetcher.Fetch(ctx, id, src.Fetch)
	o := &outcome{id: id, attempts: fr.Attempts}
	switch {
	case err != nil:
		o.err = err
	case fr.Empty:
		o.empty = true
	default:
		o.record, o.issues = src.Transform(id, fr.Payload)
	}
	return o
}

func (e *Engine) collect(logger *slog.Logger, res *SyncResult, o *outcome) {
	now := time.Now().UTC()
	switch {
	case o.err != nil:
		res.Failed++
		res.Skips = append(res.Skips, domain.SkipRecord{
			Identifier: o.id,
			Reason:     domain.SkipFailed,
			Attempts:   o.attempts,
			Error:      o.err.Error(),
			CreatedAt:  now,
		})
		logger.Error("identifier failed, skipping", "id", o.id.String(), "attempts", o.attempts, "error", o.err)
	case o.empty:
		res.Empty++
		res.Skips = append(res.Skips, domain.SkipRecord{
			Identifier: o.id,
			Reason:     domain.SkipEmpty,
			Attempts:   o.attempts,
			CreatedAt:  now,
		})
	default:
		res.Fetched++
		res.Records = append(res.Records, o.record)
		if len(o.issues) > 0 {
			res.Defaulted++
			logger.Warn("record fields defaulted",
				"id", o.id.String(),
				"issues", lo.Map(o.issues, func(q QualityIssue, _ int) string { return q.String() }))
		}
	}
}

// Sync ensures the source's table exists, runs the source over ids and
// loads the records. Load failures are returned; per-identifier failures
// are not.
func (e *Engine) Sync(ctx context.Context, src Source, ids []domain.Identifier, dest Destination) (*SyncResult, error) {
	spec := src.Spec()
	if err := dest.EnsureSchema(ctx, spec.Table); err != nil {
		return nil, fmt.Errorf("ensure schema %s: %w", spec.Table.Name, err)
	}

	res, err := e.Run(ctx, src, ids)
	if err != nil {
		return res, err
	}
	if res.Fetched > 0 {
		lineage.Safe(ctx, e.Lineage,
			lineage.NewEvent("fetch "+spec.Label, spec.Upstream, nil, lineage.DirectionDownstream),
			e.Logger)
	}

	if err := e.Load(ctx, dest, spec.Table, res); err != nil {
		return res, err
	}
	return res, nil
}

// Load writes res.Records into table and records the written count. A
// successful non-empty load emits a downstream lineage event.
func (e *Engine) Load(ctx context.Context, dest Destination, table domain.TableSchema, res *SyncResult) error {
	n, err := dest.InsertBatch(ctx, table, res.Records)
	res.Written += n
	if err != nil {
		return fmt.Errorf("load %s: %w", table.Name, err)
	}
	if n > 0 {
		lineage.Safe(ctx, e.Lineage,
			lineage.NewEvent("load "+table.Name, nil, []lineage.Resource{dest.Resource(table)}, lineage.DirectionUpstream),
			e.Logger)
	}
	return nil
}
