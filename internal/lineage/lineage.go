// Package lineage describes where pipeline data comes from and where it goes.
//
// Emission is a side channel: every Emitter error is logged by Safe and then
// dropped, so a broken lineage backend can never fail a pipeline run.
package lineage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Direction tags which side of the run the event describes.
type Direction string

const (
	DirectionUpstream   Direction = "upstream"
	DirectionDownstream Direction = "downstream"
)

// Resource identifies a table or API taking part in a run.
type Resource struct {
	ID           string `json:"id" bson:"id"`
	LineageGroup string `json:"lineageGroup" bson:"lineage_group"`
	Role         string `json:"role" bson:"role"`
	Name         string `json:"name" bson:"name"`
}

// TableResource describes a warehouse table, e.g.
// TableResource("snowflake", "DEV_DAY/PUBLIC", "GAME_SCORES") has id
// "snowflake://DEV_DAY/PUBLIC/GAME_SCORES" and name "dev_day.public.game_scores".
func TableResource(scheme, prefix, table string) Resource {
	path := table
	if prefix != "" {
		path = prefix + "/" + table
	}
	return Resource{
		ID:           fmt.Sprintf("%s://%s", scheme, path),
		LineageGroup: "global",
		Role:         "table",
		Name:         strings.ToLower(strings.ReplaceAll(path, "/", ".")),
	}
}

// APIResource describes an external HTTP API endpoint.
func APIResource(endpoint, name string) Resource {
	return Resource{
		ID:           "api://" + endpoint,
		LineageGroup: "global",
		Role:         "api",
		Name:         name,
	}
}

// Event is one lineage notification.
type Event struct {
	ID         string     `json:"id" bson:"_id"`
	Name       string     `json:"name" bson:"name"`
	RunID      string     `json:"runId,omitempty" bson:"run_id,omitempty"`
	Upstream   []Resource `json:"upstream,omitempty" bson:"upstream,omitempty"`
	Downstream []Resource `json:"downstream,omitempty" bson:"downstream,omitempty"`
	Direction  Direction  `json:"direction" bson:"direction"`
	OccurredAt time.Time  `json:"occurredAt" bson:"occurred_at"`
}

// NewEvent stamps a new event with a random id and the current time.
func NewEvent(name string, upstream, downstream []Resource, dir Direction) Event {
	return Event{
		ID:         uuid.New().String(),
		Name:       name,
		Upstream:   upstream,
		Downstream: downstream,
		Direction:  dir,
		OccurredAt: time.Now().UTC(),
	}
}

// Emitter publishes lineage events.
type Emitter interface {
	Emit(ctx context.Context, ev Event) error
}

type runIDKey struct{}

// WithRunID tags ctx so events emitted through Safe carry the run id.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run id set by WithRunID, or "".
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// Safe emits ev on e, logging and discarding any failure. A nil emitter is a no-op.
func Safe(ctx context.Context, e Emitter, ev Event, logger *slog.Logger) {
	if e == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("lineage emitter panicked", "event", ev.Name, "panic", r)
		}
	}()
	if ev.RunID == "" {
		ev.RunID = RunIDFromContext(ctx)
	}
	if err := e.Emit(ctx, ev); err != nil {
		logger.Warn("lineage emit failed", "event", ev.Name, "error", err)
	}
}

// ── Emitters ───────────────────────────────────────────────

// Nop discards every event.
type Nop struct{}

func (Nop) Emit(context.Context, Event) error { return nil }

// LogEmitter writes events to a slog logger.
type LogEmitter struct {
	Logger *slog.Logger
}

func (l LogEmitter) Emit(_ context.Context, ev Event) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("lineage",
		"event", ev.Name,
		"direction", string(ev.Direction),
		"upstream", resourceIDs(ev.Upstream),
		"downstream", resourceIDs(ev.Downstream),
		"run", ev.RunID,
	)
	return nil
}

func resourceIDs(rs []Resource) []string {
	ids := make([]string, len(rs))
	for i, r := range rs {
		ids[i] = r.ID
	}
	return ids
}

// Multi fans an event out to every emitter and joins their errors.
type Multi []Emitter

func (m Multi) Emit(ctx context.Context, ev Event) error {
	var errs []error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps every emitted event in memory. Used by tests and previews.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
	Err    error // returned from every Emit when set
}

func (r *Recorder) Emit(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, ev)
	return r.Err
}

// Names returns the names of recorded events in emission order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.Events))
	for i, ev := range r.Events {
		names[i] = ev.Name
	}
	return names
}
