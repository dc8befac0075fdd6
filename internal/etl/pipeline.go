package etl

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"ballpark/internal/domain"
	"ballpark/internal/lineage"
)

// ── Pipeline ───────────────────────────────────────────────
// A Pipeline is a named, runnable composition of fetch, transform
// and load steps. The service runs pipelines by name.

// ErrUnknownPipeline is returned when a registry lookup misses.
var ErrUnknownPipeline = errors.New("unknown pipeline")

// Request carries the inputs of one pipeline run.
type Request struct {
	// GameIDs, when set, are used as-is instead of listing the schedule.
	GameIDs   []domain.Identifier `json:"gameIds,omitempty"`
	TeamIDs   []int               `json:"teamIds,omitempty"`
	StartDate time.Time           `json:"startDate"`
	EndDate   time.Time           `json:"endDate"`
}

// PipelineSpec describes a pipeline for listings.
type PipelineSpec struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Tables      []string           `json:"tables"`
	Upstream    []lineage.Resource `json:"upstream,omitempty"`
}

// Pipeline is implemented by every runnable pipeline.
type Pipeline interface {
	Spec() PipelineSpec
	Run(ctx context.Context, req Request) (*SyncResult, error)
}

// ── Pipeline Registry ──────────────────────────────────────

// Registry maps pipeline names to pipelines. Pipelines are built with
// their clients and destination already injected, so the registry is
// owned by the caller rather than filled from init().
type Registry struct {
	mu        sync.RWMutex
	pipelines map[string]Pipeline
}

// NewRegistry returns a registry holding the given pipelines.
func NewRegistry(pipelines ...Pipeline) *Registry {
	r := &Registry{pipelines: make(map[string]Pipeline)}
	for _, p := range pipelines {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a pipeline by its name.
func (r *Registry) Register(p Pipeline) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipelines[p.Spec().Name] = p
}

// Get returns a registered pipeline by name.
func (r *Registry) Get(name string) (Pipeline, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pipelines[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPipeline, name)
	}
	return p, nil
}

// List returns the specs of all registered pipelines, sorted by name.
func (r *Registry) List() []PipelineSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]PipelineSpec, 0, len(r.pipelines))
	for _, p := range r.pipelines {
		specs = append(specs, p.Spec())
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Names returns the registered pipeline names, sorted.
func (r *Registry) Names() []string {
	specs := r.List()
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	return names
}
