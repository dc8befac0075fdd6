// Package sources holds the concrete baseball sources and the pipelines
// composed from them.
package sources

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"ballpark/internal/domain"
	"ballpark/internal/etl"
	"ballpark/internal/lineage"
	"ballpark/internal/retry"
	"ballpark/internal/warehouse"
)

// Pipeline names.
const (
	PipelineScores    = "scores"
	PipelineLocations = "locations"
	PipelineGames     = "games"
	PipelineElevation = "elevation"
)

// ErrNoGames is returned when a request names neither games nor teams.
var ErrNoGames = errors.New("no game ids or team ids given")

// ScheduleAPI lists game ids for teams over a date range.
type ScheduleAPI interface {
	GameIDs(ctx context.Context, policy retry.Policy, teamIDs []int, start, end time.Time) ([]domain.Identifier, error)
}

// ── Game Pipelines ─────────────────────────────────────────

// GamesPipeline resolves game ids and syncs one or more game sources over them.
type GamesPipeline struct {
	name        string
	description string
	engine      *etl.Engine
	schedule    ScheduleAPI
	dest        etl.Destination
	sources     []etl.Source
}

// NewGamesPipeline composes sources into a named pipeline.
func NewGamesPipeline(name, description string, engine *etl.Engine, schedule ScheduleAPI, dest etl.Destination, srcs ...etl.Source) *GamesPipeline {
	return &GamesPipeline{
		name:        name,
		description: description,
		engine:      engine,
		schedule:    schedule,
		dest:        dest,
		sources:     srcs,
	}
}

func (p *GamesPipeline) Spec() etl.PipelineSpec {
	spec := etl.PipelineSpec{Name: p.name, Description: p.description}
	for _, s := range p.sources {
		ss := s.Spec()
		spec.Tables = append(spec.Tables, ss.Table.Name)
		spec.Upstream = append(spec.Upstream, ss.Upstream...)
	}
	spec.Upstream = lo.UniqBy(spec.Upstream, func(r lineage.Resource) string { return r.ID })
	return spec
}

func (p *GamesPipeline) Run(ctx context.Context, req etl.Request) (*etl.SyncResult, error) {
	ids, err := p.gameIDs(ctx, req)
	if err != nil {
		return nil, err
	}
	p.engine.Logger.Info("resolved game ids", "pipeline", p.name, "games", len(ids))

	// Requested counts each game once; the other counts are per source.
	unique := len(lo.Uniq(ids))
	total := &etl.SyncResult{}
	for _, src := range p.sources {
		res, err := p.engine.Sync(ctx, src, ids, p.dest)
		total.Merge(res)
		if err != nil {
			total.Requested = unique
			return total, err
		}
	}
	total.Requested = unique
	return total, nil
}

func (p *GamesPipeline) gameIDs(ctx context.Context, req etl.Request) ([]domain.Identifier, error) {
	if len(req.GameIDs) > 0 {
		return req.GameIDs, nil
	}
	if len(req.TeamIDs) == 0 {
		return nil, ErrNoGames
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, fmt.Errorf("end date %s is before start date %s",
			req.EndDate.Format(time.DateOnly), req.StartDate.Format(time.DateOnly))
	}
	ids, err := p.schedule.GameIDs(ctx, p.engine.Fetcher.Policy, req.TeamIDs, req.StartDate, req.EndDate)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	return ids, nil
}

// ── Elevation Pipeline ─────────────────────────────────────

// LocationReader reads stored rows back from the warehouse.
type LocationReader interface {
	Select(ctx context.Context, query string, args ...any) (*warehouse.Rows, error)
	QualifiedName(table string) string
}

// ElevationAPI looks up the elevation of one coordinate.
type ElevationAPI interface {
	Lookup(ctx context.Context, p domain.GeoPoint) (float64, error)
}

var elevationResource = lineage.APIResource("api.open-meteo.com/v1/elevation", "api.open-meteo.elevation")

// ElevationPipeline enriches stored venue locations with their elevation
// and writes them to elevation_data.
type ElevationPipeline struct {
	engine *etl.Engine
	reader LocationReader
	api    ElevationAPI
	dest   etl.Destination
}

func NewElevationPipeline(engine *etl.Engine, reader LocationReader, api ElevationAPI, dest etl.Destination) *ElevationPipeline {
	return &ElevationPipeline{engine: engine, reader: reader, api: api, dest: dest}
}

func (p *ElevationPipeline) Spec() etl.PipelineSpec {
	return etl.PipelineSpec{
		Name:        PipelineElevation,
		Description: "Look up the elevation of every stored venue location",
		Tables:      []string{domain.ElevationTable.Name},
		Upstream:    []lineage.Resource{p.dest.Resource(domain.GameLocationsTable), elevationResource},
	}
}

func (p *ElevationPipeline) Run(ctx context.Context, _ etl.Request) (*etl.SyncResult, error) {
	if err := p.dest.EnsureSchema(ctx, domain.ElevationTable); err != nil {
		return nil, fmt.Errorf("ensure schema %s: %w", domain.ElevationTable.Name, err)
	}

	locations, err := p.locations(ctx)
	if err != nil {
		return nil, err
	}
	lineage.Safe(ctx, p.engine.Lineage,
		lineage.NewEvent("read game locations", []lineage.Resource{p.dest.Resource(domain.GameLocationsTable)}, nil, lineage.DirectionDownstream),
		p.engine.Logger)

	enriched, res, err := p.engine.Enrich(ctx, locations, p.api.Lookup)
	if err != nil {
		return res, err
	}
	if res.Fetched > 0 {
		lineage.Safe(ctx, p.engine.Lineage,
			lineage.NewEvent("fetch elevation", []lineage.Resource{elevationResource}, nil, lineage.DirectionDownstream),
			p.engine.Logger)
	}

	res.Records = lo.Map(enriched, func(r domain.ElevationRow, _ int) etl.Record { return etl.ElevationRecord(r) })
	if err := p.engine.Load(ctx, p.dest, domain.ElevationTable, res); err != nil {
		return res, err
	}
	return res, nil
}

func (p *ElevationPipeline) locations(ctx context.Context) ([]domain.LocationRow, error) {
	query := fmt.Sprintf("SELECT DISTINCT venue_city, venue_latitude, venue_longitude FROM %s",
		p.reader.QualifiedName(domain.GameLocationsTable.Name))
	rows, err := p.reader.Select(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read game locations: %w", err)
	}
	return etl.LocationRowsFrom(rows.Rows), nil
}

// ── Wiring ─────────────────────────────────────────────────

// Clients bundles what the standard pipelines need.
type Clients struct {
	Feed      FeedAPI
	Schedule  ScheduleAPI
	Elevation ElevationAPI
	Reader    LocationReader
}

// Standard returns the registry of the four standard pipelines.
func Standard(engine *etl.Engine, c Clients, dest etl.Destination) *etl.Registry {
	scores := NewScoresSource(c.Feed)
	locations := NewLocationsSource(c.Feed)
	return etl.NewRegistry(
		NewGamesPipeline(PipelineScores, "Load final scores for scheduled games", engine, c.Schedule, dest, scores),
		NewGamesPipeline(PipelineLocations, "Load venue locations for scheduled games", engine, c.Schedule, dest, locations),
		NewGamesPipeline(PipelineGames, "Load scores and venue locations for scheduled games", engine, c.Schedule, dest, scores, locations),
		NewElevationPipeline(engine, c.Reader, c.Elevation, dest),
	)
}
