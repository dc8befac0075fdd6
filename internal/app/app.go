// Package app wires storage, clients, pipelines and services from the
// config file. The CLI and the MCP server are both built on an App.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"ballpark/internal/config"
	"ballpark/internal/elevation"
	"ballpark/internal/etl"
	"ballpark/internal/etl/sources"
	"ballpark/internal/lineage"
	"ballpark/internal/secret"
	"ballpark/internal/service"
	"ballpark/internal/statsapi"
	"ballpark/internal/storage"
	"ballpark/internal/telemetry"
	"ballpark/internal/warehouse"
)

const serviceName = "ballpark"

// Options override what the config file says.
type Options struct {
	ConfigPath string
	Workers    int                  // > 0 overrides workers
	Secrets    secret.SecretStore   // nil uses the environment, then the keychain
	Emitter    service.EventEmitter // nil logs run notifications
	LogOutput  io.Writer            // nil is stderr
}

// App is the composition root.
type App struct {
	Config     config.Config
	ConfigPath string
	Logger     *slog.Logger

	State     *storage.DB
	Warehouse *warehouse.Connector
	Registry  *etl.Registry
	Pipelines *service.PipelineService

	telemetry telemetry.Telemetry
	closers   []func() error
}

// DefaultSecrets reads BALLPARK_<KEY>_PASSWORD first, then the keychain.
func DefaultSecrets() secret.SecretStore {
	return secret.Chain{secret.EnvStore{}, secret.NewKeychainStore()}
}

// New loads the config and opens everything a pipeline run needs. Close
// releases it all.
func New(ctx context.Context, opts Options) (_ *App, err error) {
	if opts.ConfigPath == "" {
		opts.ConfigPath = config.DefaultPath
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Workers > 0 {
		cfg.Workers = &opts.Workers
	}
	if opts.Secrets == nil {
		opts.Secrets = DefaultSecrets()
	}
	if err := cfg.ResolveSecrets(opts.Secrets); err != nil {
		return nil, err
	}

	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	logger, err := NewLogger(cfg.Log, out)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, ConfigPath: opts.ConfigPath, Logger: logger}
	defer func() {
		if err != nil {
			a.Close(context.Background())
		}
	}()

	a.telemetry, err = telemetry.Setup(ctx, serviceName, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	a.State, err = storage.New(cfg.StateDB)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	a.closers = append(a.closers, a.State.Close)

	a.Warehouse, err = warehouse.Open(cfg.Warehouse, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Warehouse.Close)

	emitter, err := a.newLineage()
	if err != nil {
		return nil, err
	}

	engine := etl.NewEngine(
		etl.NewFetcher(cfg.RetryPolicy(), logger),
		etl.NewExecutor(cfg.WorkerCount()),
		emitter,
		logger,
	)
	stats := statsapi.New(cfg.StatsAPIOptions())
	a.Registry = sources.Standard(engine, sources.Clients{
		Feed:      stats,
		Schedule:  stats,
		Elevation: elevation.New(cfg.ElevationOptions()),
		Reader:    a.Warehouse,
	}, etl.NewWarehouseWriter(a.Warehouse, logger))

	start, end := cfg.GameDates()
	a.Pipelines = service.NewPipelineService(a.Registry, storage.NewRunStore(a.State), opts.Emitter, logger, service.Options{
		Defaults: service.RequestDefaults{
			TeamIDs:      cfg.Games.TeamIDs,
			StartDate:    start,
			EndDate:      end,
			LookbackDays: cfg.Games.LookbackDays,
		},
	})
	return a, nil
}

// newLineage builds the configured lineage sinks. With none configured
// lineage events are dropped.
func (a *App) newLineage() (lineage.Emitter, error) {
	var sinks lineage.Multi
	if a.Config.Lineage.Log {
		sinks = append(sinks, lineage.LogEmitter{Logger: a.Logger})
	}
	if a.Config.Lineage.Mongo.URI != "" {
		m, err := lineage.NewMongoEmitter(a.Config.Lineage.Mongo)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { return m.Close(context.Background()) })
		sinks = append(sinks, m)
	}
	switch len(sinks) {
	case 0:
		return lineage.Nop{}, nil
	case 1:
		return sinks[0], nil
	default:
		return sinks, nil
	}
}

// Schedules returns the cron schedules of cfg.
func Schedules(cfg config.Config) []service.Schedule {
	out := make([]service.Schedule, len(cfg.Schedules))
	for i, s := range cfg.Schedules {
		out[i] = service.Schedule{Pipeline: s.Pipeline, Cron: s.Cron}
	}
	return out
}

// ReloadSchedules re-reads the config file and returns its schedules.
func (a *App) ReloadSchedules() ([]service.Schedule, error) {
	cfg, err := config.Load(a.ConfigPath)
	if err != nil {
		return nil, err
	}
	return Schedules(cfg), nil
}

// Close stops the service and releases every resource, newest first.
func (a *App) Close(ctx context.Context) error {
	if a.Pipelines != nil {
		a.Pipelines.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := a.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// NewLogger builds the slog logger described by cfg.
func NewLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch cfg.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}
