// Package config loads ballpark's json5 configuration file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"github.com/samber/lo"
	"github.com/titanous/json5"

	"ballpark/internal/domain"
	"ballpark/internal/elevation"
	"ballpark/internal/lineage"
	"ballpark/internal/retry"
	"ballpark/internal/secret"
	"ballpark/internal/statsapi"
	"ballpark/internal/telemetry"
)

// DefaultPath is used when no --config flag is given.
const DefaultPath = "ballpark.json5"

// WarehouseSecretKey names the warehouse password in a secret store.
const WarehouseSecretKey = "warehouse"

// RetryConfig fields are pointers so an explicit 0 is kept.
type RetryConfig struct {
	Attempts       *int     `json:"attempts"`
	BackoffSeconds *float64 `json:"backoff_seconds"`
}

type APIConfig struct {
	BaseURL           string  `json:"base_url"`
	TimeoutSeconds    float64 `json:"timeout_seconds"`
	RequestsPerSecond float64 `json:"requests_per_second"`
}

// GamesConfig is the default game selection for runs that name none.
type GamesConfig struct {
	TeamIDs      []int  `json:"team_ids"`
	StartDate    string `json:"start_date"` // YYYY-MM-DD
	EndDate      string `json:"end_date"`   // YYYY-MM-DD
	LookbackDays int    `json:"lookback_days"`
}

type ScheduleConfig struct {
	Pipeline string `json:"pipeline"`
	Cron     string `json:"cron"`
}

type LineageConfig struct {
	Log   bool                `json:"log"`
	Mongo lineage.MongoConfig `json:"mongo"`
}

type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // text or json
}

type Config struct {
	Warehouse domain.WarehouseConnection `json:"warehouse"`
	StateDB   string                     `json:"state_db"`
	Workers   *int                       `json:"workers"`
	Retry     RetryConfig                `json:"retry"`
	StatsAPI  APIConfig                  `json:"stats_api"`
	Elevation APIConfig                  `json:"elevation_api"`
	Games     GamesConfig                `json:"games"`
	Schedules []ScheduleConfig           `json:"schedules"`
	Lineage   LineageConfig              `json:"lineage"`
	Telemetry telemetry.Config           `json:"telemetry"`
	Log       LogConfig                  `json:"log"`
}

func splitExt(f string) (string, string) {
	for i := len(f) - 1; i >= 0; i-- {
		if f[i] == '.' {
			return f[0:i], f[i+1:]
		}
	}
	return f, ""
}

// LocalPath returns the override file read next to name, e.g.
// ballpark.json5 -> ballpark.local.json5.
func LocalPath(name string) string {
	prefix, ext := splitExt(filepath.Base(name))
	return filepath.Join(filepath.Dir(name), fmt.Sprintf("%s.local.%s", prefix, ext))
}

// ReadConfig reads name and merges <name>.local.<ext> over it. It returns
// os.ErrNotExist when neither file exists.
func ReadConfig[T any](name string) (T, error) {
	var out T
	allNotFound := true

	defaultFile, err := os.ReadFile(name)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(defaultFile) > 0 {
		if err := json5.Unmarshal(defaultFile, &out); err != nil {
			return out, fmt.Errorf("parse %s: %w", name, err)
		}
		allNotFound = false
	}

	localPath := LocalPath(name)
	localFile, err := os.ReadFile(localPath)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(localFile) > 0 {
		var override T
		if err := json5.Unmarshal(localFile, &override); err != nil {
			return out, fmt.Errorf("parse %s: %w", localPath, err)
		}
		// WithoutDereference lets an explicit local 0 in a pointer field win.
		if err := mergo.Merge(&out, override, mergo.WithOverride, mergo.WithoutDereference); err != nil {
			return out, fmt.Errorf("merge %s: %w", localPath, err)
		}
		slog.Debug("merging config with local overrides", "local", localPath)
		allNotFound = false
	}

	if allNotFound {
		return out, os.ErrNotExist
	}
	return out, nil
}

// Load reads the config at path, applies defaults and validates it. A
// missing file yields the defaults alone.
func Load(path string) (Config, error) {
	cfg, err := ReadConfig[Config](path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.Warehouse.Driver == "" {
		c.Warehouse.Driver = domain.WarehouseDriverSQLite
		if c.Warehouse.Host == "" {
			c.Warehouse.Host = "data/warehouse.db"
		}
	}
	if c.StateDB == "" {
		c.StateDB = "data/ballpark-state.db"
	}
	if c.Workers == nil {
		c.Workers = lo.ToPtr(4)
	}
	def := retry.DefaultPolicy()
	if c.Retry.Attempts == nil {
		c.Retry.Attempts = lo.ToPtr(def.Attempts)
	}
	if c.Retry.BackoffSeconds == nil {
		c.Retry.BackoffSeconds = lo.ToPtr(def.BackoffFactor.Seconds())
	}
	if c.StatsAPI.BaseURL == "" {
		c.StatsAPI.BaseURL = statsapi.DefaultBaseURL
	}
	if c.Elevation.BaseURL == "" {
		c.Elevation.BaseURL = elevation.DefaultBaseURL
	}
	if c.Games.LookbackDays == 0 {
		c.Games.LookbackDays = 1
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks values that would only fail later, mid-run.
func (c Config) Validate() error {
	var errs []error
	switch c.Warehouse.Driver {
	case domain.WarehouseDriverSnowflake, domain.WarehouseDriverPostgres, domain.WarehouseDriverMySQL,
		domain.WarehouseDriverSQLite, domain.WarehouseDriverLibSQL:
	default:
		errs = append(errs, fmt.Errorf("warehouse.driver %q is not supported", c.Warehouse.Driver))
	}
	if n := c.WorkerCount(); n < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", n))
	}
	if n := lo.FromPtr(c.Retry.Attempts); n < 1 {
		errs = append(errs, fmt.Errorf("retry.attempts must be at least 1, got %d", n))
	}
	if lo.FromPtr(c.Retry.BackoffSeconds) < 0 {
		errs = append(errs, fmt.Errorf("retry.backoff_seconds must not be negative"))
	}
	if _, err := parseDate(c.Games.StartDate); err != nil {
		errs = append(errs, fmt.Errorf("games.start_date: %w", err))
	}
	if _, err := parseDate(c.Games.EndDate); err != nil {
		errs = append(errs, fmt.Errorf("games.end_date: %w", err))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	for i, s := range c.Schedules {
		if s.Pipeline == "" || s.Cron == "" {
			errs = append(errs, fmt.Errorf("schedules[%d]: pipeline and cron are required", i))
		}
	}
	return errors.Join(errs...)
}

// ResolveSecrets replaces the warehouse password with the one held by
// store, if any. The config file value is the fallback.
func (c *Config) ResolveSecrets(store secret.SecretStore) error {
	pw, err := secret.Resolve(store, WarehouseSecretKey, c.Warehouse.Password)
	if err != nil {
		return err
	}
	c.Warehouse.Password = pw
	return nil
}

// ── Derived settings ───────────────────────────────────────

// WorkerCount is the configured pool size, 0 when unset.
func (c Config) WorkerCount() int {
	return lo.FromPtr(c.Workers)
}

func (c Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		Attempts:      lo.FromPtr(c.Retry.Attempts),
		BackoffFactor: seconds(lo.FromPtr(c.Retry.BackoffSeconds)),
	}
}

func (c Config) StatsAPIOptions() statsapi.Options {
	return statsapi.Options{
		BaseURL:           c.StatsAPI.BaseURL,
		Timeout:           seconds(c.StatsAPI.TimeoutSeconds),
		RequestsPerSecond: c.StatsAPI.RequestsPerSecond,
		Tracing:           c.Telemetry.Enabled(),
	}
}

func (c Config) ElevationOptions() elevation.Options {
	return elevation.Options{
		BaseURL:           c.Elevation.BaseURL,
		Timeout:           seconds(c.Elevation.TimeoutSeconds),
		RequestsPerSecond: c.Elevation.RequestsPerSecond,
		Tracing:           c.Telemetry.Enabled(),
	}
}

// GameDates returns the configured start and end dates; zero when unset.
func (c Config) GameDates() (start, end time.Time) {
	start, _ = parseDate(c.Games.StartDate)
	end, _ = parseDate(c.Games.EndDate)
	return start, end
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, s)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
