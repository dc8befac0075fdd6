package app_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"ballpark/internal/app"
	"ballpark/internal/config"
	"ballpark/internal/domain"
	"ballpark/internal/etl"
	"ballpark/internal/secret"
)

const liveFeed = `{
  "gameData": {
    "teams": {
      "home": {"id": 147, "teamName": "Yankees"},
      "away": {"id": 111, "teamName": "Red Sox"}
    },
    "venue": {
      "id": 3313,
      "name": "Yankee Stadium",
      "location": {
        "city": "Bronx", "state": "New York", "postalCode": "10451", "country": "USA",
        "elevation": 55,
        "defaultCoordinates": {"latitude": 40.8292, "longitude": -73.9265}
      }
    }
  },
  "liveData": {
    "boxscore": {
      "teams": {
        "home": {"teamStats": {"batting": {"runs": 5}}},
        "away": {"teamStats": {"batting": {"runs": 2}}}
      },
      "info": [{"label": "T", "value": "3:01"}]
    }
  }
}`

// fakeAPIs serves the schedule, live feed and elevation endpoints. Game
// 745002 has no feed yet.
func fakeAPIs(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var elevationCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/schedule", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"dates":[{"date":"2024-04-05","games":[{"gamePk":745001},{"gamePk":745002}]}]}`)
	})
	mux.HandleFunc("/api/v1.1/game/745001/feed/live", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, liveFeed)
	})
	mux.HandleFunc("/api/v1.1/game/745002/feed/live", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/v1/elevation", func(w http.ResponseWriter, r *http.Request) {
		elevationCalls.Add(1)
		fmt.Fprint(w, `{"elevation":[17.0]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &elevationCalls
}

func writeConfig(t *testing.T, dir, apiURL string) string {
	t.Helper()
	path := filepath.Join(dir, "ballpark.json5")
	content := fmt.Sprintf(`{
  warehouse: { driver: "sqlite", host: %q },
  state_db: %q,
  workers: 2,
  retry: { attempts: 2, backoff_seconds: 0.001 },
  stats_api: { base_url: %q },
  elevation_api: { base_url: %q },
  games: { team_ids: [147], start_date: "2024-04-01", end_date: "2024-04-07" },
  lineage: { log: true },
  log: { level: "debug" },
}`, filepath.Join(dir, "warehouse.db"), filepath.Join(dir, "state.db"), apiURL, apiURL)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func noSecrets() secret.SecretStore {
	return secret.EnvStore{Lookup: func(string) (string, bool) { return "", false }}
}

func TestApp_GamesThenElevation(t *testing.T) {
	srv, elevationCalls := fakeAPIs(t)
	dir := t.TempDir()
	var logs bytes.Buffer

	a, err := app.New(context.Background(), app.Options{
		ConfigPath: writeConfig(t, dir, srv.URL),
		Secrets:    noSecrets(),
		LogOutput:  &logs,
	})
	require.NoError(t, err)
	defer a.Close(context.Background())
	ctx := context.Background()

	run, res, err := a.Pipelines.Run(ctx, "games", etl.Request{})
	require.NoError(t, err)
	require.Equal(t, domain.RunSuccess, run.Status)
	// two games, each source fetches one and finds the other empty
	require.Equal(t, 2, res.Requested)
	require.Equal(t, 2, res.Fetched)
	require.Equal(t, 2, res.Empty)
	require.Equal(t, 2, res.Written)

	rows, err := a.Warehouse.Select(ctx, "SELECT GAME_ID, HOME_TEAM, HOME_SCORE, AWAY_SCORE, SCORE_DIFFERENTIAL, GAME_TIME FROM GAME_SCORES")
	require.NoError(t, err)
	require.Equal(t, [][]any{{int64(745001), "Yankees", int64(5), int64(2), int64(3), "3:01"}}, rows.Rows)

	run, res, err = a.Pipelines.Run(ctx, "elevation", etl.Request{})
	require.NoError(t, err)
	require.Equal(t, domain.RunSuccess, run.Status)
	require.Equal(t, 1, res.Written)
	require.EqualValues(t, 1, elevationCalls.Load())

	rows, err = a.Warehouse.Select(ctx, "SELECT city, elevation FROM elevation_data")
	require.NoError(t, err)
	require.Equal(t, [][]any{{"Bronx", 17.0}}, rows.Rows)

	runs, err := a.Pipelines.ListRuns("", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "elevation", runs[0].Pipeline)

	skips, err := a.Pipelines.ListSkips(runs[1].ID)
	require.NoError(t, err)
	require.Len(t, skips, 2)
	for _, s := range skips {
		require.Equal(t, domain.Identifier("745002"), s.Identifier)
		require.Equal(t, domain.SkipEmpty, s.Reason)
	}

	require.Contains(t, logs.String(), "msg=lineage")
	require.Contains(t, logs.String(), "load GAME_SCORES")
}

func TestApp_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ballpark.json5")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(`{
  warehouse: { driver: "sqlite", host: %q },
  state_db: %q,
  schedules: [{ pipeline: "games", cron: "0 6 * * *" }],
}`, filepath.Join(dir, "w.db"), filepath.Join(dir, "s.db"))), 0o644))

	a, err := app.New(context.Background(), app.Options{ConfigPath: path, Workers: 7, Secrets: noSecrets(), LogOutput: &bytes.Buffer{}})
	require.NoError(t, err)
	defer a.Close(context.Background())

	require.Equal(t, 7, a.Config.WorkerCount())
	require.Equal(t, []string{"elevation", "games", "locations", "scores"}, a.Registry.Names())

	schedules, err := a.ReloadSchedules()
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	require.Equal(t, "games", schedules[0].Pipeline)
}

func TestApp_BadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ballpark.json5")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(`{warehouse: {driver: "oracle"}, state_db: %q}`,
		filepath.Join(dir, "s.db"))), 0o644))

	_, err := app.New(context.Background(), app.Options{ConfigPath: path, Secrets: noSecrets(), LogOutput: &bytes.Buffer{}})
	require.ErrorContains(t, err, "warehouse.driver")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := app.NewLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "pipeline", "scores")
	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.True(t, strings.HasPrefix(out, "{"), out)
	require.Contains(t, out, `"pipeline":"scores"`)

	_, err = app.NewLogger(config.LogConfig{Level: "info", Format: "xml"}, &buf)
	require.Error(t, err)
}
