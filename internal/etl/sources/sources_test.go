package sources_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"ballpark/internal/domain"
	"ballpark/internal/etl"
	"ballpark/internal/etl/sources"
	"ballpark/internal/lineage"
	"ballpark/internal/retry"
	"ballpark/internal/warehouse"
)

const feedJSON = `{
  "gameData": {
    "teams": {
      "home": {"id": 147, "teamName": "Yankees"},
      "away": {"id": 111, "teamName": "Red Sox"}
    },
    "venue": {
      "id": 3313,
      "name": "Yankee Stadium",
      "location": {
        "city": "Bronx",
        "state": "New York",
        "postalCode": "10451",
        "country": "USA",
        "elevation": 55,
        "defaultCoordinates": {"latitude": 40.82919482, "longitude": -73.9264977}
      }
    }
  },
  "liveData": {
    "boxscore": {
      "teams": {
        "home": {"teamStats": {"batting": {"runs": 3}}},
        "away": {"teamStats": {"batting": {"runs": 7}}}
      },
      "info": [
        {"label": "WP", "value": "Bello."},
        {"label": "T", "value": "2:48"}
      ]
    }
  }
}`

type fakeFeed struct {
	mu    sync.Mutex
	feeds map[domain.Identifier]string
	calls int
}

func (f *fakeFeed) LiveFeed(_ context.Context, id domain.Identifier) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	raw, ok := f.feeds[id]
	if !ok {
		return nil, etl.ErrNoData
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, retry.Permanent(err)
	}
	return out, nil
}

type fakeSchedule struct {
	ids   []domain.Identifier
	teams []int
}

func (f *fakeSchedule) GameIDs(_ context.Context, _ retry.Policy, teamIDs []int, _, _ time.Time) ([]domain.Identifier, error) {
	f.teams = teamIDs
	return f.ids, nil
}

func newEngine(em lineage.Emitter) *etl.Engine {
	return etl.NewEngine(
		etl.NewFetcher(retry.Policy{Attempts: 5, BackoffFactor: time.Millisecond}, nil),
		etl.NewExecutor(2), em, nil)
}

func TestScoresSource_Transform(t *testing.T) {
	feed := &fakeFeed{feeds: map[domain.Identifier]string{"745001": feedJSON}}
	src := sources.NewScoresSource(feed)

	p, err := src.Fetch(context.Background(), "745001")
	require.NoError(t, err)
	rec, issues := src.Transform("745001", p)
	require.Empty(t, issues)

	want := map[string]any{
		"GAME_ID":            int64(745001),
		"HOME_TEAM_ID":       int64(147),
		"HOME_TEAM":          "Yankees",
		"AWAY_TEAM_ID":       int64(111),
		"AWAY_TEAM":          "Red Sox",
		"HOME_SCORE":         int64(3),
		"AWAY_SCORE":         int64(7),
		"SCORE_DIFFERENTIAL": int64(4),
		"GAME_TIME":          "2:48",
	}
	if diff := cmp.Diff(want, rec.Data); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
	_, err = rec.Values(domain.GameScoresTable)
	require.NoError(t, err)
}

func TestLocationsSource_Transform(t *testing.T) {
	feed := &fakeFeed{feeds: map[domain.Identifier]string{"745001": feedJSON}}
	src := sources.NewLocationsSource(feed)

	p, err := src.Fetch(context.Background(), "745001")
	require.NoError(t, err)
	rec, issues := src.Transform("745001", p)
	require.Empty(t, issues)

	vals, err := rec.Values(domain.GameLocationsTable)
	require.NoError(t, err)
	require.Equal(t, []any{
		int64(745001), int64(3313), "Yankee Stadium", "Bronx", "New York", "10451", "USA",
		40.82919482, -73.9264977, 55.0,
	}, vals)
}

func TestSources_MissingSectionIsNoData(t *testing.T) {
	feed := &fakeFeed{feeds: map[domain.Identifier]string{"1": `{"gameData": {"teams": {}}}`}}

	_, err := sources.NewScoresSource(feed).Fetch(context.Background(), "1")
	require.ErrorIs(t, err, etl.ErrNoData)

	_, err = sources.NewLocationsSource(feed).Fetch(context.Background(), "1")
	require.ErrorIs(t, err, etl.ErrNoData)
}

func TestGamesPipeline_ExplicitIDs(t *testing.T) {
	feed := &fakeFeed{feeds: map[domain.Identifier]string{"1": feedJSON, "2": feedJSON}}
	dest := etl.NewMemoryDestination()
	rec := &lineage.Recorder{}
	reg := sources.Standard(newEngine(rec), sources.Clients{Feed: feed, Schedule: &fakeSchedule{}}, dest)

	p, err := reg.Get(sources.PipelineGames)
	require.NoError(t, err)
	res, err := p.Run(context.Background(), etl.Request{GameIDs: []domain.Identifier{"1", "2", "3", "1"}})
	require.NoError(t, err)

	require.Len(t, dest.Tables["GAME_SCORES"], 2)
	require.Len(t, dest.Tables["GAME_LOCATIONS"], 2)
	require.Equal(t, 3, res.Requested)
	require.Equal(t, 4, res.Written)
	require.Equal(t, 2, res.Empty)
	require.Contains(t, rec.Names(), "load GAME_SCORES")
	require.Contains(t, rec.Names(), "load GAME_LOCATIONS")
}

func TestGamesPipeline_ListsSchedule(t *testing.T) {
	feed := &fakeFeed{feeds: map[domain.Identifier]string{"10": feedJSON}}
	sched := &fakeSchedule{ids: []domain.Identifier{"10"}}
	dest := etl.NewMemoryDestination()
	reg := sources.Standard(newEngine(nil), sources.Clients{Feed: feed, Schedule: sched}, dest)

	p, err := reg.Get(sources.PipelineScores)
	require.NoError(t, err)
	req := etl.Request{
		TeamIDs:   []int{147, 111},
		StartDate: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC),
	}
	res, err := p.Run(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, []int{147, 111}, sched.teams)
	require.Equal(t, 1, res.Written)
	require.Empty(t, dest.Tables["GAME_LOCATIONS"])
}

func TestGamesPipeline_RequiresGamesOrTeams(t *testing.T) {
	reg := sources.Standard(newEngine(nil), sources.Clients{Feed: &fakeFeed{}, Schedule: &fakeSchedule{}}, etl.NewMemoryDestination())
	p, err := reg.Get(sources.PipelineLocations)
	require.NoError(t, err)
	_, err = p.Run(context.Background(), etl.Request{})
	require.ErrorIs(t, err, sources.ErrNoGames)
}

type fakeReader struct {
	rows  [][]any
	query string
}

func (f *fakeReader) Select(_ context.Context, query string, _ ...any) (*warehouse.Rows, error) {
	f.query = query
	return &warehouse.Rows{Columns: []string{"VENUE_CITY", "VENUE_LATITUDE", "VENUE_LONGITUDE"}, Rows: f.rows}, nil
}

func (f *fakeReader) QualifiedName(table string) string { return "DEV_DAY.PUBLIC." + table }

type fakeElevation struct{ byLat map[float64]float64 }

func (f fakeElevation) Lookup(_ context.Context, p domain.GeoPoint) (float64, error) {
	v, ok := f.byLat[p.Latitude]
	if !ok {
		return 0, errors.New("upstream timeout")
	}
	return v, nil
}

func TestElevationPipeline(t *testing.T) {
	reader := &fakeReader{rows: [][]any{
		{"NYC", 40.7, -74.0},
		{"Nowhere", 1.0, 1.0},
		{"LA", 34.0, -118.2},
	}}
	dest := etl.NewMemoryDestination()
	rec := &lineage.Recorder{}
	reg := sources.Standard(newEngine(rec), sources.Clients{
		Feed:      &fakeFeed{},
		Schedule:  &fakeSchedule{},
		Elevation: fakeElevation{byLat: map[float64]float64{40.7: 10, 34.0: 89}},
		Reader:    reader,
	}, dest)

	p, err := reg.Get(sources.PipelineElevation)
	require.NoError(t, err)
	res, err := p.Run(context.Background(), etl.Request{})
	require.NoError(t, err)

	require.Equal(t, "SELECT DISTINCT venue_city, venue_latitude, venue_longitude FROM DEV_DAY.PUBLIC.GAME_LOCATIONS", reader.query)
	require.Equal(t, 2, res.Written)
	require.Equal(t, 1, res.Failed)

	var got [][]any
	for _, r := range dest.Tables["elevation_data"] {
		vals, err := r.Values(domain.ElevationTable)
		require.NoError(t, err)
		got = append(got, vals)
	}
	require.Equal(t, [][]any{
		{"NYC", 40.7, -74.0, 10.0},
		{"LA", 34.0, -118.2, 89.0},
	}, got)
	require.Equal(t, []string{"read game locations", "fetch elevation", "load elevation_data"}, rec.Names())
}

func TestStandard_Names(t *testing.T) {
	reg := sources.Standard(newEngine(nil), sources.Clients{}, etl.NewMemoryDestination())
	require.Equal(t, []string{"elevation", "games", "locations", "scores"}, reg.Names())
}
