package sources

import (
	"context"

	"ballpark/internal/domain"
	"ballpark/internal/etl"
	"ballpark/internal/lineage"
)

// ── Game Sources ───────────────────────────────────────────
// Both game sources read the live feed of one game. Scores come from
// liveData.boxscore, venues from gameData.venue.

// FeedAPI is the slice of the stats client the game sources need.
type FeedAPI interface {
	LiveFeed(ctx context.Context, gamePk domain.Identifier) (map[string]any, error)
}

var feedResource = lineage.APIResource("statsapi.mlb.com/api/v1.1/game/feed/live", "statsapi.mlb.game")

// fetchFeed fetches the feed and reports no data when the section at
// path is absent.
func fetchFeed(ctx context.Context, api FeedAPI, id domain.Identifier, path ...string) (etl.Payload, error) {
	feed, err := api.LiveFeed(ctx, id)
	if err != nil {
		return nil, err
	}
	var cur any = feed
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, etl.ErrNoData
		}
		if cur, ok = m[key]; !ok || cur == nil {
			return nil, etl.ErrNoData
		}
	}
	return etl.Payload(feed), nil
}

// ── Scores ─────────────────────────────────────────────────

var scoresExtractor = &etl.Extractor{
	IDColumn: "GAME_ID",
	Fields: []etl.FieldSpec{
		{Column: "HOME_TEAM_ID", Path: []string{"gameData", "teams", "home", "id"}, Type: domain.ColumnInt},
		{Column: "HOME_TEAM", Path: []string{"gameData", "teams", "home", "teamName"}, Type: domain.ColumnText},
		{Column: "AWAY_TEAM_ID", Path: []string{"gameData", "teams", "away", "id"}, Type: domain.ColumnInt},
		{Column: "AWAY_TEAM", Path: []string{"gameData", "teams", "away", "teamName"}, Type: domain.ColumnText},
		{Column: "HOME_SCORE", Path: []string{"liveData", "boxscore", "teams", "home", "teamStats", "batting", "runs"}, Type: domain.ColumnInt},
		{Column: "AWAY_SCORE", Path: []string{"liveData", "boxscore", "teams", "away", "teamStats", "batting", "runs"}, Type: domain.ColumnInt},
		{Column: "GAME_TIME", Lookup: etl.LabelValue([]string{"liveData", "boxscore", "info"}, "T"), Type: domain.ColumnText},
	},
	Derived: []etl.DerivedField{
		{Column: "SCORE_DIFFERENTIAL", Fn: etl.AbsDiff("HOME_SCORE", "AWAY_SCORE")},
	},
}

// ScoresSource produces GAME_SCORES rows.
type ScoresSource struct {
	api FeedAPI
}

func NewScoresSource(api FeedAPI) *ScoresSource { return &ScoresSource{api: api} }

func (s *ScoresSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Name:     "game_scores",
		Label:    "game scores",
		Table:    domain.GameScoresTable,
		Upstream: []lineage.Resource{feedResource},
	}
}

func (s *ScoresSource) Fetch(ctx context.Context, id domain.Identifier) (etl.Payload, error) {
	return fetchFeed(ctx, s.api, id, "liveData", "boxscore")
}

func (s *ScoresSource) Transform(id domain.Identifier, p etl.Payload) (etl.Record, []etl.QualityIssue) {
	return scoresExtractor.Transform(id, p)
}

// ── Locations ──────────────────────────────────────────────

var venue = []string{"gameData", "venue"}

func venuePath(keys ...string) []string {
	return append(append([]string{}, venue...), keys...)
}

var locationsExtractor = &etl.Extractor{
	IDColumn: "GAME_ID",
	Fields: []etl.FieldSpec{
		{Column: "VENUE_ID", Path: venuePath("id"), Type: domain.ColumnInt},
		{Column: "VENUE_NAME", Path: venuePath("name"), Type: domain.ColumnText},
		{Column: "VENUE_CITY", Path: venuePath("location", "city"), Type: domain.ColumnText},
		{Column: "VENUE_STATE", Path: venuePath("location", "state"), Type: domain.ColumnText},
		{Column: "VENUE_POSTAL_CODE", Path: venuePath("location", "postalCode"), Type: domain.ColumnText},
		{Column: "VENUE_COUNTRY", Path: venuePath("location", "country"), Type: domain.ColumnText},
		{Column: "VENUE_LATITUDE", Path: venuePath("location", "defaultCoordinates", "latitude"), Type: domain.ColumnFloat},
		{Column: "VENUE_LONGITUDE", Path: venuePath("location", "defaultCoordinates", "longitude"), Type: domain.ColumnFloat},
		{Column: "VENUE_ELEVATION", Path: venuePath("location", "elevation"), Type: domain.ColumnFloat},
	},
}

// LocationsSource produces GAME_LOCATIONS rows.
type LocationsSource struct {
	api FeedAPI
}

func NewLocationsSource(api FeedAPI) *LocationsSource { return &LocationsSource{api: api} }

func (s *LocationsSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Name:     "game_locations",
		Label:    "game locations",
		Table:    domain.GameLocationsTable,
		Upstream: []lineage.Resource{feedResource},
	}
}

func (s *LocationsSource) Fetch(ctx context.Context, id domain.Identifier) (etl.Payload, error) {
	return fetchFeed(ctx, s.api, id, venue...)
}

func (s *LocationsSource) Transform(id domain.Identifier, p etl.Payload) (etl.Record, []etl.QualityIssue) {
	return locationsExtractor.Transform(id, p)
}
