// Package statsapi is a small client for the public MLB Stats API.
package statsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/samber/lo"

	"ballpark/internal/domain"
	"ballpark/internal/etl"
	"ballpark/internal/httpapi"
	"ballpark/internal/retry"
)

const (
	DefaultBaseURL = "https://statsapi.mlb.com"
	dateLayout     = "2006-01-02"
	sportMLB       = "1"
)

type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Tracing           bool
}

type Client struct {
	http *resty.Client
}

func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	return &Client{http: httpapi.New(httpapi.Options{
		BaseURL:           opts.BaseURL,
		Timeout:           opts.Timeout,
		RequestsPerSecond: opts.RequestsPerSecond,
		UserAgent:         "ballpark/1.0",
		Tracing:           opts.Tracing,
		TracerName:        "statsapi",
	})}
}

// ScheduledGame is one entry of a schedule listing.
type ScheduledGame struct {
	GamePk   int    `json:"gamePk"`
	GameDate string `json:"gameDate"`
	Status   struct {
		DetailedState string `json:"detailedState"`
	} `json:"status"`
}

type scheduleResponse struct {
	Dates []struct {
		Date  string          `json:"date"`
		Games []ScheduledGame `json:"games"`
	} `json:"dates"`
}

// Schedule lists the games of one team between start and end, inclusive.
func (c *Client) Schedule(ctx context.Context, teamID int, start, end time.Time) ([]ScheduledGame, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"sportId":   sportMLB,
			"teamId":    strconv.Itoa(teamID),
			"startDate": start.Format(dateLayout),
			"endDate":   end.Format(dateLayout),
		}).
		Get("/api/v1/schedule")
	if err := httpapi.Classify(res, err); err != nil {
		return nil, err
	}

	var body scheduleResponse
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		return nil, retry.Permanent(fmt.Errorf("decode schedule: %w", err))
	}
	var games []ScheduledGame
	for _, d := range body.Dates {
		games = append(games, d.Games...)
	}
	return games, nil
}

// GameIDs lists the unique game pks for all teams in the date range,
// retrying each team's listing under policy. A team whose listing keeps
// failing aborts the call.
func (c *Client) GameIDs(ctx context.Context, policy retry.Policy, teamIDs []int, start, end time.Time) ([]domain.Identifier, error) {
	var pks []int
	for _, team := range lo.Uniq(teamIDs) {
		var games []ScheduledGame
		_, err := policy.Do(ctx, func(ctx context.Context) error {
			g, err := c.Schedule(ctx, team, start, end)
			if errors.Is(err, etl.ErrNoData) {
				return nil
			}
			if err != nil {
				return err
			}
			games = g
			return nil
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("schedule for team %d: %w", team, err)
		}
		for _, g := range games {
			pks = append(pks, g.GamePk)
		}
	}
	return domain.IdentifiersFromInts(lo.Uniq(pks)), nil
}

// LiveFeed returns the raw live feed of a game. gameData carries the teams
// and venue, liveData.boxscore the team stats and the info list.
func (c *Client) LiveFeed(ctx context.Context, gamePk domain.Identifier) (map[string]any, error) {
	if gamePk.Int() <= 0 {
		return nil, retry.Permanent(fmt.Errorf("invalid game id %q", gamePk))
	}
	res, err := c.http.R().
		SetContext(ctx).
		SetPathParam("gamePk", gamePk.String()).
		Get("/api/v1.1/game/{gamePk}/feed/live")
	if err := httpapi.Classify(res, err); err != nil {
		return nil, err
	}
	return httpapi.DecodeObject(res.Body())
}
