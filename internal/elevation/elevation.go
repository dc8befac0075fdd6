// Package elevation is a client for the Open-Meteo elevation API.
package elevation

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"ballpark/internal/domain"
	"ballpark/internal/etl"
	"ballpark/internal/httpapi"
	"ballpark/internal/retry"
)

const DefaultBaseURL = "https://api.open-meteo.com"

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
		TracerName:        "elevation",
	})}
}

type response struct {
	Elevation json.RawMessage `json:"elevation"`
}

// Lookup returns the elevation in meters at p.
func (c *Client) Lookup(ctx context.Context, p domain.GeoPoint) (float64, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"latitude":  strconv.FormatFloat(p.Latitude, 'f', -1, 64),
			"longitude": strconv.FormatFloat(p.Longitude, 'f', -1, 64),
		}).
		Get("/v1/elevation")
	if err := httpapi.Classify(res, err); err != nil {
		return 0, err
	}

	var body response
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		return 0, retry.Permanent(fmt.Errorf("decode elevation: %w", err))
	}
	return parseElevation(body.Elevation)
}

// parseElevation accepts a bare number or the one-element array the API
// returns for a single coordinate.
func parseElevation(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, etl.ErrNoData
	}
	var single float64
	if err := json.Unmarshal(raw, &single); err == nil {
		return single, nil
	}
	var list []float64
	if err := json.Unmarshal(raw, &list); err != nil {
		return 0, retry.Permanent(fmt.Errorf("decode elevation %s: %w", raw, err))
	}
	if len(list) == 0 {
		return 0, etl.ErrNoData
	}
	return list[0], nil
}
