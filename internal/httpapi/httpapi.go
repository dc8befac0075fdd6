// Package httpapi holds the resty plumbing shared by the API clients: client
// construction, rate limiting and mapping HTTP outcomes onto the fetch
// error taxonomy.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"ballpark/internal/etl"
	"ballpark/internal/retry"
	"ballpark/internal/telemetry"
)

// Options configures a client.
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 disables rate limiting
	UserAgent         string
	Tracing           bool
	TracerName        string
}

// New builds a resty client. Retries are left to the caller's retry policy.
func New(opts Options) *resty.Client {
	client := resty.New()
	client.SetBaseURL(opts.BaseURL)
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client.SetTimeout(timeout)
	if opts.UserAgent != "" {
		client.SetHeader("user-agent", opts.UserAgent)
	}
	client.SetHeader("accept", "application/json")

	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}
	if opts.Tracing {
		telemetry.InstrumentResty(client, opts.TracerName)
	}
	return client
}

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s", e.URL, e.Status)
}

// Classify maps a resty outcome onto the fetch taxonomy:
// 404 and empty bodies are etl.ErrNoData; 408, 429, 5xx and transport
// errors are returned as-is so they are retried; any other status is
// retry.Permanent.
func Classify(res *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	code := res.StatusCode()
	switch {
	case code == http.StatusNotFound:
		return etl.ErrNoData
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return &StatusError{StatusCode: code, Status: res.Status(), URL: res.Request.URL}
	case code < 200 || code >= 300:
		return retry.Permanent(&StatusError{StatusCode: code, Status: res.Status(), URL: res.Request.URL})
	}
	if len(strings.TrimSpace(string(res.Body()))) == 0 {
		return etl.ErrNoData
	}
	return nil
}

// DecodeObject decodes a JSON object body. Bodies that are not a JSON
// object are permanent failures; empty objects and null are no data.
func DecodeObject(body []byte) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, retry.Permanent(fmt.Errorf("decode response: %w", err))
	}
	if len(out) == 0 {
		return nil, etl.ErrNoData
	}
	return out, nil
}
