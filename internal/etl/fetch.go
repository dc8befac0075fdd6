package etl

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ballpark/internal/domain"
	"ballpark/internal/retry"
)

// ── Retrying Fetcher ───────────────────────────────────────
// Wraps a single outbound call with the retry policy and classifies
// the outcome: payload, empty ("no data"), or terminal failure.

// FetchFunc performs one attempt for one identifier.
type FetchFunc func(ctx context.Context, id domain.Identifier) (Payload, error)

// FetchResult is the outcome of a successful (possibly empty) fetch.
type FetchResult struct {
	Payload  Payload
	Empty    bool
	Attempts int
}

// Fetcher applies a retry policy to outbound calls.
type Fetcher struct {
	Policy retry.Policy
	Logger *slog.Logger
}

// NewFetcher creates a Fetcher with the given policy.
func NewFetcher(policy retry.Policy, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{Policy: policy, Logger: logger}
}

// Do runs op under the retry policy. An op returning ErrNoData ends the
// loop at once and reports empty=true with a nil error.
func (f *Fetcher) Do(ctx context.Context, id domain.Identifier, op func(ctx context.Context) error) (attempts int, empty bool, err error) {
	logger := f.logger().With("id", id.String())

	attempts, err = f.Policy.Do(ctx, func(ctx context.Context) error {
		err := op(ctx)
		if errors.Is(err, ErrNoData) {
			empty = true
			return nil
		}
		return err
	}, func(err error, attempt int, wait time.Duration) {
		logger.Warn("fetch attempt failed, retrying",
			"attempt", attempt, "wait", wait, "error", err)
	})
	if err != nil {
		return attempts, false, err
	}
	return attempts, empty, nil
}

// Fetch calls fn for id under the retry policy. A nil or empty payload
// counts as "no data" just like ErrNoData.
func (f *Fetcher) Fetch(ctx context.Context, id domain.Identifier, fn FetchFunc) (FetchResult, error) {
	var payload Payload
	attempts, empty, err := f.Do(ctx, id, func(ctx context.Context) error {
		p, err := fn(ctx, id)
		if err != nil {
			return err
		}
		payload = p
		return nil
	})
	if err != nil {
		return FetchResult{Attempts: attempts}, err
	}
	if empty || len(payload) == 0 {
		f.logger().Info("no data for identifier", "id", id.String(), "attempts", attempts)
		return FetchResult{Empty: true, Attempts: attempts}, nil
	}
	return FetchResult{Payload: payload, Attempts: attempts}, nil
}

func (f *Fetcher) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.Default()
	}
	return f.Logger
}
