package etl

import (
	"context"
	"errors"

	"ballpark/internal/domain"
	"ballpark/internal/lineage"
)

// ── Source ──────────────────────────────────────────────────
// A Source fetches one identifier's payload from an external API
// and knows how to flatten it for its target table.
// Implementations live in etl/sources/, one file per source.

// ErrNoData marks a well-formed "nothing here" response (no boxscore,
// HTTP 404, empty body). It is a valid outcome, never retried.
var ErrNoData = errors.New("no data")

// SourceSpec describes a source: its name, target table, and lineage resources.
type SourceSpec struct {
	Name     string             `json:"name"`
	Label    string             `json:"label"`
	Table    domain.TableSchema `json:"table"`
	Upstream []lineage.Resource `json:"upstream"`
}

// Source is the interface every per-identifier data source implements.
type Source interface {
	// Spec returns metadata about this source.
	Spec() SourceSpec

	// Fetch performs one API call for id. It returns ErrNoData for an empty
	// result, a retry.Permanent error for a request that cannot succeed, and
	// any other error for a transient failure.
	Fetch(ctx context.Context, id domain.Identifier) (Payload, error)

	// Transform flattens a payload into a record for Spec().Table.
	Transform(id domain.Identifier, p Payload) (Record, []QualityIssue)
}
