package etl

import (
	"context"
	"fmt"
	"time"

	"ballpark/internal/domain"
)

// ── Positional Enrichment ──────────────────────────────────
// Looks up one value per input row and pairs results with rows by
// index, so the pairing holds however the executor orders completion.

// PointLookup returns the elevation for one coordinate.
type PointLookup func(ctx context.Context, p domain.GeoPoint) (float64, error)

type enrichSlot struct {
	elevation float64
	attempts  int
	empty     bool
	err       error
	done      bool
}

// Enrich runs lookup once per row and returns the enriched rows in input
// order. Rows whose lookup comes back empty or fails after all retries are
// left out and recorded as skips.
func (e *Engine) Enrich(ctx context.Context, rows []domain.LocationRow, lookup PointLookup) ([]domain.ElevationRow, *SyncResult, error) {
	start := time.Now()
	logger := e.Logger.With("source", "elevation")
	res := &SyncResult{Source: "elevation", Requested: len(rows)}

	slots := make([]enrichSlot, len(rows))
	handles := make([]Handle, 0, len(rows))
	for i, row := range rows {
		if ctx.Err() != nil {
			break
		}
		handles = append(handles, e.Executor.Submit(ctx, func(ctx context.Context) error {
			var elev float64
			attempts, empty, err := e.Fetcher.Do(ctx, row.Key(), func(ctx context.Context) error {
				v, err := lookup(ctx, row.Point)
				if err != nil {
					return err
				}
				elev = v
				return nil
			})
			slots[i] = enrichSlot{elevation: elev, attempts: attempts, empty: empty, err: err, done: true}
			return nil
		}))
	}
	for _, h := range handles {
		_ = h.Wait()
	}

	out := make([]domain.ElevationRow, 0, len(rows))
	now := time.Now().UTC()
	for i, s := range slots {
		if !s.done {
			continue
		}
		id := rows[i].Key()
		switch {
		case s.err != nil:
			res.Failed++
			res.Skips = append(res.Skips, domain.SkipRecord{
				Identifier: id, Reason: domain.SkipFailed, Attempts: s.attempts, Error: s.err.Error(), CreatedAt: now,
			})
			logger.Error("elevation lookup failed, skipping row", "id", id.String(), "attempts", s.attempts, "error", s.err)
		case s.empty:
			res.Empty++
			res.Skips = append(res.Skips, domain.SkipRecord{
				Identifier: id, Reason: domain.SkipEmpty, Attempts: s.attempts, CreatedAt: now,
			})
			logger.Info("no elevation for location", "id", id.String())
		default:
			res.Fetched++
			out = append(out, domain.ElevationRow{LocationRow: rows[i], Elevation: s.elevation})
		}
	}
	res.Duration = time.Since(start)

	if err := ctx.Err(); err != nil {
		return out, res, fmt.Errorf("enrich: %w", err)
	}
	logger.Info("elevation lookups complete", "result", res)
	return out, res, nil
}

// ElevationRecord flattens an enriched row for the elevation_data table.
func ElevationRecord(r domain.ElevationRow) Record {
	rec := NewRecord()
	rec.Data["city"] = r.City
	rec.Data["lat"] = r.Point.Latitude
	rec.Data["lon"] = r.Point.Longitude
	rec.Data["elevation"] = r.Elevation
	return rec
}

// LocationRowsFrom converts warehouse rows of (city, latitude, longitude)
// into location rows. Unparseable coordinates fall back to 0.0.
func LocationRowsFrom(rows [][]any) []domain.LocationRow {
	out := make([]domain.LocationRow, 0, len(rows))
	for _, r := range rows {
		if len(r) < 3 {
			continue
		}
		city, ok := toText(normalizeScan(r[0]))
		if !ok || city == "" {
			city = DefaultText
		}
		lat, _ := toFloat(normalizeScan(r[1]))
		lon, _ := toFloat(normalizeScan(r[2]))
		out = append(out, domain.LocationRow{City: city, Point: domain.GeoPoint{Latitude: lat, Longitude: lon}})
	}
	return out
}

// normalizeScan turns driver byte slices into strings so they coerce like JSON text.
func normalizeScan(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
