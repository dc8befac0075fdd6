package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Identifier names one unit of externally fetchable data (a game pk, a team id).
// It is immutable once issued and compared by value.
type Identifier string

// Int returns the identifier as an integer, or 0 when it is not numeric.
func (id Identifier) Int() int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(string(id)), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (id Identifier) String() string { return string(id) }

// IdentifiersFromInts converts numeric ids (team ids, game pks) into identifiers.
func IdentifiersFromInts(ns []int) []Identifier {
	ids := make([]Identifier, len(ns))
	for i, n := range ns {
		ids[i] = Identifier(strconv.Itoa(n))
	}
	return ids
}

// GeoPoint is a latitude/longitude pair. Zero value is (0.0, 0.0).
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LocationRow is a previously stored venue location read back from the warehouse.
type LocationRow struct {
	City  string   `json:"city"`
	Point GeoPoint `json:"point"`
}

// ElevationRow pairs a location row with its looked-up elevation in meters.
type ElevationRow struct {
	LocationRow
	Elevation float64 `json:"elevation"`
}

// Key identifies a location row for retry logging and skip records.
func (r LocationRow) Key() Identifier {
	return Identifier(fmt.Sprintf("%s@%.4f,%.4f", r.City, r.Point.Latitude, r.Point.Longitude))
}
