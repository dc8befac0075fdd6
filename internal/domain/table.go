package domain

// ColumnType is the logical warehouse type of a column.
type ColumnType string

const (
	ColumnInt   ColumnType = "int"
	ColumnText  ColumnType = "text"
	ColumnFloat ColumnType = "float"
)

// Column is one (name, type) pair of a table schema.
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// TableSchema is a named table with an ordered column list.
type TableSchema struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// ColumnNames returns the ordered list of column names.
func (t TableSchema) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// ── Target tables ──────────────────────────────────────────

var GameScoresTable = TableSchema{
	Name: "GAME_SCORES",
	Columns: []Column{
		{Name: "GAME_ID", Type: ColumnInt},
		{Name: "HOME_TEAM_ID", Type: ColumnInt},
		{Name: "HOME_TEAM", Type: ColumnText},
		{Name: "AWAY_TEAM_ID", Type: ColumnInt},
		{Name: "AWAY_TEAM", Type: ColumnText},
		{Name: "HOME_SCORE", Type: ColumnInt},
		{Name: "AWAY_SCORE", Type: ColumnInt},
		{Name: "SCORE_DIFFERENTIAL", Type: ColumnInt},
		{Name: "GAME_TIME", Type: ColumnText},
	},
}

var GameLocationsTable = TableSchema{
	Name: "GAME_LOCATIONS",
	Columns: []Column{
		{Name: "GAME_ID", Type: ColumnInt},
		{Name: "VENUE_ID", Type: ColumnInt},
		{Name: "VENUE_NAME", Type: ColumnText},
		{Name: "VENUE_CITY", Type: ColumnText},
		{Name: "VENUE_STATE", Type: ColumnText},
		{Name: "VENUE_POSTAL_CODE", Type: ColumnText},
		{Name: "VENUE_COUNTRY", Type: ColumnText},
		{Name: "VENUE_LATITUDE", Type: ColumnFloat},
		{Name: "VENUE_LONGITUDE", Type: ColumnFloat},
		{Name: "VENUE_ELEVATION", Type: ColumnFloat},
	},
}

var ElevationTable = TableSchema{
	Name: "elevation_data",
	Columns: []Column{
		{Name: "city", Type: ColumnText},
		{Name: "lat", Type: ColumnFloat},
		{Name: "lon", Type: ColumnFloat},
		{Name: "elevation", Type: ColumnFloat},
	},
}
