package etl

import (
	"fmt"

	"ballpark/internal/domain"
)

// ── Record ─────────────────────────────────────────────────
// Common intermediate data format.
// Sources emit Payloads, the transformer turns them into Records,
// destinations consume Records in table column order.

// Payload is the raw, semi-structured response for one identifier.
// Nothing about its shape is guaranteed.
type Payload map[string]any

// Record is a single flat row flowing through the pipeline.
// Records are never mutated after the transformer returns them.
type Record struct {
	Data map[string]any `json:"data"`
}

// NewRecord returns an empty record.
func NewRecord() Record {
	return Record{Data: make(map[string]any)}
}

// Values returns the record's values in the table's column order.
func (r Record) Values(t domain.TableSchema) ([]any, error) {
	vals := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		v, ok := r.Data[c.Name]
		if !ok {
			return nil, fmt.Errorf("record missing column %s for table %s", c.Name, t.Name)
		}
		vals[i] = v
	}
	return vals, nil
}

// Int returns an int column, or 0 when absent or of another type.
func (r Record) Int(col string) int64 {
	n, _ := r.Data[col].(int64)
	return n
}

// Float returns a float column, or 0.0 when absent or of another type.
func (r Record) Float(col string) float64 {
	f, _ := r.Data[col].(float64)
	return f
}

// Text returns a text column, or "" when absent or of another type.
func (r Record) Text(col string) string {
	s, _ := r.Data[col].(string)
	return s
}
