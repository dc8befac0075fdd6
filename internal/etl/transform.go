package etl

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"ballpark/internal/domain"
)

// ── Transformer ────────────────────────────────────────────
// The transformer flattens a nested Payload into a Record.
// It never fails: missing or mistyped fields are replaced with the
// column default and reported as QualityIssues so data-quality
// defects stay visible without stopping the batch.

// Text columns default to this value.
const DefaultText = "Unknown"

// IssueReason tells why a column was defaulted.
type IssueReason string

const (
	IssueMissing  IssueReason = "missing"
	IssueMismatch IssueReason = "mismatch"
)

// QualityIssue reports one defaulted column.
type QualityIssue struct {
	Column string      `json:"column"`
	Reason IssueReason `json:"reason"`
	Raw    any         `json:"raw,omitempty"`
}

func (q QualityIssue) String() string {
	if q.Reason == IssueMismatch {
		return fmt.Sprintf("%s: %s (%v)", q.Column, q.Reason, q.Raw)
	}
	return fmt.Sprintf("%s: %s", q.Column, q.Reason)
}

// LookupFunc resolves a value that a plain key path cannot reach.
type LookupFunc func(p Payload) (any, bool)

// FieldSpec maps one nested payload value onto one column.
type FieldSpec struct {
	Column  string
	Path    []string // nested keys; numeric elements index into arrays
	Lookup  LookupFunc
	Type    domain.ColumnType
	Default any // nil means the type default ("Unknown", 0, 0.0)
}

// DerivedField computes a column from already extracted columns.
type DerivedField struct {
	Column string
	Fn     func(Record) any
}

// Extractor holds the field mapping for one target table.
type Extractor struct {
	// IDColumn, when set, is filled from the identifier itself.
	IDColumn string
	Fields   []FieldSpec
	Derived  []DerivedField
}

// Transform flattens p into a record. id fills IDColumn.
func (x *Extractor) Transform(id domain.Identifier, p Payload) (Record, []QualityIssue) {
	rec := NewRecord()
	var issues []QualityIssue

	if x.IDColumn != "" {
		v, ok := coerce(string(id), domain.ColumnInt)
		if !ok {
			v = int64(0)
			issues = append(issues, QualityIssue{Column: x.IDColumn, Reason: IssueMismatch, Raw: string(id)})
		}
		rec.Data[x.IDColumn] = v
	}

	for _, f := range x.Fields {
		var raw any
		var found bool
		if f.Lookup != nil {
			raw, found = f.Lookup(p)
		} else {
			raw, found = navigatePath(map[string]any(p), f.Path)
		}

		if !found || isBlank(raw) {
			rec.Data[f.Column] = f.defaultValue()
			issues = append(issues, QualityIssue{Column: f.Column, Reason: IssueMissing})
			continue
		}

		v, ok := coerce(raw, f.Type)
		if !ok {
			rec.Data[f.Column] = f.defaultValue()
			issues = append(issues, QualityIssue{Column: f.Column, Reason: IssueMismatch, Raw: raw})
			continue
		}
		rec.Data[f.Column] = v
	}

	for _, d := range x.Derived {
		rec.Data[d.Column] = d.Fn(rec)
	}
	return rec, issues
}

func (f FieldSpec) defaultValue() any {
	if f.Default != nil {
		if v, ok := coerce(f.Default, f.Type); ok {
			return v
		}
	}
	return TypeDefault(f.Type)
}

// TypeDefault returns the documented default for a column type.
func TypeDefault(t domain.ColumnType) any {
	switch t {
	case domain.ColumnInt:
		return int64(0)
	case domain.ColumnFloat:
		return 0.0
	default:
		return DefaultText
	}
}

// AbsDiff returns a derived-field function computing |a - b| over two int
// columns. A difference beyond the int64 range is clamped to math.MaxInt64.
func AbsDiff(a, b string) func(Record) any {
	return func(r Record) any {
		hi, low := r.Int(a), r.Int(b)
		if hi < low {
			hi, low = low, hi
		}
		d := uint64(hi) - uint64(low)
		if d > math.MaxInt64 {
			return int64(math.MaxInt64)
		}
		return int64(d)
	}
}

// LabelValue looks up the "value" of the first object in the array at path whose
// "label" equals label, e.g. the "T" (game time) entry of a boxscore info list.
func LabelValue(path []string, label string) LookupFunc {
	return func(p Payload) (any, bool) {
		raw, ok := navigatePath(map[string]any(p), path)
		if !ok {
			return nil, false
		}
		items, ok := raw.([]any)
		if !ok {
			return nil, false
		}
		for _, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if fmt.Sprint(m["label"]) == label {
				v, ok := m["value"]
				return v, ok
			}
		}
		return nil, false
	}
}

// ── Helpers ────────────────────────────────────────────────

// navigatePath walks a key path into nested maps and slices.
func navigatePath(obj any, path []string) (any, bool) {
	current := obj
	for _, part := range path {
		switch v := current.(type) {
		case map[string]any:
			next, ok := v[part]
			if !ok {
				return nil, false
			}
			current = next
		case Payload:
			next, ok := v[part]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(v) {
				return nil, false
			}
			current = v[i]
		default:
			return nil, false
		}
	}
	return current, true
}

func isBlank(v any) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(s) == ""
	default:
		return false
	}
}

// coerce converts a raw JSON-ish value to the column's Go type:
// int64 for int, float64 for float, string for text.
func coerce(v any, t domain.ColumnType) (any, bool) {
	switch t {
	case domain.ColumnInt:
		n, ok := toInt(v)
		return n, ok
	case domain.ColumnFloat:
		f, ok := toFloat(v)
		return f, ok
	default:
		return toText(v)
	}
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float32:
		return truncFloat(float64(n))
	case float64:
		return truncFloat(n)
	case json.Number:
		i, err := n.Int64()
		if err == nil {
			return i, true
		}
		if errors.Is(err, strconv.ErrRange) {
			return 0, false
		}
		if f, err := n.Float64(); err == nil {
			return truncFloat(f)
		}
		return 0, false
	case string:
		s := strings.TrimSpace(n)
		i, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return i, true
		}
		if errors.Is(err, strconv.ErrRange) {
			return 0, false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return truncFloat(f)
		}
		return 0, false
	default:
		return 0, false
	}
}

// truncFloat rejects values whose integer part does not fit in an int64.
func truncFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || f < math.MinInt64 || f >= -math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	default:
		return 0, false
	}
}

func toText(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int, int32, int64, json.Number:
		return fmt.Sprint(s), true
	case bool:
		return strconv.FormatBool(s), true
	default:
		return DefaultText, false
	}
}
