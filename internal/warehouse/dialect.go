package warehouse

import (
	"fmt"
	"regexp"
	"strings"

	"ballpark/internal/domain"
)

// dialect holds the per-engine SQL differences the loader cares about.
type dialect struct {
	types       map[domain.ColumnType]string
	dollarParam bool // $1, $2 instead of ?
}

var dialects = map[domain.WarehouseDriver]dialect{
	domain.WarehouseDriverSnowflake: {types: map[domain.ColumnType]string{
		domain.ColumnInt: "INTEGER", domain.ColumnText: "VARCHAR", domain.ColumnFloat: "FLOAT",
	}},
	domain.WarehouseDriverPostgres: {dollarParam: true, types: map[domain.ColumnType]string{
		domain.ColumnInt: "BIGINT", domain.ColumnText: "TEXT", domain.ColumnFloat: "DOUBLE PRECISION",
	}},
	domain.WarehouseDriverMySQL: {types: map[domain.ColumnType]string{
		domain.ColumnInt: "BIGINT", domain.ColumnText: "TEXT", domain.ColumnFloat: "DOUBLE",
	}},
	domain.WarehouseDriverSQLite: {types: map[domain.ColumnType]string{
		domain.ColumnInt: "INTEGER", domain.ColumnText: "TEXT", domain.ColumnFloat: "REAL",
	}},
	domain.WarehouseDriverLibSQL: {types: map[domain.ColumnType]string{
		domain.ColumnInt: "INTEGER", domain.ColumnText: "TEXT", domain.ColumnFloat: "REAL",
	}},
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkIdent(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

func (d dialect) placeholder(n int) string {
	if d.dollarParam {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (d dialect) createTable(qualified string, t domain.TableSchema) (string, error) {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		if err := checkIdent(c.Name); err != nil {
			return "", err
		}
		typ, ok := d.types[c.Type]
		if !ok {
			return "", fmt.Errorf("column %s: unsupported type %q", c.Name, c.Type)
		}
		cols[i] = fmt.Sprintf("%s %s", c.Name, typ)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", qualified, strings.Join(cols, ", ")), nil
}

func (d dialect) insert(qualified string, t domain.TableSchema) (string, error) {
	names := t.ColumnNames()
	params := make([]string, len(names))
	for i, n := range names {
		if err := checkIdent(n); err != nil {
			return "", err
		}
		params[i] = d.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		qualified, strings.Join(names, ", "), strings.Join(params, ", ")), nil
}
