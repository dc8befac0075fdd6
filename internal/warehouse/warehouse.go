// Package warehouse loads flat records into relational tables.
//
// A Connector is opened from an explicit domain.WarehouseConnection; the
// loader never resolves connection settings by name.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ballpark/internal/domain"
	"ballpark/internal/lineage"
)

const (
	ddlTimeout    = 30 * time.Second
	insertTimeout = 5 * time.Minute
	selectTimeout = 2 * time.Minute
	pingTimeout   = 10 * time.Second
)

// Rows is the result of a Select.
type Rows struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Connector is a database/sql handle plus the dialect of its engine.
type Connector struct {
	conn    domain.WarehouseConnection
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
}

// Open opens a connector for conn. The connection is verified lazily; call
// Ping to check it up front.
func Open(conn domain.WarehouseConnection, logger *slog.Logger) (*Connector, error) {
	driverName, dsn, err := driverAndDSN(conn)
	if err != nil {
		return nil, err
	}
	d, ok := dialects[conn.Driver]
	if !ok {
		return nil, fmt.Errorf("unsupported warehouse driver: %q", conn.Driver)
	}
	if conn.Driver == domain.WarehouseDriverSQLite && conn.Host != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(conn.Host), 0o755); err != nil {
			return nil, fmt.Errorf("create warehouse dir: %w", err)
		}
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	switch conn.Driver {
	case domain.WarehouseDriverSQLite, domain.WarehouseDriverLibSQL:
		db.SetMaxOpenConns(1)
	default:
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
	}
	db.SetConnMaxLifetime(10 * time.Minute)

	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		conn:    conn,
		db:      db,
		dialect: d,
		logger:  logger.With("warehouse", string(conn.Driver)),
	}, nil
}

// Ping verifies connectivity.
func (c *Connector) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return c.db.PingContext(ctx)
}

// Close closes the underlying pool.
func (c *Connector) Close() error {
	return c.db.Close()
}

// QualifiedName prefixes table with database and schema where the engine
// supports cross-schema names (Snowflake: DEV_DAY.PUBLIC.GAME_SCORES).
func (c *Connector) QualifiedName(table string) string {
	switch c.conn.Driver {
	case domain.WarehouseDriverSnowflake:
		parts := make([]string, 0, 3)
		if c.conn.Database != "" {
			parts = append(parts, c.conn.Database)
			if c.conn.Schema != "" {
				parts = append(parts, c.conn.Schema)
			}
		}
		return strings.Join(append(parts, table), ".")
	case domain.WarehouseDriverPostgres:
		if c.conn.Schema != "" {
			return c.conn.Schema + "." + table
		}
	}
	return table
}

// Resource names table for lineage, e.g. snowflake://DEV_DAY/PUBLIC/GAME_SCORES.
func (c *Connector) Resource(table domain.TableSchema) lineage.Resource {
	prefix := ""
	if c.conn.Database != "" {
		prefix = c.conn.ResourceName()
	}
	return lineage.TableResource(string(c.conn.Driver), prefix, table.Name)
}

// EnsureTable creates table if it does not exist.
func (c *Connector) EnsureTable(ctx context.Context, table domain.TableSchema) error {
	if err := checkIdent(table.Name); err != nil {
		return err
	}
	stmt, err := c.dialect.createTable(c.QualifiedName(table.Name), table)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, ddlTimeout)
	defer cancel()
	if _, err := c.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", table.Name, err)
	}
	c.logger.Debug("ensured table", "table", table.Name)
	return nil
}

// InsertRows inserts rows in one transaction with a prepared statement.
// Any failure rolls the whole batch back.
func (c *Connector) InsertRows(ctx context.Context, table domain.TableSchema, rows [][]any) (n int, err error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := checkIdent(table.Name); err != nil {
		return 0, err
	}
	query, err := c.dialect.insert(c.QualifiedName(table.Name), table)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, insertTimeout)
	defer cancel()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				c.logger.Warn("rollback failed", "table", table.Name, "error", rbErr)
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare insert %s: %w", table.Name, err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if len(row) != len(table.Columns) {
			return 0, fmt.Errorf("row %d: got %d values, want %d", i, len(row), len(table.Columns))
		}
		if _, err = stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("insert row %d into %s: %w", i, table.Name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(rows), nil
}

// Select runs a read query and returns every row. Byte slices are
// returned as strings and times as RFC 3339 text.
func (c *Connector) Select(ctx context.Context, query string, args ...any) (*Rows, error) {
	ctx, cancel := context.WithTimeout(ctx, selectTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	out := &Rows{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for j := range values {
			ptrs[j] = &values[j]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for j, v := range values {
			values[j] = formatValue(v)
		}
		out.Rows = append(out.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return out, nil
}

func formatValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return val
	}
}
