package etl

import (
	"context"
	"fmt"
	"log/slog"

	"ballpark/internal/domain"
	"ballpark/internal/lineage"
)

// ── Destination ────────────────────────────────────────────
// A Destination writes records into a target table.

// Destination is the load side of a pipeline.
type Destination interface {
	// EnsureSchema creates the table if it does not exist. Safe to call on every run.
	EnsureSchema(ctx context.Context, table domain.TableSchema) error
	// InsertBatch writes all records or none and returns the number written.
	InsertBatch(ctx context.Context, table domain.TableSchema, records []Record) (int, error)
	// Resource names the table for lineage events.
	Resource(table domain.TableSchema) lineage.Resource
}

// ── Warehouse Destination ──────────────────────────────────

// RowWriter is the slice of a warehouse connector the writer needs.
type RowWriter interface {
	EnsureTable(ctx context.Context, table domain.TableSchema) error
	InsertRows(ctx context.Context, table domain.TableSchema, rows [][]any) (int, error)
	Resource(table domain.TableSchema) lineage.Resource
}

// WarehouseWriter implements Destination over a warehouse connector.
type WarehouseWriter struct {
	Conn   RowWriter
	Logger *slog.Logger
}

// NewWarehouseWriter wraps conn.
func NewWarehouseWriter(conn RowWriter, logger *slog.Logger) *WarehouseWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WarehouseWriter{Conn: conn, Logger: logger}
}

func (w *WarehouseWriter) EnsureSchema(ctx context.Context, table domain.TableSchema) error {
	if err := w.Conn.EnsureTable(ctx, table); err != nil {
		w.Logger.Error("error setting up table", "table", table.Name, "error", err)
		return err
	}
	w.Logger.Info("table ready", "table", table.Name)
	return nil
}

func (w *WarehouseWriter) InsertBatch(ctx context.Context, table domain.TableSchema, records []Record) (int, error) {
	if len(records) == 0 {
		w.Logger.Info("no rows to insert", "table", table.Name)
		return 0, nil
	}

	rows := make([][]any, len(records))
	for i, rec := range records {
		vals, err := rec.Values(table)
		if err != nil {
			w.Logger.Error("failed to insert rows", "table", table.Name, "error", err)
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		rows[i] = vals
	}

	n, err := w.Conn.InsertRows(ctx, table, rows)
	if err != nil {
		w.Logger.Error("failed to insert rows", "table", table.Name, "error", err)
		return 0, err
	}
	w.Logger.Info("inserted rows", "table", table.Name, "rows", n)
	return n, nil
}

func (w *WarehouseWriter) Resource(table domain.TableSchema) lineage.Resource {
	return w.Conn.Resource(table)
}

// ── Memory Destination ─────────────────────────────────────

// MemoryDestination keeps loaded records in memory. Used for dry runs and tests.
type MemoryDestination struct {
	Tables  map[string][]Record
	Ensured map[string]int
	Err     error // returned from InsertBatch when set
}

// NewMemoryDestination returns an empty in-memory destination.
func NewMemoryDestination() *MemoryDestination {
	return &MemoryDestination{Tables: make(map[string][]Record), Ensured: make(map[string]int)}
}

func (m *MemoryDestination) EnsureSchema(_ context.Context, table domain.TableSchema) error {
	m.Ensured[table.Name]++
	return nil
}

func (m *MemoryDestination) InsertBatch(_ context.Context, table domain.TableSchema, records []Record) (int, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	for i, rec := range records {
		if _, err := rec.Values(table); err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
	}
	m.Tables[table.Name] = append(m.Tables[table.Name], records...)
	return len(records), nil
}

func (m *MemoryDestination) Resource(table domain.TableSchema) lineage.Resource {
	return lineage.TableResource("memory", "", table.Name)
}
