// Package journal records every fill applied to a robot in DuckDB and keeps
// a parquet export of the table up to date for offline analysis.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/argo-robots/internal/types"
	"github.com/rxtech-lab/argo-robots/pkg/errors"
)

// FillsWriter writes fills to a parquet file with real-time persistence.
type FillsWriter struct {
	db         *sql.DB
	outputPath string
	mu         sync.Mutex
}

// NewFillsWriter creates a new FillsWriter.
// outputPath is the full path to the parquet file.
func NewFillsWriter(outputPath string) *FillsWriter {
	return &FillsWriter{
		db:         nil,
		outputPath: outputPath,
		mu:         sync.Mutex{},
	}
}

// Initialize sets up the fills writer with DuckDB and loads an existing export.
func (w *FillsWriter) Initialize() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	dir := filepath.Dir(w.outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to create journal directory", err)
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to open DuckDB connection", err)
	}

	w.db = db

	_, err = w.db.Exec(`
		CREATE TABLE IF NOT EXISTS fills (
			robot_id TEXT,
			order_id TEXT,
			instrument TEXT,
			ticker TEXT,
			side TEXT,
			lots BIGINT,
			shares BIGINT,
			price DOUBLE,
			notional DOUBLE,
			commission DOUBLE,
			sum DOUBLE,
			budget DOUBLE,
			inventory BIGINT,
			timestamp TIMESTAMP,
			PRIMARY KEY (robot_id, order_id, timestamp)
		)
	`)
	if err != nil {
		w.db.Close()
		w.db = nil

		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to create fills table", err)
	}

	if _, err := os.Stat(w.outputPath); err == nil {
		// an unreadable export is replaced on the next write
		_, _ = w.db.Exec(fmt.Sprintf(`
			INSERT INTO fills
			SELECT * FROM read_parquet('%s')
			ON CONFLICT DO NOTHING
		`, w.outputPath))
	}

	return nil
}

// Record persists a fill and exports to parquet.
func (w *FillsWriter) Record(fill types.Fill) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return errors.New(errors.ErrCodeJournalWriteFailed, "writer not initialized")
	}

	_, err := w.db.Exec(`
		INSERT INTO fills (robot_id, order_id, instrument, ticker, side, lots, shares, price,
			notional, commission, sum, budget, inventory, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, fill.RobotID, fill.OrderID, fill.Instrument, fill.Ticker, string(fill.Side),
		fill.Lots, fill.Shares, fill.Price.InexactFloat64(), fill.Notional.InexactFloat64(),
		fill.Commission.InexactFloat64(), fill.Sum.InexactFloat64(), fill.Budget.InexactFloat64(),
		fill.Inventory, fill.Time)
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to insert fill", err)
	}

	return w.exportToParquet()
}

// Flush forces an export to parquet.
func (w *FillsWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return errors.New(errors.ErrCodeJournalWriteFailed, "writer not initialized")
	}

	return w.exportToParquet()
}

// GetOutputPath returns the parquet file path.
func (w *FillsWriter) GetOutputPath() string {
	return w.outputPath
}

// Count returns the number of fills stored.
func (w *FillsWriter) Count() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return 0, errors.New(errors.ErrCodeJournalWriteFailed, "writer not initialized")
	}

	var count int
	if err := w.db.QueryRow("SELECT COUNT(*) FROM fills").Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count fills", err)
	}

	return count, nil
}

// Close releases database resources.
func (w *FillsWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db != nil {
		if err := w.db.Close(); err != nil {
			return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to close database", err)
		}

		w.db = nil
	}

	return nil
}

//nolint:funcorder // helper method used by Record and Flush
func (w *FillsWriter) exportToParquet() error {
	_, err := w.db.Exec(fmt.Sprintf(`
		COPY (SELECT * FROM fills ORDER BY timestamp ASC)
		TO '%s' (FORMAT PARQUET)
	`, w.outputPath))
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalWriteFailed, "failed to export to parquet", err)
	}

	return nil
}
