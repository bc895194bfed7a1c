package sqlite

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robalyx/guardian/internal/export/types"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// FileName is the name of the SQLite export database.
const FileName = "audit_logs.db"

const insertQuery = "INSERT INTO audit_logs (sequence, user, activity, timestamp) VALUES (?, ?, ?, ?)"

// Writer streams audit log records to a SQLite database.
type Writer struct {
	conn *sqlite.Conn
}

// New creates the database in outDir, replacing any previous export.
func New(outDir string) (*Writer, error) {
	path := filepath.Join(outDir, FileName)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove existing file %s: %w", FileName, err)
	}

	// Open database
	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate|sqlite.OpenReadWrite)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Create table
	err = sqlitex.ExecuteScript(conn, `
		CREATE TABLE audit_logs (
			sequence INTEGER PRIMARY KEY,
			user TEXT NOT NULL,
			activity TEXT NOT NULL,
			timestamp TEXT NOT NULL
		);
		CREATE INDEX idx_audit_logs_user ON audit_logs (user);
	`, nil)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &Writer{conn: conn}, nil
}

// Write implements types.Writer. Each batch is inserted in one transaction.
func (w *Writer) Write(records []*types.ExportRecord) (err error) {
	if len(records) == 0 {
		return nil
	}

	endFn, err := sqlitex.ImmediateTransaction(w.conn)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer endFn(&err)

	stmt := w.conn.Prep(insertQuery)
	for _, record := range records {
		stmt.BindInt64(1, record.Sequence)
		stmt.BindText(2, record.User)
		stmt.BindText(3, record.Activity)
		stmt.BindText(4, record.Timestamp.UTC().Format(time.RFC3339Nano))

		if _, err = stmt.Step(); err != nil {
			_ = stmt.Reset()
			return fmt.Errorf("failed to insert record: %w", err)
		}
		if err = stmt.Reset(); err != nil {
			return fmt.Errorf("failed to reset statement: %w", err)
		}
	}

	return nil
}

// Close implements types.Writer.
func (w *Writer) Close() error {
	return w.conn.Close()
}
