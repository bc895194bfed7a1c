package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/robalyx/guardian/internal/export/types"
)

// FileName is the name of the csv export file.
const FileName = "audit_logs.csv"

// Header is the first row of the csv export file.
var Header = []string{"sequence", "user", "activity", "timestamp"}

// Writer streams audit log records to a csv file.
type Writer struct {
	file   *os.File
	writer *csv.Writer
}

// New creates the csv file in outDir, replacing any previous export, and writes the header.
func New(outDir string) (*Writer, error) {
	path := filepath.Join(outDir, FileName)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove existing file %s: %w", FileName, err)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create csv file: %w", err)
	}

	w := &Writer{file: file, writer: csv.NewWriter(file)}
	if err := w.writer.Write(Header); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	return w, nil
}

// Write implements types.Writer.
func (w *Writer) Write(records []*types.ExportRecord) error {
	for _, record := range records {
		if err := w.writer.Write([]string{
			strconv.FormatInt(record.Sequence, 10),
			record.User,
			record.Activity,
			record.Timestamp.UTC().Format(time.RFC3339Nano),
		}); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	return nil
}

// Close implements types.Writer.
func (w *Writer) Close() error {
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("failed to flush csv file: %w", err)
	}
	return w.file.Close()
}
