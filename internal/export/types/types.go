package types

import "time"

// ExportRecord is one audit log entry as written to an export file.
// User holds the user ID, hashed when the export is pseudonymized.
type ExportRecord struct {
	Sequence  int64
	User      string
	Activity  string
	Timestamp time.Time
}

// Writer appends records to an export file.
type Writer interface {
	// Write appends a batch of records.
	Write(records []*ExportRecord) error
	// Close flushes pending data and releases the file.
	Close() error
}
