// Package export writes the audit log to portable files, optionally
// pseudonymizing user IDs with a salted hash.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/bytedance/sonic"
	dbTypes "github.com/robalyx/guardian/internal/database/types"
	"github.com/robalyx/guardian/internal/export/csv"
	"github.com/robalyx/guardian/internal/export/sqlite"
	"github.com/robalyx/guardian/internal/export/types"
	"go.uber.org/zap"
)

var (
	ErrUnsupportedFormat   = errors.New("unsupported export format")
	ErrUnsupportedHashType = errors.New("unsupported hash type")
)

// Format represents a supported export format.
type Format string

const (
	FormatSQLite Format = "sqlite"
	FormatCSV    Format = "csv"
)

// Formats lists every supported export format.
var Formats = []Format{FormatSQLite, FormatCSV}

const (
	// EngineVersion represents the version of the export engine.
	// This should be updated when making breaking changes to the export format.
	EngineVersion = "1.0.0"

	// ConfigFileName is the name of the metadata file written next to the exports.
	ConfigFileName = "export_config.json"

	// DefaultBatchSize is the number of audit log entries read per query.
	DefaultBatchSize = 1000
)

// Config holds the configuration for exports.
type Config struct {
	ExportVersion string `json:"exportVersion"`
	Salt          string `json:"salt,omitempty"`
	Description   string `json:"description"`
	HashType      string `json:"hashType"`
	Iterations    uint32 `json:"iterations,omitempty"`
	Memory        uint32 `json:"memory,omitempty"`
	Concurrency   int    `json:"-"`
	BatchSize     int    `json:"-"`
}

// LogSource streams the audit log in chronological order.
type LogSource interface {
	GetAllLogs(ctx context.Context, batchSize int, fn func([]*dbTypes.AuditLog) error) error
}

// Summary describes a finished export.
type Summary struct {
	Records  int
	Users    int
	Duration time.Duration
}

// Exporter exports the audit log in one or more formats.
type Exporter struct {
	source  LogSource
	outDir  string
	config  *Config
	formats []Format
	logger  *zap.Logger
}

// New creates a new exporter instance. An empty formats list exports every format.
func New(source LogSource, outDir string, config *Config, formats []Format, logger *zap.Logger) *Exporter {
	if len(formats) == 0 {
		formats = Formats
	}
	if config.HashType == "" {
		config.HashType = string(HashTypeNone)
	}
	if config.BatchSize < 1 {
		config.BatchSize = DefaultBatchSize
	}

	return &Exporter{
		source:  source,
		outDir:  outDir,
		config:  config,
		formats: formats,
		logger:  logger.Named("export"),
	}
}

// Run streams every audit log entry into each configured format.
func (e *Exporter) Run(ctx context.Context) (*Summary, error) {
	if !HashType(e.config.HashType).Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedHashType, e.config.HashType)
	}

	start := time.Now()

	e.logger.Info("Starting export",
		zap.String("outDir", e.outDir),
		zap.String("hashType", e.config.HashType),
		zap.Int("concurrency", e.config.Concurrency),
		zap.Any("formats", e.formats),
		zap.String("exportVersion", e.config.ExportVersion),
		zap.String("engineVersion", EngineVersion))

	if err := os.MkdirAll(e.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := e.writeConfig(); err != nil {
		return nil, err
	}

	// Open a writer per format
	writers, err := e.openWriters()
	if err != nil {
		return nil, err
	}

	// Stream batches through the hasher into every writer
	hasher := NewHasher(e.config)
	records := 0

	err = e.source.GetAllLogs(ctx, e.config.BatchSize, func(logs []*dbTypes.AuditLog) error {
		batch := e.convert(logs, hasher)
		for i, w := range writers {
			if err := w.Write(batch); err != nil {
				return fmt.Errorf("failed to write %s batch: %w", e.formats[i], err)
			}
		}

		records += len(batch)
		e.logger.Debug("Exported batch",
			zap.Int("size", len(batch)),
			zap.Int("total", records))

		return nil
	})

	// Writers are closed even when streaming failed
	closeErr := closeAll(writers)
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		return nil, closeErr
	}

	summary := &Summary{
		Records:  records,
		Users:    hasher.Count(),
		Duration: time.Since(start),
	}

	e.logger.Info("Export completed",
		zap.Int("records", summary.Records),
		zap.Int("users", summary.Users),
		zap.Duration("duration", summary.Duration))

	return summary, nil
}

// convert maps audit log rows to export records.
func (e *Exporter) convert(logs []*dbTypes.AuditLog, hasher *Hasher) []*types.ExportRecord {
	ids := make([]int64, 0, len(logs))
	for _, log := range logs {
		ids = append(ids, log.UserID)
	}
	slices.Sort(ids)
	hashes := hasher.HashAll(slices.Compact(ids))

	records := make([]*types.ExportRecord, len(logs))
	for i, log := range logs {
		records[i] = &types.ExportRecord{
			Sequence:  log.Sequence,
			User:      hashes[log.UserID],
			Activity:  log.ActivityType.String(),
			Timestamp: log.ActivityTimestamp,
		}
	}

	return records
}

// writeConfig saves the export metadata next to the export files.
func (e *Exporter) writeConfig() error {
	jsonConfig := struct {
		*Config

		EngineVersion string   `json:"engineVersion"`
		Formats       []Format `json:"formats"`
	}{
		Config:        e.config,
		EngineVersion: EngineVersion,
		Formats:       e.formats,
	}

	data, err := sonic.MarshalIndent(jsonConfig, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal export config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(e.outDir, ConfigFileName), data, 0o600); err != nil {
		return fmt.Errorf("failed to write export config: %w", err)
	}

	return nil
}

// openWriters creates a writer for each configured format.
func (e *Exporter) openWriters() ([]types.Writer, error) {
	writers := make([]types.Writer, 0, len(e.formats))

	for _, format := range e.formats {
		var (
			w   types.Writer
			err error
		)

		switch format {
		case FormatSQLite:
			w, err = sqlite.New(e.outDir)
		case FormatCSV:
			w, err = csv.New(e.outDir)
		default:
			err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
		}

		if err != nil {
			_ = closeAll(writers)
			return nil, err
		}
		writers = append(writers, w)
	}

	return writers, nil
}

func closeAll(writers []types.Writer) error {
	var errs []error
	for _, w := range writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ParseFormats converts format names into Formats.
func ParseFormats(names []string) ([]Format, error) {
	formats := make([]Format, 0, len(names))
	for _, name := range names {
		format := Format(name)
		if !slices.Contains(Formats, format) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
		}
		formats = append(formats, format)
	}
	return formats, nil
}
