package export_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	dbTypes "github.com/robalyx/guardian/internal/database/types"
	"github.com/robalyx/guardian/internal/database/types/enum"
	"github.com/robalyx/guardian/internal/export"
	exportCSV "github.com/robalyx/guardian/internal/export/csv"
	exportSQLite "github.com/robalyx/guardian/internal/export/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	logs []*dbTypes.AuditLog
	err  error
}

func (f *fakeSource) GetAllLogs(_ context.Context, batchSize int, fn func([]*dbTypes.AuditLog) error) error {
	for i := 0; i < len(f.logs); i += batchSize {
		if err := fn(f.logs[i:min(i+batchSize, len(f.logs))]); err != nil {
			return err
		}
	}
	return f.err
}

func sampleLogs() []*dbTypes.AuditLog {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return []*dbTypes.AuditLog{
		{Sequence: 1, UserID: 12345, ActivityType: enum.ActivityTypeFlagged, ActivityTimestamp: ts},
		{Sequence: 2, UserID: 7, ActivityType: enum.ActivityTypeFlagged, ActivityTimestamp: ts.Add(time.Second)},
		{Sequence: 3, UserID: 12345, ActivityType: enum.ActivityTypeBanned, ActivityTimestamp: ts.Add(2 * time.Second)},
	}
}

func TestExporterRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := &export.Config{
		ExportVersion: "test",
		Salt:          "test_salt",
		HashType:      string(export.HashTypeSHA256),
		Iterations:    1,
		Concurrency:   2,
		BatchSize:     2,
	}

	summary, err := export.New(&fakeSource{logs: sampleLogs()}, dir, cfg, nil, zap.NewNop()).Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Records)
	assert.Equal(t, 2, summary.Users)

	// Every format is written
	for _, name := range []string{exportCSV.FileName, exportSQLite.FileName, export.ConfigFileName} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
	}

	// User IDs are pseudonymized
	data, err := os.ReadFile(filepath.Join(dir, exportCSV.FileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "ce3807a728757fad6c9eb6f3934c71363857bca5f8f9d7a67452543acf47ac42")
	assert.NotContains(t, string(data), ",12345,")
	assert.Contains(t, string(data), "Banned")

	// Metadata records the engine version
	var meta map[string]any
	raw, err := os.ReadFile(filepath.Join(dir, export.ConfigFileName))
	require.NoError(t, err)
	require.NoError(t, sonic.Unmarshal(raw, &meta))
	assert.Equal(t, export.EngineVersion, meta["engineVersion"])
	assert.Equal(t, "sha256", meta["hashType"])
}

func TestExporterRunPlainIDs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := &export.Config{ExportVersion: "test"}

	_, err := export.New(&fakeSource{logs: sampleLogs()}, dir, cfg, []export.Format{export.FormatCSV}, zap.NewNop()).
		Run(t.Context())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, exportCSV.FileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), ",12345,")

	_, err = os.Stat(filepath.Join(dir, exportSQLite.FileName))
	assert.True(t, os.IsNotExist(err))
}

func TestExporterRunErrors(t *testing.T) {
	t.Parallel()

	t.Run("bad hash type", func(t *testing.T) {
		t.Parallel()

		cfg := &export.Config{HashType: "md5"}
		_, err := export.New(&fakeSource{}, t.TempDir(), cfg, nil, zap.NewNop()).Run(t.Context())
		require.ErrorIs(t, err, export.ErrUnsupportedHashType)
	})

	t.Run("source failure", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("connection lost")
		_, err := export.New(&fakeSource{logs: sampleLogs(), err: boom}, t.TempDir(), &export.Config{}, nil, zap.NewNop()).
			Run(t.Context())
		require.ErrorIs(t, err, boom)
	})
}

func TestParseFormats(t *testing.T) {
	t.Parallel()

	formats, err := export.ParseFormats([]string{"csv", "sqlite"})
	require.NoError(t, err)
	assert.Equal(t, []export.Format{export.FormatCSV, export.FormatSQLite}, formats)

	_, err = export.ParseFormats([]string{"binary"})
	require.ErrorIs(t, err, export.ErrUnsupportedFormat)
}
