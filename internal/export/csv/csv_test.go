package csv_test

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	exportCSV "github.com/robalyx/guardian/internal/export/csv"
	"github.com/robalyx/guardian/internal/export/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readCSVFile returns every row of a csv file.
func readCSVFile(t *testing.T, path string) [][]string {
	t.Helper()

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var rows [][]string
	reader := csv.NewReader(file)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		rows = append(rows, row)
	}
	return rows
}

func TestWriter(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 3, 1, 12, 0, 0, 500, time.UTC)

	tests := []struct {
		name    string
		batches [][]*types.ExportRecord
		want    [][]string
	}{
		{
			name: "multiple batches",
			batches: [][]*types.ExportRecord{
				{{Sequence: 1, User: "42", Activity: "Flagged", Timestamp: ts}},
				{{Sequence: 2, User: "42", Activity: "Banned", Timestamp: ts}},
			},
			want: [][]string{
				exportCSV.Header,
				{"1", "42", "Flagged", "2025-03-01T12:00:00.0000005Z"},
				{"2", "42", "Banned", "2025-03-01T12:00:00.0000005Z"},
			},
		},
		{
			name:    "no records",
			batches: nil,
			want:    [][]string{exportCSV.Header},
		},
		{
			name: "values needing quotes",
			batches: [][]*types.ExportRecord{
				{{Sequence: 3, User: `a,"b"`, Activity: "Flagged", Timestamp: ts}},
			},
			want: [][]string{
				exportCSV.Header,
				{"3", `a,"b"`, "Flagged", "2025-03-01T12:00:00.0000005Z"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()

			w, err := exportCSV.New(dir)
			require.NoError(t, err)
			for _, batch := range tt.batches {
				require.NoError(t, w.Write(batch))
			}
			require.NoError(t, w.Close())

			assert.Equal(t, tt.want, readCSVFile(t, filepath.Join(dir, exportCSV.FileName)))
		})
	}
}

func TestWriterReplacesExistingFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, exportCSV.FileName)
	require.NoError(t, os.WriteFile(path, []byte("stale,data\n"), 0o600))

	w, err := exportCSV.New(dir)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, [][]string{exportCSV.Header}, readCSVFile(t, path))
}

func TestNewFailsOnMissingDirectory(t *testing.T) {
	t.Parallel()

	_, err := exportCSV.New(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
