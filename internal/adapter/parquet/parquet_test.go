package parquet

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-data-aggregator/internal/domain"
)

func ptr(s string) *string { return &s }

func sampleRows() []domain.CanonicalRow {
	return []domain.CanonicalRow{
		{Date: "2023-06-01", Time: "2000", Type: domain.Wind, Location: "2 N Hays", County: "Ellis", State: "KS", Latitude: 38.9, Longitude: -99.3, UTCTimestamp: ptr("2023-06-01T20:00:00Z")},
		{Date: "2023-06-01", Time: "1530", Type: domain.Hail, Location: "X", County: "Y", State: "OK", Latitude: 35.5, Longitude: -97.5, UTCTimestamp: ptr("2023-06-01T15:30:00Z")},
		{Date: "2023-06-01", Time: "UNK", Type: domain.Tornado, Location: "Z", County: "W", State: "TX", Latitude: 31.0, Longitude: -98.4},
	}
}

func TestWriter_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed", "storm_reports.parquet")
	w := NewWriter(path, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, w.LoadBatch(context.Background(), sampleRows()))

	got, err := ReadFile(path)
	require.NoError(t, err)
	if diff := cmp.Diff(sampleRows(), got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestWriter_Replaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storm_reports.parquet")
	w := NewWriter(path, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, w.LoadBatch(context.Background(), sampleRows()))
	require.NoError(t, w.LoadBatch(context.Background(), sampleRows()[:1]))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestWriter_Cancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storm_reports.parquet")
	w := NewWriter(path, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, w.LoadBatch(ctx, sampleRows()), context.Canceled)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.parquet"))
	require.Error(t, err)
}
