package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-data-aggregator/internal/adapter/parquet"
	"github.com/couchcryptid/storm-data-aggregator/internal/domain"
)

func ptr(s string) *string { return &s }

func goodRows() []domain.CanonicalRow {
	return []domain.CanonicalRow{
		{Date: "2023-06-01", Time: "1530", Type: domain.Hail, Location: "X", County: "Y", State: "OK", Latitude: 35.5, Longitude: -97.5, UTCTimestamp: ptr("2023-06-01T15:30:00Z")},
		{Date: "2023-06-01", Time: "945", Type: domain.Wind, Location: "A", County: "B", State: "KS", Latitude: 38.0, Longitude: -98.0, UTCTimestamp: ptr("2023-06-01T09:45:00Z")},
		{Date: "2023-06-01", Time: "abcd", Type: domain.Tornado, Location: "C", County: "D", State: "TX", Latitude: 31.0, Longitude: -98.4},
	}
}

func TestPhases_PassOnValidRows(t *testing.T) {
	rows := goodRows()
	settings := domain.DefaultSettings()

	for _, p := range []*phase{
		validateSchema(rows),
		validateStates(rows),
		validateCoordinates(rows, settings),
		validateTimestamps(rows),
		validateOrder(rows),
		validateSourceParity(rows, goodRows()),
	} {
		assert.True(t, p.passed(), "%s: %v", p.name, p.errors)
	}
}

func TestPhases_ImpossibleFileDate(t *testing.T) {
	rows := []domain.CanonicalRow{
		{Date: "2023-13-01", Time: "1530", Type: domain.Hail, State: "OK", Latitude: 35.5, Longitude: -97.5},
	}
	assert.True(t, validateSchema(rows).passed())
	assert.True(t, validateTimestamps(rows).passed())
}

func TestPhases_DetectProblems(t *testing.T) {
	tests := []struct {
		name  string
		mut   func([]domain.CanonicalRow)
		check func([]domain.CanonicalRow) *phase
	}{
		{"unknown type", func(r []domain.CanonicalRow) { r[0].Type = "tornado" }, validateSchema},
		{"bad date", func(r []domain.CanonicalRow) { r[0].Date = "06/01/2023" }, validateSchema},
		{"long state", func(r []domain.CanonicalRow) { r[1].State = "KAN" }, validateStates},
		{"latitude out of bounds", func(r []domain.CanonicalRow) { r[1].Latitude = 70 }, func(r []domain.CanonicalRow) *phase {
			return validateCoordinates(r, domain.DefaultSettings())
		}},
		{"nan longitude", func(r []domain.CanonicalRow) { r[1].Longitude = math.NaN() }, func(r []domain.CanonicalRow) *phase {
			return validateCoordinates(r, domain.DefaultSettings())
		}},
		{"wrong timestamp", func(r []domain.CanonicalRow) { r[0].UTCTimestamp = ptr("2023-06-01T15:31:00Z") }, validateTimestamps},
		{"missing timestamp", func(r []domain.CanonicalRow) { r[1].UTCTimestamp = nil }, validateTimestamps},
		{"unexpected timestamp", func(r []domain.CanonicalRow) { r[2].UTCTimestamp = ptr("2023-06-01T00:00:00Z") }, validateTimestamps},
		{"ascending", func(r []domain.CanonicalRow) { r[0], r[1] = r[1], r[0] }, validateOrder},
		{"missing before present", func(r []domain.CanonicalRow) { r[1], r[2] = r[2], r[1] }, validateOrder},
		{"source mismatch", func(r []domain.CanonicalRow) { r[2].State = "OK" }, func(r []domain.CanonicalRow) *phase {
			return validateSourceParity(r, goodRows())
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := goodRows()
			tt.mut(rows)
			assert.False(t, tt.check(rows).passed())
		})
	}
}

func TestPhase_CapsErrors(t *testing.T) {
	p := &phase{name: "test"}
	for i := 0; i < maxErrorsPerPhase+5; i++ {
		p.errorf("error %d", i)
	}
	assert.Len(t, p.errors, maxErrorsPerPhase)
	assert.Equal(t, 5, p.dropped)
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "raw")
	require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "hail"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "hail", "230601_rpts_hail.csv"),
		[]byte("Time,Size,Location,County,State,Lat,Lon,Comments\n1530,100,X,Y,OK,35.5,-97.5,c\n"), 0o600))

	path := filepath.Join(dir, "storm_reports.parquet")
	w := parquet.NewWriter(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, w.LoadBatch(context.Background(), goodRows()[:1]))

	var out bytes.Buffer
	code := run(context.Background(), domain.DefaultSettings(), path, srcDir, &out)
	assert.Equal(t, 0, code, out.String())
	assert.Contains(t, out.String(), "All validations passed.")

	out.Reset()
	require.NoError(t, w.LoadBatch(context.Background(), goodRows()))
	code = run(context.Background(), domain.DefaultSettings(), path, srcDir, &out)
	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "Phase 6")
	assert.Contains(t, out.String(), "Validation FAILED.")
}

func TestRun_MissingFile(t *testing.T) {
	var out bytes.Buffer
	code := run(context.Background(), domain.DefaultSettings(), filepath.Join(t.TempDir(), "nope.parquet"), "", &out)
	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "FATAL")
}
