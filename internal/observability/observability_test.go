package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, levelFromString(tt.in))
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "info", "json")

	logger.Debug("hidden")
	logger.Info("run complete", "rows", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "run complete", entry["msg"])
	assert.InDelta(t, 3, entry["rows"], 0)
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "debug", "text").Debug("file skipped", "reason", "malformed_date")

	assert.Contains(t, buf.String(), "msg=\"file skipped\"")
	assert.Contains(t, buf.String(), "reason=malformed_date")
}

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.RowsDropped.WithLabelValues("invalid_state").Add(2)

	assert.InDelta(t, 2, testutil.ToFloat64(a.RowsDropped.WithLabelValues("invalid_state")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(b.RowsDropped.WithLabelValues("invalid_state")), 0)
}

func TestFetchCounts(t *testing.T) {
	m := NewUnregisteredMetrics()
	m.FetchRequests.WithLabelValues("page", "success").Inc()
	m.FetchRequests.WithLabelValues("csv", "retry").Add(2)
	m.FetchRequests.WithLabelValues("csv", "success").Inc()

	counts, err := m.FetchCounts()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"page_success": 1, "csv_retry": 2, "csv_success": 1}, counts)

	// Reading twice must not fail on re-registration.
	_, err = m.FetchCounts()
	require.NoError(t, err)
}

func TestFetchCounts_Empty(t *testing.T) {
	counts, err := NewUnregisteredMetrics().FetchCounts()
	require.NoError(t, err)
	assert.Empty(t, counts)
}
