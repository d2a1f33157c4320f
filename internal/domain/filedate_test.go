package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFileDate(t *testing.T) {
	tests := []struct {
		name     string
		baseName string
		expected string
	}{
		{"hail file", "230601_rpts_hail", "2023-06-01"},
		{"tornado file", "110520_rpts_torn", "2011-05-20"},
		{"combined report", "240426_rpts", "2024-04-26"},
		{"bare token", "040401", "2004-04-01"},
		{"leap day", "240229_rpts_wind", "2024-02-29"},
		{"impossible month kept", "231301_rpts_hail", "2023-13-01"},
		{"impossible day kept", "230231_rpts_hail", "2023-02-31"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			date, err := ParseFileDate(tt.baseName)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, date)
		})
	}
}

func TestParseFileDate_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		baseName string
	}{
		{"empty", ""},
		{"leading underscore", "_230601_rpts_hail"},
		{"too short", "23061_rpts_hail"},
		{"too long", "2306011_rpts_hail"},
		{"four digit year", "20230601_rpts_hail"},
		{"non digit", "23o601_rpts_hail"},
		{"unicode digit", "23٠601_rpts"},
		{"no token", "rpts_hail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFileDate(tt.baseName)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedDateToken)
		})
	}
}

func TestFileDateFromPath(t *testing.T) {
	date, err := FileDateFromPath("/data/raw/storm_report_data/hail/230601_rpts_hail.csv")
	require.NoError(t, err)
	assert.Equal(t, "2023-06-01", date)

	_, err = FileDateFromPath("/data/raw/storm_report_data/hail/README.md")
	assert.ErrorIs(t, err, ErrMalformedDateToken)
}

func TestFileDateToken(t *testing.T) {
	assert.Equal(t, "040401", FileDateToken(time.Date(2004, time.April, 1, 23, 0, 0, 0, time.UTC)))

	date, err := ParseFileDate(FileDateToken(time.Date(2019, time.December, 31, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, "2019-12-31", date)
}
