package domain

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
)

// RawRow is one observation as read from a source file, keyed by the
// category's raw column names.
type RawRow struct {
	Line   int
	Values map[string]string
}

// Get returns the value of a raw column, or "" when absent.
func (r RawRow) Get(column string) string {
	return r.Values[column]
}

// CanonicalRow is a validated report in the unified schema.
type CanonicalRow struct {
	Date      string   `json:"date"`
	Time      string   `json:"time"`
	Type      Category `json:"type"`
	Location  string   `json:"location"`
	County    string   `json:"county"`
	State     string   `json:"state"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`

	// UTCTimestamp is nil when the time token could not be parsed.
	UTCTimestamp *string `json:"utc_timestamp"`
}

// Batch is the normalized output of one source file.
type Batch struct {
	Rows              []CanonicalRow
	Drops             DropStats
	TimestampFailures int
}

// Normalize validates raw rows from one file and attaches a UTC timestamp to
// every survivor. Rows with an unparseable time are kept with a nil timestamp.
func (s Settings) Normalize(rows []RawRow, date string, category Category) Batch {
	valid, drops := s.Validate(rows, date, category)

	b := Batch{Rows: make([]CanonicalRow, 0, len(valid)), Drops: drops}
	for _, row := range valid {
		if ts, ok := SynthesizeTimestamp(row.Date, row.Time); ok {
			row.UTCTimestamp = &ts
		} else {
			b.TimestampFailures++
		}
		b.Rows = append(b.Rows, row)
	}
	return b
}

// SortByTimestampDesc orders rows by utc_timestamp, newest first. Rows without
// a timestamp sort last. The sort is stable, so equal timestamps keep their
// incoming order.
func SortByTimestampDesc(rows []CanonicalRow) {
	slices.SortStableFunc(rows, func(a, b CanonicalRow) int {
		return compareTimestamps(b.UTCTimestamp, a.UTCTimestamp)
	})
}

// compareTimestamps treats a nil timestamp as smaller than any value.
func compareTimestamps(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return cmp.Compare(*a, *b)
	}
}

// RowKey produces a deterministic key from a row's identifying fields.
// Re-aggregating the same source data always yields the same keys.
func RowKey(row CanonicalRow) string {
	input := fmt.Sprintf("%s|%s|%s|%.4f|%.4f|%s", row.Date, row.Type, row.State, row.Latitude, row.Longitude, row.Time)
	hash := sha256.Sum256([]byte(input))
	short := hex.EncodeToString(hash[:8])
	if row.Type == "" {
		return short
	}
	return string(row.Type) + "-" + short
}
