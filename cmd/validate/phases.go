package main

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/couchcryptid/storm-data-aggregator/internal/domain"
)

// maxErrorsPerPhase keeps reports on badly broken files readable.
const maxErrorsPerPhase = 50

// phase tracks pass/fail for a validation phase.
type phase struct {
	name    string
	errors  []string
	dropped int
}

func (p *phase) errorf(format string, args ...any) {
	if len(p.errors) >= maxErrorsPerPhase {
		p.dropped++
		return
	}
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// ── Phase 1: Schema ──

func validateSchema(rows []domain.CanonicalRow) *phase {
	p := &phase{name: "Phase 1: Schema (type, date)"}
	for i, r := range rows {
		if _, err := domain.ParseCategory(string(r.Type)); err != nil {
			p.errorf("row %d: type %q not in {hail, torn, wind}", i, r.Type)
		}
		if !isoDateShape(r.Date) {
			p.errorf("row %d: date %q is not YYYY-MM-DD", i, r.Date)
		}
	}
	return p
}

// isoDateShape checks the YYYY-MM-DD layout only. File date tokens are not
// range checked, so "2023-13-01" is a valid value here.
func isoDateShape(s string) bool {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if i == 4 || i == 7 {
			continue
		}
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ── Phase 2: State codes ──

func validateStates(rows []domain.CanonicalRow) *phase {
	p := &phase{name: "Phase 2: State codes"}
	for i, r := range rows {
		if utf8.RuneCountInString(r.State) != 2 {
			p.errorf("row %d: state %q is not 2 characters", i, r.State)
		}
	}
	return p
}

// ── Phase 3: Coordinates ──

func validateCoordinates(rows []domain.CanonicalRow, settings domain.Settings) *phase {
	p := &phase{name: "Phase 3: Coordinate bounds"}
	box := settings.Region.Expand(settings.Margin)
	for i, r := range rows {
		if math.IsNaN(r.Latitude) || math.IsNaN(r.Longitude) {
			p.errorf("row %d: coordinate is NaN", i)
			continue
		}
		if !box.Contains(r.Latitude, r.Longitude) {
			p.errorf("row %d: (%g, %g) outside [%g, %g] x [%g, %g]",
				i, r.Latitude, r.Longitude, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon)
		}
	}
	return p
}

// ── Phase 4: Timestamps ──
// Every timestamp must be exactly what date and time synthesize to, and a
// missing timestamp must mean the time token does not parse.

func validateTimestamps(rows []domain.CanonicalRow) *phase {
	p := &phase{name: "Phase 4: UTC timestamps"}
	for i, r := range rows {
		want, ok := domain.SynthesizeTimestamp(r.Date, r.Time)
		switch {
		case r.UTCTimestamp == nil && ok:
			p.errorf("row %d: timestamp missing but %s %q parses to %s", i, r.Date, r.Time, want)
		case r.UTCTimestamp != nil && !ok:
			p.errorf("row %d: timestamp %s present but time %q does not parse", i, *r.UTCTimestamp, r.Time)
		case r.UTCTimestamp != nil && *r.UTCTimestamp != want:
			p.errorf("row %d: timestamp %s, expected %s", i, *r.UTCTimestamp, want)
		}
	}
	return p
}

// ── Phase 5: Order ──

func validateOrder(rows []domain.CanonicalRow) *phase {
	p := &phase{name: "Phase 5: Order (newest first, missing last)"}
	for i := 1; i < len(rows); i++ {
		prev, cur := rows[i-1].UTCTimestamp, rows[i].UTCTimestamp
		switch {
		case prev == nil && cur != nil:
			p.errorf("row %d: timestamp %s after a row without timestamp", i, *cur)
		case prev != nil && cur != nil && *cur > *prev:
			p.errorf("row %d: timestamp %s after older %s", i, *cur, *prev)
		}
	}
	return p
}

// ── Phase 6: Source parity ──

func validateSourceParity(rows, expected []domain.CanonicalRow) *phase {
	p := &phase{name: "Phase 6: Source parity (re-aggregation)"}
	if len(rows) != len(expected) {
		p.errorf("row count: parquet has %d, source yields %d", len(rows), len(expected))
	}
	for i := 0; i < min(len(rows), len(expected)); i++ {
		if domain.RowKey(rows[i]) != domain.RowKey(expected[i]) {
			p.errorf("row %d: parquet %s, source %s", i, domain.RowKey(rows[i]), domain.RowKey(expected[i]))
		}
	}
	return p
}
