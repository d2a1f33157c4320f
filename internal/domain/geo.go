package domain

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Bounds is a latitude/longitude rectangle in decimal degrees.
type Bounds struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// ContinentalUS is the default region reports are checked against.
var ContinentalUS = Bounds{MinLat: 24.0, MaxLat: 50.0, MinLon: -126.0, MaxLon: -65.5}

// DefaultMargin widens the region on every side to tolerate near-border reports.
const DefaultMargin = 10.0

// Expand grows the rectangle by margin degrees on every side.
func (b Bounds) Expand(margin float64) Bounds {
	return Bounds{
		MinLat: b.MinLat - margin,
		MaxLat: b.MaxLat + margin,
		MinLon: b.MinLon - margin,
		MaxLon: b.MaxLon + margin,
	}
}

// Contains reports whether the point lies inside the rectangle, edges included.
func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// Settings is the immutable configuration the normalization stages run with.
type Settings struct {
	Registry *Registry
	Region   Bounds
	Margin   float64
}

// DefaultSettings returns the SPC schemas with the continental US region.
func DefaultSettings() Settings {
	return Settings{Registry: DefaultRegistry(), Region: ContinentalUS, Margin: DefaultMargin}
}

// DropReason names the check that excluded a row.
type DropReason string

const (
	DropInvalidState      DropReason = "invalid_state"
	DropMissingCoordinate DropReason = "missing_coordinate"
	DropOutOfBounds       DropReason = "coordinate_out_of_bounds"
)

// DropReasons lists reasons in the order checks are applied.
var DropReasons = []DropReason{DropInvalidState, DropMissingCoordinate, DropOutOfBounds}

// DropStats counts excluded rows per reason.
type DropStats map[DropReason]int

// Total is the number of dropped rows across all reasons.
func (d DropStats) Total() int {
	n := 0
	for _, v := range d {
		n += v
	}
	return n
}

// Add accumulates other into d.
func (d DropStats) Add(other DropStats) {
	for k, v := range other {
		d[k] += v
	}
}

// candidate is a row under validation. hasCoords is false when either
// coordinate failed numeric coercion.
type candidate struct {
	row       CanonicalRow
	hasCoords bool
}

type rowCheck struct {
	reason DropReason
	keep   func(candidate) bool
}

// checks returns the row predicates in application order. The first failing
// predicate decides the drop reason.
func (s Settings) checks() []rowCheck {
	box := s.Region.Expand(s.Margin)
	return []rowCheck{
		{DropInvalidState, func(c candidate) bool { return utf8.RuneCountInString(c.row.State) == 2 }},
		{DropMissingCoordinate, func(c candidate) bool { return c.hasCoords }},
		{DropOutOfBounds, func(c candidate) bool { return box.Contains(c.row.Latitude, c.row.Longitude) }},
	}
}

// Validate converts raw rows of one file into canonical rows, dropping rows
// with a state that is not exactly two characters or coordinates that are
// missing, non-numeric, or outside the region plus margin. Surviving rows are
// otherwise unchanged and carry no timestamp yet.
func (s Settings) Validate(rows []RawRow, date string, category Category) ([]CanonicalRow, DropStats) {
	checks := s.checks()
	drops := DropStats{}
	out := make([]CanonicalRow, 0, len(rows))

	for _, raw := range rows {
		c := s.candidate(raw, date, category)

		kept := true
		for _, chk := range checks {
			if !chk.keep(c) {
				drops[chk.reason]++
				kept = false
				break
			}
		}
		if kept {
			out = append(out, c.row)
		}
	}
	return out, drops
}

func (s Settings) candidate(raw RawRow, date string, category Category) candidate {
	get := func(field string) string { return raw.Get(s.Registry.SourceColumn(field)) }

	lat, latOK := parseCoordinate(get(FieldLatitude))
	lon, lonOK := parseCoordinate(get(FieldLongitude))

	return candidate{
		row: CanonicalRow{
			Date:      date,
			Time:      get(FieldTime),
			Type:      category,
			Location:  get(FieldLocation),
			County:    get(FieldCounty),
			State:     get(FieldState),
			Latitude:  lat,
			Longitude: lon,
		},
		hasCoords: latOK && lonOK,
	}
}

// parseCoordinate coerces a decimal coordinate to float64. Empty, non-numeric,
// hexadecimal and NaN values report false.
func parseCoordinate(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	digits := strings.TrimLeft(s, "+-")
	if len(digits) > 1 && digits[0] == '0' && (digits[1] == 'x' || digits[1] == 'X') {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
