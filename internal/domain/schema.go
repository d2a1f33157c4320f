package domain

import (
	"fmt"
	"slices"
)

// Canonical output column names.
const (
	FieldDate         = "date"
	FieldTime         = "time"
	FieldType         = "type"
	FieldLocation     = "location"
	FieldCounty       = "county"
	FieldState        = "state"
	FieldLatitude     = "latitude"
	FieldLongitude    = "longitude"
	FieldUTCTimestamp = "utc_timestamp"
)

var canonicalColumns = []string{
	FieldDate, FieldTime, FieldType, FieldLocation, FieldCounty, FieldState, FieldLatitude, FieldLongitude,
}

// sourcedFields are the canonical fields copied from a raw column. Date and
// type are derived from the file instead.
var sourcedFields = []string{
	FieldTime, FieldLocation, FieldCounty, FieldState, FieldLatitude, FieldLongitude,
}

// CanonicalColumns returns the unified column layout every category is
// normalized into.
func CanonicalColumns() []string {
	return slices.Clone(canonicalColumns)
}

// OutputColumns returns the persisted layout: the canonical columns plus utc_timestamp.
func OutputColumns() []string {
	return append(CanonicalColumns(), FieldUTCTimestamp)
}

// Registry maps each category to its raw column layout and each sourced
// canonical field to the raw column it is read from. A Registry is immutable
// once built.
type Registry struct {
	raw    map[Category][]string
	fields map[string]string
}

// DefaultRegistry returns the SPC column layouts.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultRawColumns(), DefaultFieldColumns())
	if err != nil {
		panic(err)
	}
	return r
}

// DefaultRawColumns returns the SPC raw column layout for every category.
func DefaultRawColumns() map[Category][]string {
	return map[Category][]string{
		Hail:    {"Time", "Size", "Location", "County", "State", "Lat", "Lon", "Comments"},
		Tornado: {"Time", "F_Scale", "Location", "County", "State", "Lat", "Lon", "Comments"},
		Wind:    {"Time", "Speed", "Location", "County", "State", "Lat", "Lon", "Comments"},
	}
}

// DefaultFieldColumns returns the SPC raw column name for each sourced canonical field.
func DefaultFieldColumns() map[string]string {
	return map[string]string{
		FieldTime:      "Time",
		FieldLocation:  "Location",
		FieldCounty:    "County",
		FieldState:     "State",
		FieldLatitude:  "Lat",
		FieldLongitude: "Lon",
	}
}

// NewRegistry validates and copies the given layouts. Every category must be
// present, and every sourced field must name a column that exists in every
// category's layout.
func NewRegistry(raw map[Category][]string, fields map[string]string) (*Registry, error) {
	r := &Registry{
		raw:    make(map[Category][]string, len(Categories)),
		fields: make(map[string]string, len(sourcedFields)),
	}

	for c, cols := range raw {
		if _, err := ParseCategory(string(c)); err != nil {
			return nil, err
		}
		if len(cols) == 0 {
			return nil, fmt.Errorf("category %s: no columns", c)
		}
		r.raw[c] = slices.Clone(cols)
	}
	for _, c := range Categories {
		if _, ok := r.raw[c]; !ok {
			return nil, fmt.Errorf("category %s: no columns", c)
		}
	}

	for field, col := range fields {
		if !slices.Contains(sourcedFields, field) {
			return nil, fmt.Errorf("unknown canonical field %q", field)
		}
		r.fields[field] = col
	}
	for _, field := range sourcedFields {
		col, ok := r.fields[field]
		if !ok || col == "" {
			return nil, fmt.Errorf("canonical field %q has no source column", field)
		}
		for _, c := range Categories {
			if !slices.Contains(r.raw[c], col) {
				return nil, fmt.Errorf("category %s: missing column %q for field %q", c, col, field)
			}
		}
	}

	return r, nil
}

// RawColumns returns the ordered raw column names expected in files of the
// given category.
func (r *Registry) RawColumns(c Category) ([]string, error) {
	cols, ok := r.raw[c]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, c)
	}
	return slices.Clone(cols), nil
}

// SourceColumn returns the raw column a canonical field is read from, or ""
// for derived fields.
func (r *Registry) SourceColumn(field string) string {
	return r.fields[field]
}
