// Package domain normalizes NOAA Storm Prediction Center (SPC) daily storm
// report rows into a single canonical schema.
//
// # Data Source
//
// Storm reports originate from the SPC daily CSV files, available at
// https://www.spc.noaa.gov/climo/reports/. One file is published per report
// category and day, named "<YYMMDD>_rpts_<hail|torn|wind>.csv". Days without
// reports for a category are stored locally as header-only placeholders.
//
// # SPC Data Conventions
//
// Columns (the third column varies by category):
//
//	hail: Time, Size,    Location, County, State, Lat, Lon, Comments
//	torn: Time, F_Scale, Location, County, State, Lat, Lon, Comments
//	wind: Time, Speed,   Location, County, State, Lat, Lon, Comments
//
// The header line is not reliable: some files omit it, some carry different
// names. See the csvfile adapter for how the loader reconciles this.
//
// Time format:
//
//	HHMM in 24-hour notation, already in UTC, e.g. "1510" = 15:10 UTC.
//	Leading zeros are frequently dropped: "945" = 09:45.
//	The date portion comes from the filename token. Combined to produce
//	an instant formatted as "2006-01-02T15:04:05Z". Unparseable clock values
//	leave the timestamp absent but keep the row.
//
// State:
//
//	Two-letter postal code. Rows with anything else (including codes with
//	trailing whitespace) are dropped, never repaired.
//
// Coordinates:
//
//	Decimal degrees. Rows with a non-numeric coordinate or one outside the
//	configured region expanded by the margin are dropped, never clamped.
//
// # Row Keys
//
// Row keys are deterministic SHA-256 hashes of date|type|state|lat|lon|time.
// They let downstream consumers upsert idempotently. See [RowKey].
package domain
