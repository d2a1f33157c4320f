// Package sqlite mirrors the aggregated report table into a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/storm-data-aggregator/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS storm_reports (
    position INTEGER PRIMARY KEY,
    row_key TEXT NOT NULL,
    date TEXT NOT NULL,
    time TEXT NOT NULL,
    type TEXT NOT NULL,
    location TEXT,
    county TEXT,
    state TEXT NOT NULL,
    latitude REAL NOT NULL,
    longitude REAL NOT NULL,
    utc_timestamp TEXT
);
CREATE INDEX IF NOT EXISTS idx_storm_reports_row_key ON storm_reports(row_key);
CREATE INDEX IF NOT EXISTS idx_storm_reports_utc ON storm_reports(utc_timestamp);
`

// Store replaces the storm_reports table with each batch. position keeps the
// output order.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := New(db, logger)
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing database handle.
func New(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Migrate creates the table and indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	return nil
}

// LoadBatch replaces every stored row with rows inside one transaction.
func (s *Store) LoadBatch(ctx context.Context, rows []domain.CanonicalRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM storm_reports`); err != nil {
		return fmt.Errorf("clear storm_reports: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO storm_reports (position, row_key, date, time, type, location, county, state, latitude, longitude, utc_timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range rows {
		var ts sql.NullString
		if r.UTCTimestamp != nil {
			ts = sql.NullString{String: *r.UTCTimestamp, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, i, domain.RowKey(r), r.Date, r.Time, string(r.Type),
			r.Location, r.County, r.State, r.Latitude, r.Longitude, ts); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Info("sqlite table replaced", "rows", len(rows))
	return nil
}

// Rows returns the stored rows in output order.
func (s *Store) Rows(ctx context.Context) ([]domain.CanonicalRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, time, type, location, county, state, latitude, longitude, utc_timestamp
		FROM storm_reports ORDER BY position
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CanonicalRow
	for rows.Next() {
		var (
			r   domain.CanonicalRow
			typ string
			ts  sql.NullString
		)
		if err := rows.Scan(&r.Date, &r.Time, &typ, &r.Location, &r.County, &r.State, &r.Latitude, &r.Longitude, &ts); err != nil {
			return nil, err
		}
		r.Type = domain.Category(typ)
		if ts.Valid {
			r.UTCTimestamp = &ts.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
