// Package parquet persists the canonical report table as a Parquet file.
package parquet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xitongsys/parquet-go-source/local"
	goparquet "github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/couchcryptid/storm-data-aggregator/internal/domain"
)

const parallelism = 4

// Row is the on-disk layout of one canonical report. Column order matches
// domain.OutputColumns.
type Row struct {
	Date         string  `parquet:"name=date,type=BYTE_ARRAY,convertedtype=UTF8"`
	Time         string  `parquet:"name=time,type=BYTE_ARRAY,convertedtype=UTF8"`
	Type         string  `parquet:"name=type,type=BYTE_ARRAY,convertedtype=UTF8"`
	Location     string  `parquet:"name=location,type=BYTE_ARRAY,convertedtype=UTF8"`
	County       string  `parquet:"name=county,type=BYTE_ARRAY,convertedtype=UTF8"`
	State        string  `parquet:"name=state,type=BYTE_ARRAY,convertedtype=UTF8"`
	Latitude     float64 `parquet:"name=latitude,type=DOUBLE"`
	Longitude    float64 `parquet:"name=longitude,type=DOUBLE"`
	UTCTimestamp *string `parquet:"name=utc_timestamp,type=BYTE_ARRAY,convertedtype=UTF8,repetitiontype=OPTIONAL"`
}

func fromCanonical(r domain.CanonicalRow) Row {
	return Row{
		Date:         r.Date,
		Time:         r.Time,
		Type:         string(r.Type),
		Location:     r.Location,
		County:       r.County,
		State:        r.State,
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
		UTCTimestamp: r.UTCTimestamp,
	}
}

func (r Row) canonical() domain.CanonicalRow {
	return domain.CanonicalRow{
		Date:         r.Date,
		Time:         r.Time,
		Type:         domain.Category(r.Type),
		Location:     r.Location,
		County:       r.County,
		State:        r.State,
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
		UTCTimestamp: r.UTCTimestamp,
	}
}

// Writer replaces a Parquet file with each batch it is given.
type Writer struct {
	path   string
	logger *slog.Logger
}

// NewWriter creates a Writer targeting path.
func NewWriter(path string, logger *slog.Logger) *Writer {
	return &Writer{path: path, logger: logger}
}

// LoadBatch writes rows to a temporary file next to the target and renames it
// into place, so readers never observe a partial table.
func (w *Writer) LoadBatch(ctx context.Context, rows []domain.CanonicalRow) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp := w.path + ".tmp"
	if err := writeFile(ctx, tmp, rows); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, w.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", w.path, err)
	}

	w.logger.Info("parquet output written", "path", w.path, "rows", len(rows))
	return nil
}

func writeFile(ctx context.Context, path string, rows []domain.CanonicalRow) (err error) {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("create parquet file: %w", err)
	}
	defer func() {
		if cerr := fw.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close parquet file: %w", cerr)
		}
	}()

	pw, err := writer.NewParquetWriter(fw, new(Row), parallelism)
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = goparquet.CompressionCodec_SNAPPY

	for i, r := range rows {
		if i%10000 == 0 {
			if err := ctx.Err(); err != nil {
				_ = pw.WriteStop()
				return err
			}
		}
		if err := pw.Write(fromCanonical(r)); err != nil {
			_ = pw.WriteStop()
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finish parquet file: %w", err)
	}
	return nil
}

// ReadFile reads every row of a Parquet file written by Writer.
func ReadFile(path string) ([]domain.CanonicalRow, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}

	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(Row), parallelism)
	if err != nil {
		return nil, fmt.Errorf("create parquet reader: %w", err)
	}
	defer pr.ReadStop()

	n := int(pr.GetNumRows())
	if n == 0 {
		return nil, errors.New("parquet file has no rows")
	}
	raw := make([]Row, n)
	if err := pr.Read(&raw); err != nil {
		return nil, fmt.Errorf("read parquet rows: %w", err)
	}

	rows := make([]domain.CanonicalRow, len(raw))
	for i, r := range raw {
		rows[i] = r.canonical()
	}
	return rows, nil
}
