package csvfile

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/couchcryptid/storm-data-aggregator/internal/domain"
)

// HeaderMode describes how the first line of a report file is interpreted.
type HeaderMode int

const (
	// HeaderMatching: the first line carries exactly the expected column
	// names and is consumed as the header.
	HeaderMatching HeaderMode = iota
	// HeaderUnknown: the first line has a different column count, so it is
	// taken to be a foreign header. It is skipped and the expected names are
	// forced onto the columns.
	HeaderUnknown
	// Headerless: the first line has the expected column count but other
	// names, so it is already data and is kept.
	Headerless
)

func (m HeaderMode) String() string {
	switch m {
	case HeaderMatching:
		return "matching"
	case HeaderUnknown:
		return "unknown"
	case Headerless:
		return "headerless"
	default:
		return fmt.Sprintf("HeaderMode(%d)", int(m))
	}
}

// DetectHeaderMode classifies the first record of a file against the
// expected column names. Only the first len(expected) fields take part in
// the name comparison; stray trailing columns are ignored.
func DetectHeaderMode(first, expected []string) HeaderMode {
	if len(first) >= len(expected) && slices.Equal(first[:len(expected)], expected) {
		return HeaderMatching
	}
	if len(first) == len(expected) {
		return Headerless
	}
	return HeaderUnknown
}

// Loader reads SPC report CSV files.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a Loader.
func NewLoader(logger *slog.Logger) *Loader {
	return &Loader{logger: logger}
}

// Load reads the file at path using the expected raw column layout.
func (l *Loader) Load(_ context.Context, path string, columns []string) ([]domain.RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report file: %w", err)
	}
	defer f.Close()

	rows, mode, err := ReadRows(f, columns)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if mode != HeaderMatching {
		l.logger.Debug("header reconciled", "path", path, "mode", mode.String(), "rows", len(rows))
	}
	return rows, nil
}

// ReadRows parses delimited report rows, keeping exactly len(columns) fields
// per row. Short rows are padded with empty values. An empty input yields no
// rows.
func ReadRows(r io.Reader, columns []string) ([]domain.RawRow, HeaderMode, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var (
		rows  []domain.RawRow
		mode  HeaderMode
		first = true
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, mode, err
		}
		line, _ := cr.FieldPos(0)

		if first {
			first = false
			if len(rec) > 0 {
				rec[0] = strings.TrimPrefix(rec[0], "\ufeff")
			}
			mode = DetectHeaderMode(rec, columns)
			if mode != Headerless {
				continue
			}
		}

		rows = append(rows, toRawRow(line, rec, columns))
	}
	return rows, mode, nil
}

func toRawRow(line int, rec, columns []string) domain.RawRow {
	values := make(map[string]string, len(columns))
	for i, col := range columns {
		if i < len(rec) {
			values[col] = rec[i]
		} else {
			values[col] = ""
		}
	}
	return domain.RawRow{Line: line, Values: values}
}
