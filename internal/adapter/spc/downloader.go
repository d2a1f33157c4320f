package spc

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/storm-data-aggregator/internal/domain"
)

// DefaultStart is the first day SPC publishes reports in the CSV layout.
var DefaultStart = time.Date(2004, time.April, 1, 0, 0, 0, 0, time.UTC)

// ReportFetcher is the remote side of a Downloader.
type ReportFetcher interface {
	ReportCategories(ctx context.Context, day time.Time) (map[domain.Category]bool, error)
	FetchCSV(ctx context.Context, day time.Time, category domain.Category) ([]byte, error)
}

// Summary counts what a download run did.
type Summary struct {
	Days         int
	Downloaded   int
	Placeholders int
	Existing     int
	Failed       int
	Uninspected  int // days whose report page could not be read
}

// Downloader stores SPC report files in one directory per category. Days
// without reports of a category get a header-only placeholder file so the
// aggregator sees every day.
type Downloader struct {
	fetcher   ReportFetcher
	root      string
	registry  *domain.Registry
	overwrite bool
	logger    *slog.Logger
}

// NewDownloader creates a Downloader writing under root. Existing files are
// left alone unless overwrite is set.
func NewDownloader(fetcher ReportFetcher, root string, registry *domain.Registry, overwrite bool, logger *slog.Logger) *Downloader {
	return &Downloader{
		fetcher:   fetcher,
		root:      root,
		registry:  registry,
		overwrite: overwrite,
		logger:    logger,
	}
}

// Path is where the file for day and category is stored.
func (d *Downloader) Path(day time.Time, category domain.Category) string {
	name := fmt.Sprintf("%s_rpts_%s.csv", domain.FileDateToken(day), category)
	return filepath.Join(d.root, category.Dir(), name)
}

// DownloadRange processes every day from start to end inclusive. Per-day
// failures are logged and counted; only cancellation stops the run early.
func (d *Downloader) DownloadRange(ctx context.Context, start, end time.Time) (Summary, error) {
	var sum Summary
	start = truncateDay(start)
	end = truncateDay(end)
	if end.Before(start) {
		return sum, fmt.Errorf("end %s is before start %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}

	for _, c := range domain.Categories {
		if err := os.MkdirAll(filepath.Join(d.root, c.Dir()), 0o755); err != nil {
			return sum, fmt.Errorf("create %s directory: %w", c.Dir(), err)
		}
	}

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Days++
		d.downloadDay(ctx, day, &sum)
	}

	d.logger.Info("download complete",
		"days", sum.Days,
		"downloaded", sum.Downloaded,
		"placeholders", sum.Placeholders,
		"existing", sum.Existing,
		"failed", sum.Failed,
		"uninspected", sum.Uninspected,
	)
	return sum, nil
}

func (d *Downloader) downloadDay(ctx context.Context, day time.Time, sum *Summary) {
	var pending []domain.Category
	for _, c := range domain.Categories {
		if !d.overwrite && fileExists(d.Path(day, c)) {
			sum.Existing++
			continue
		}
		pending = append(pending, c)
	}
	if len(pending) == 0 {
		return
	}

	present, err := d.fetcher.ReportCategories(ctx, day)
	if err != nil {
		sum.Uninspected++
		d.logger.Warn("could not determine report types", "date", day.Format(time.DateOnly), "error", err)
		return
	}

	for _, c := range pending {
		path := d.Path(day, c)
		if !present[c] {
			if err := d.writePlaceholder(path, c); err != nil {
				sum.Failed++
				d.logger.Error("write placeholder failed", "path", path, "error", err)
				continue
			}
			sum.Placeholders++
			d.logger.Debug("placeholder written", "path", path)
			continue
		}

		body, err := d.fetcher.FetchCSV(ctx, day, c)
		if err != nil {
			sum.Failed++
			d.logger.Error("download failed", "date", day.Format(time.DateOnly), "category", c, "error", err)
			continue
		}
		if err := writeAtomic(path, body); err != nil {
			sum.Failed++
			d.logger.Error("save report failed", "path", path, "error", err)
			continue
		}
		sum.Downloaded++
		d.logger.Debug("report downloaded", "path", path, "bytes", len(body))
	}
}

func (d *Downloader) writePlaceholder(path string, category domain.Category) error {
	columns, err := d.registry.RawColumns(category)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(columns); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return writeAtomic(path, buf.Bytes())
}

// writeAtomic stages data in a hidden temp file in the target directory and
// renames it into place. The staging name never ends in .csv, so a file left
// by an interrupted run is not picked up as a report.
func writeAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.part")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
