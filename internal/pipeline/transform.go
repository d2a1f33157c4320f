package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/storm-data-aggregator/internal/domain"
)

// RecordLoader reads the raw rows of one report file using the expected column layout.
type RecordLoader interface {
	Load(ctx context.Context, path string, columns []string) ([]domain.RawRow, error)
}

// FileBatch is the normalized content of one report file.
type FileBatch struct {
	Path     string
	Category domain.Category
	Date     string
	Loaded   int
	domain.Batch
}

// FileTransformer turns one report file into a batch of canonical rows:
// category inference, date parsing, loading, validation and timestamps.
type FileTransformer struct {
	settings domain.Settings
	loader   RecordLoader
	logger   *slog.Logger
}

// NewTransformer creates a FileTransformer with immutable settings.
func NewTransformer(settings domain.Settings, loader RecordLoader, logger *slog.Logger) *FileTransformer {
	return &FileTransformer{
		settings: settings,
		loader:   loader,
		logger:   logger,
	}
}

// Transform processes the file at path. Errors wrap domain.ErrUnknownCategory
// or domain.ErrMalformedDateToken when the file name disqualifies it;
// anything else is a read failure.
func (t *FileTransformer) Transform(ctx context.Context, path string) (FileBatch, error) {
	category, err := domain.CategoryFromPath(path)
	if err != nil {
		return FileBatch{}, err
	}

	date, err := domain.FileDateFromPath(path)
	if err != nil {
		return FileBatch{}, err
	}

	columns, err := t.settings.Registry.RawColumns(category)
	if err != nil {
		return FileBatch{}, err
	}

	raw, err := t.loader.Load(ctx, path, columns)
	if err != nil {
		return FileBatch{}, fmt.Errorf("load %s: %w", path, err)
	}

	batch := t.settings.Normalize(raw, date, category)
	if dropped := batch.Drops.Total(); dropped > 0 || batch.TimestampFailures > 0 {
		t.logger.Debug("rows filtered",
			"path", path,
			"loaded", len(raw),
			"dropped", dropped,
			"timestamp_failures", batch.TimestampFailures,
		)
	}

	return FileBatch{
		Path:     path,
		Category: category,
		Date:     date,
		Loaded:   len(raw),
		Batch:    batch,
	}, nil
}
