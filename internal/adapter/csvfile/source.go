package csvfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/couchcryptid/storm-data-aggregator/internal/domain"
)

// DirSource enumerates report files stored under one subdirectory per
// category (hail/, tornado/, wind/).
type DirSource struct {
	root   string
	logger *slog.Logger
}

// NewDirSource creates a DirSource rooted at dir.
func NewDirSource(dir string, logger *slog.Logger) *DirSource {
	return &DirSource{root: dir, logger: logger}
}

// ListFiles returns every report file in the category directories, sorted
// lexically by path. Only regular, non-hidden files with a .csv extension are
// reports; partial downloads and backups next to them are skipped. A missing
// category directory is logged and skipped.
func (s *DirSource) ListFiles(ctx context.Context) ([]string, error) {
	var paths []string
	for _, c := range domain.Categories {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dir := filepath.Join(s.root, c.Dir())
		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("category directory missing", "category", c, "dir", dir)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", dir, err)
		}

		for _, e := range entries {
			if !e.Type().IsRegular() {
				continue
			}
			if !isReportFile(e.Name()) {
				s.logger.Debug("non-report file ignored", "path", filepath.Join(dir, e.Name()))
				continue
			}
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}

	sort.Strings(paths)
	return paths, nil
}

func isReportFile(name string) bool {
	return !strings.HasPrefix(name, ".") && strings.EqualFold(filepath.Ext(name), ".csv")
}
