package csvfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(hailHeader), 0o600))
}

func TestDirSource_ListFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "wind", "230601_rpts_wind.csv"))
	writeFile(t, filepath.Join(root, "hail", "230602_rpts_hail.csv"))
	writeFile(t, filepath.Join(root, "hail", "230601_rpts_hail.csv"))
	writeFile(t, filepath.Join(root, "tornado", "230601_rpts_torn.csv"))
	writeFile(t, filepath.Join(root, "snow", "230601_rpts_snow.csv"))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "hail", "archive"), 0o755))

	paths, err := NewDirSource(root, discardLogger()).ListFiles(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(root, "hail", "230601_rpts_hail.csv"),
		filepath.Join(root, "hail", "230602_rpts_hail.csv"),
		filepath.Join(root, "tornado", "230601_rpts_torn.csv"),
		filepath.Join(root, "wind", "230601_rpts_wind.csv"),
	}, paths)
}

func TestDirSource_IgnoresNonReportFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "hail", "230601_rpts_hail.csv"))
	writeFile(t, filepath.Join(root, "hail", "230601_rpts_hail.csv.part"))
	writeFile(t, filepath.Join(root, "hail", "230601_rpts_hail.csv.bak"))
	writeFile(t, filepath.Join(root, "hail", ".230601_rpts_hail.csv.1234.part"))
	writeFile(t, filepath.Join(root, "hail", ".230602_rpts_hail.csv"))
	writeFile(t, filepath.Join(root, "wind", "230601_rpts_wind.CSV"))
	writeFile(t, filepath.Join(root, "wind", "README.md"))

	paths, err := NewDirSource(root, discardLogger()).ListFiles(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(root, "hail", "230601_rpts_hail.csv"),
		filepath.Join(root, "wind", "230601_rpts_wind.CSV"),
	}, paths)
}

func TestDirSource_MissingCategoryDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "hail", "230601_rpts_hail.csv"))

	paths, err := NewDirSource(root, discardLogger()).ListFiles(context.Background())
	require.NoError(t, err)
	assert.Len(t, paths, 1)
}

func TestDirSource_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDirSource(t.TempDir(), discardLogger()).ListFiles(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
