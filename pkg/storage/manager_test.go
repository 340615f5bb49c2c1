package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "apimages/pkg/errors"
)

func TestManagerLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), ".output")

	manager, err := NewManager(root)
	require.NoError(t, err)
	assert.DirExists(t, root)
	assert.Equal(t, root, manager.OutputDir())

	siteDir, err := manager.SiteDir("Head_Office")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Head_Office"), siteDir)
	assert.DirExists(t, siteDir)

	// idempotent
	_, err = manager.SiteDir("Head_Office")
	require.NoError(t, err)
}

func TestImagePath(t *testing.T) {
	assert.Equal(t, filepath.Join("site", "AP_1-image-01.jpg"), ImagePath("site", "AP_1", 1))
	assert.Equal(t, filepath.Join("site", "AP_1-image-09.jpg"), ImagePath("site", "AP_1", 9))
}

func TestSaveImage(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	require.NoError(t, err)
	siteDir, err := manager.SiteDir("s")
	require.NoError(t, err)

	path := ImagePath(siteDir, "ap", 1)
	assert.False(t, manager.Exists(path))

	n, err := manager.SaveImage(path, strings.NewReader("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
	assert.True(t, manager.Exists(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	entries, err := os.ReadDir(siteDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must not be left behind")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestSaveImageFailureLeavesNoFile(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	require.NoError(t, err)
	siteDir, err := manager.SiteDir("s")
	require.NoError(t, err)

	path := ImagePath(siteDir, "ap", 2)
	_, err = manager.SaveImage(path, failingReader{})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindFilesystem))
	assert.False(t, manager.Exists(path))

	entries, err := os.ReadDir(siteDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExistsCountsEmptyFiles(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	require.NoError(t, err)

	path := filepath.Join(manager.OutputDir(), "empty-image-01.jpg")
	require.NoError(t, os.WriteFile(path, nil, 0644))
	assert.True(t, manager.Exists(path))
}

func TestNewManagerFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	_, err := NewManager(filepath.Join(blocker, "out"))
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindFilesystem))
}
