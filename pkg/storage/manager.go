package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	apperrors "apimages/pkg/errors"
)

// Manager owns the output tree: one directory per site, one file per image
type Manager struct {
	outputDir string
}

// NewManager creates the output root if needed
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, apperrors.New(apperrors.KindFilesystem, "create output directory", err)
	}
	return &Manager{outputDir: outputDir}, nil
}

// OutputDir returns the root directory
func (m *Manager) OutputDir() string {
	return m.outputDir
}

// SiteDir returns the directory for a sanitized site name, creating it
func (m *Manager) SiteDir(siteName string) (string, error) {
	dir := filepath.Join(m.outputDir, siteName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", apperrors.New(apperrors.KindFilesystem, "create site directory", err)
	}
	return dir, nil
}

// ImagePath returns <siteDir>/<device>-image-NN.jpg for slot index (1-based)
func ImagePath(siteDir, deviceName string, index int) string {
	return filepath.Join(siteDir, fmt.Sprintf("%s-image-%02d.jpg", deviceName, index))
}

// Exists reports whether anything is present at path. The content is not
// inspected: an empty file counts as downloaded.
func (m *Manager) Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// SaveImage writes r to path through a temporary file in the same
// directory, so path only ever appears complete.
func (m *Manager) SaveImage(path string, r io.Reader) (int64, error) {
	dir, base := filepath.Split(path)
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return 0, apperrors.New(apperrors.KindFilesystem, "create temporary file", err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, r)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpName)
		return 0, apperrors.New(apperrors.KindFilesystem, "write image "+path, err)
	}

	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return 0, apperrors.New(apperrors.KindFilesystem, "write image "+path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return 0, apperrors.New(apperrors.KindFilesystem, "rename image "+path, err)
	}

	return n, nil
}
