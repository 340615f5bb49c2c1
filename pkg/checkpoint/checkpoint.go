package checkpoint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	apperrors "apimages/pkg/errors"
	"apimages/pkg/logger"
)

// Set holds the names of sites whose images were all fetched
type Set map[string]struct{}

// NewSet creates a set holding names
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, name := range names {
		s.Add(name)
	}
	return s
}

// Add marks a site as completed
func (s Set) Add(name string) {
	s[name] = struct{}{}
}

// Has reports whether a site is completed
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Len returns the number of completed sites
func (s Set) Len() int {
	return len(s)
}

// Sorted returns the names in ascending order, never nil
func (s Set) Sorted() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Info summarizes the checkpoint file
type Info struct {
	Path      string    `json:"path"`
	Sites     []string  `json:"sites"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store loads and persists the completed-site set as a JSON array of names
type Store struct {
	path   string
	logger logger.Logger
}

// NewStore creates a store backed by the file at path
func NewStore(path string, log logger.Logger) *Store {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Store{path: path, logger: log}
}

// Path returns the checkpoint file location
func (s *Store) Path() string {
	return s.path
}

// Load reads the completed-site set. A missing file yields an empty set; a
// file that is not a JSON array of strings is a corrupt_checkpoint error.
func (s *Store) Load() (Set, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.DebugWithFields("No checkpoint found, starting fresh", map[string]interface{}{
				"path": s.path,
			})
			return NewSet(), nil
		}
		return nil, apperrors.New(apperrors.KindFilesystem, "read checkpoint", err)
	}

	names, err := decode(data)
	if err != nil {
		return nil, apperrors.New(apperrors.KindCorruptCheckpoint, "load checkpoint "+s.path, err)
	}

	set := NewSet(names...)
	s.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"path":            s.path,
		"completed_sites": set.Len(),
	})
	return set, nil
}

func decode(data []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("expected a JSON array of site names")
	}
	var entries []*string
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for i, name := range entries {
		if name == nil {
			return nil, fmt.Errorf("entry %d is null, not a site name", i)
		}
		names = append(names, *name)
	}
	return names, nil
}

// Save overwrites the checkpoint with the sorted set. The data is written
// to <path>.tmp, synced and renamed over the old file.
func (s *Store) Save(set Set) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(set.Sorted()); err != nil {
		return apperrors.New(apperrors.KindFilesystem, "encode checkpoint", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return apperrors.New(apperrors.KindFilesystem, "create checkpoint directory", err)
		}
	}

	tempPath := s.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return apperrors.New(apperrors.KindFilesystem, "create temporary checkpoint file", err)
	}

	if _, err := file.Write(buf.Bytes()); err != nil {
		file.Close()
		os.Remove(tempPath)
		return apperrors.New(apperrors.KindFilesystem, "write checkpoint", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return apperrors.New(apperrors.KindFilesystem, "sync checkpoint", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return apperrors.New(apperrors.KindFilesystem, "close checkpoint", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return apperrors.New(apperrors.KindFilesystem, "replace checkpoint", err)
	}

	s.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"path":            s.path,
		"completed_sites": set.Len(),
	})
	return nil
}

// Exists reports whether the checkpoint file is present
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Delete removes the checkpoint file; a missing file is not an error
func (s *Store) Delete() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return apperrors.New(apperrors.KindFilesystem, "delete checkpoint", err)
	}
	s.logger.InfoWithFields("Checkpoint deleted", map[string]interface{}{"path": s.path})
	return nil
}

// Backup copies the checkpoint to <path>.backup and returns the backup
// path. It returns "" when there is nothing to back up.
func (s *Store) Backup() (string, error) {
	if !s.Exists() {
		return "", nil
	}

	backupPath := s.path + ".backup"

	src, err := os.Open(s.path)
	if err != nil {
		return "", apperrors.New(apperrors.KindFilesystem, "open checkpoint for backup", err)
	}
	defer src.Close()

	dst, err := os.Create(backupPath)
	if err != nil {
		return "", apperrors.New(apperrors.KindFilesystem, "create checkpoint backup", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", apperrors.New(apperrors.KindFilesystem, "copy checkpoint to backup", err)
	}
	if err := dst.Close(); err != nil {
		return "", apperrors.New(apperrors.KindFilesystem, "close checkpoint backup", err)
	}

	s.logger.InfoWithFields("Checkpoint backed up", map[string]interface{}{"backup": backupPath})
	return backupPath, nil
}

// Info loads the checkpoint and reports its contents and modification
// time. It returns nil when no checkpoint exists.
func (s *Store) Info() (*Info, error) {
	stat, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.New(apperrors.KindFilesystem, "stat checkpoint", err)
	}

	set, err := s.Load()
	if err != nil {
		return nil, err
	}

	return &Info{
		Path:      s.path,
		Sites:     set.Sorted(),
		UpdatedAt: stat.ModTime(),
	}, nil
}
