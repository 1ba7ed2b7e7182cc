// Package session persists the feeding timer session between runs.
package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"babylog/internal/babylog"
)

// FileName is the session file inside the session directory.
const FileName = "timer.json"

// FileSystemStore keeps the session in a single file, replaced atomically on write.
type FileSystemStore struct {
	path string
}

var _ babylog.SessionStore = (*FileSystemStore)(nil)

// NewFileSystemStore creates the directory if needed and returns a store for dir/timer.json.
func NewFileSystemStore(dir string) (*FileSystemStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &FileSystemStore{path: filepath.Join(dir, FileName)}, nil
}

// Path returns the session file path.
func (s *FileSystemStore) Path() string { return s.path }

func (s *FileSystemStore) Read() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	return data, nil
}

// Write replaces the session through a temporary file and rename, so a crash
// leaves either the old or the new session on disk.
func (s *FileSystemStore) Write(data []byte) error {
	tmp := s.path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating temporary session file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing temporary session file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("syncing temporary session file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing temporary session file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming session file into place: %w", err)
	}
	return nil
}

func (s *FileSystemStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}
