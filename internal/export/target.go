package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Target is where an export is written.
type Target interface {
	// Put stores the export under name and returns where it ended up.
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
}

// FileSystemTarget writes exports into a local directory:
//
//	<dir>/
//	  babylog-<timestamp>.<format>
type FileSystemTarget struct {
	dir string
}

var _ Target = (*FileSystemTarget)(nil)

// NewFileSystemTarget creates the directory if needed.
func NewFileSystemTarget(dir string) (*FileSystemTarget, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	return &FileSystemTarget{dir: dir}, nil
}

func (t *FileSystemTarget) Put(_ context.Context, name string, r io.Reader, size int64, _ string) (string, error) {
	dest := filepath.Join(t.dir, name)

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}

	written, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(dest)
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("failed to close export file: %w", err)
	}
	if written != size {
		os.Remove(dest)
		return "", fmt.Errorf("size mismatch: expected %d bytes, wrote %d", size, written)
	}
	return dest, nil
}

// MemoryTarget keeps exports in memory, keyed by name. Safe for concurrent use.
type MemoryTarget struct {
	mu    sync.Mutex
	files map[string][]byte
}

var _ Target = (*MemoryTarget)(nil)

func NewMemoryTarget() *MemoryTarget {
	return &MemoryTarget{files: make(map[string][]byte)}
}

func (t *MemoryTarget) Put(_ context.Context, name string, r io.Reader, size int64, _ string) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", fmt.Errorf("failed to read export: %w", err)
	}
	if int64(buf.Len()) != size {
		return "", fmt.Errorf("size mismatch: expected %d bytes, got %d", size, buf.Len())
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.files[name] = buf.Bytes()
	return "memory://" + name, nil
}

// File returns a stored export.
func (t *MemoryTarget) File(name string) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	data, ok := t.files[name]
	return data, ok
}
