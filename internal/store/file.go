package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

var _ Store = (*FileStore)(nil)

// FileStore is a MemoryStore whose contents are written to a local file on every Set.
type FileStore struct {
	mu   sync.Mutex
	path string
	mem  *MemoryStore
}

func OpenFileStore(path string) (*FileStore, error) {
	if path == "" {
		path = DefaultFilePath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("os.MkdirAll: %w", err)
	}

	s := &FileStore{path: path, mem: NewMemoryStore()}
	if err := s.mem.cache.LoadFile(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("cache.LoadFile: path=%s, %w", path, err)
	}
	return s, nil
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get(ctx context.Context, key string) (string, error) {
	return s.mem.Get(ctx, key)
}

func (s *FileStore) Set(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mem.Set(ctx, key, value); err != nil {
		return err
	}

	// Replace the snapshot in one step so a crash leaves either the old or the new file.
	tmp := s.path + ".tmp"
	if err := s.writeSnapshot(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("os.Rename: %w", err)
	}
	if err := syncDir(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("syncDir: %w", err)
	}
	return nil
}

func (s *FileStore) writeSnapshot(fn string) error {
	fp, err := os.Create(fn)
	if err != nil {
		return fmt.Errorf("os.Create: %w", err)
	}
	defer fp.Close()

	if err := s.mem.cache.Save(fp); err != nil {
		return fmt.Errorf("cache.Save: %w", err)
	}
	if err := fp.Sync(); err != nil {
		return fmt.Errorf("fp.Sync: %w", err)
	}
	return fp.Close()
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

func (s *FileStore) Close() error {
	return nil
}
