package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fitledger/fitledger/internal/support/logger"
)

// LocalOptions configures the local file system backend.
type LocalOptions struct {
	// BaseDir is the directory under which all objects are stored.
	BaseDir string `yaml:"base_dir"`
}

// localStore implements ObjectStore over the local file system.
// Uploads are written to a temporary file in the destination directory and
// renamed into place, so readers never observe a partially written object.
type localStore struct {
	baseDir string
}

var _ ObjectStore = (*localStore)(nil)

// NewLocalStore creates a local ObjectStore rooted at opts.BaseDir,
// creating the directory if it does not exist.
func NewLocalStore(opts LocalOptions) (ObjectStore, error) {
	if opts.BaseDir == "" {
		return nil, fmt.Errorf("local storage: base_dir must be specified")
	}
	info, err := os.Stat(opts.BaseDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("local storage: failed to stat base_dir %q: %w", opts.BaseDir, err)
		}
		if err := os.MkdirAll(opts.BaseDir, 0o755); err != nil {
			return nil, fmt.Errorf("local storage: failed to create base_dir %q: %w", opts.BaseDir, err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("local storage: base_dir %q is not a directory", opts.BaseDir)
	}
	return &localStore{baseDir: opts.BaseDir}, nil
}

func (s *localStore) Upload(ctx context.Context, key string, data io.Reader) error {
	fullPath, err := s.resolvePath(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %q: %w", dir, err)
	}

	// Write to a temp file in the same directory so the final rename is an
	// atomic replace on the same file system.
	tmp, err := os.CreateTemp(dir, filepath.Base(fullPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %q: %w", dir, err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write data to %q: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file %q: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %q: %w", fullPath, err)
	}
	logger.Debugf("Uploaded object %q (local store).", key)
	return nil
}

func (s *localStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := s.resolvePath(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("object %q: %w", key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to open %q: %w", fullPath, err)
	}
	return file, nil
}

func (s *localStore) Delete(ctx context.Context, key string) error {
	fullPath, err := s.resolvePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			logger.Warnf("Attempted to delete non-existent object %q (local store).", key)
			return nil
		}
		return fmt.Errorf("failed to delete %q: %w", fullPath, err)
	}
	return nil
}

func (s *localStore) List(ctx context.Context, prefix string, fn func(key string) error) error {
	return filepath.WalkDir(s.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		key, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			return err
		}
		key = filepath.ToSlash(key)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		return fn(key)
	})
}

func (s *localStore) Close() error {
	return nil
}

// resolvePath maps an object key to a file path and rejects keys that would
// escape the base directory.
func (s *localStore) resolvePath(key string) (string, error) {
	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(key))
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base_dir %q: %w", s.baseDir, err)
	}
	absFull, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %q: %w", fullPath, err)
	}
	if absFull != absBase && !strings.HasPrefix(absFull, absBase+string(os.PathSeparator)) {
		return "", fmt.Errorf("key %q resolves outside of base_dir", key)
	}
	return fullPath, nil
}
