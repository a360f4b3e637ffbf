// Package local writes screenshot artifacts under a directory on disk.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Config captures the parameters for the filesystem blob store.
type Config struct {
	// Dir is the root directory artifacts are written under.
	Dir string `mapstructure:"local_dir"`
}

// BlobStore writes artifacts to the local filesystem.
type BlobStore struct {
	dir string
}

// New prepares the directory and checks that it is writable.
func New(cfg Config) (*BlobStore, error) {
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		return nil, fmt.Errorf("artifact directory is required")
	}

	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(dir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create artifact directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat artifact directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("artifact path %s is not a directory", dir)
	}

	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return nil, fmt.Errorf("artifact directory is not writable: %w", err)
	}
	name := probe.Name()
	if err := probe.Close(); err != nil {
		return nil, fmt.Errorf("close probe file: %w", err)
	}
	if err := os.Remove(name); err != nil {
		return nil, fmt.Errorf("remove probe file: %w", err)
	}

	return &BlobStore{dir: dir}, nil
}

// PutObject writes the artifact below the root and returns a file:// URI.
func (s *BlobStore) PutObject(_ context.Context, path, _ string, data io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}

	root := filepath.Clean(s.dir)
	full := filepath.Join(root, path)
	if !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes artifact directory", path)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("create parent directories: %w", err)
	}

	payload, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read artifact %s: %w", path, err)
	}
	if err := os.WriteFile(full, payload, 0o600); err != nil {
		return "", fmt.Errorf("write artifact %s: %w", path, err)
	}

	return "file://" + full, nil
}
