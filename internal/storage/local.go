package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Local stores report artifacts on the local filesystem.
type Local struct {
	basePath string
}

// NewLocal creates a filesystem-backed store rooted at basePath.
func NewLocal(basePath string) (*Local, error) {
	if basePath == "" {
		basePath = "./reports"
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	return &Local{basePath: basePath}, nil
}

// Upload writes the reader's content under the given key.
func (s *Local) Upload(ctx context.Context, key string, reader io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fullPath := s.path(key)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// UploadFile copies a local file under the given key.
func (s *Local) UploadFile(ctx context.Context, key string, localPath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer src.Close()
	return s.Upload(ctx, key, src)
}

// Download opens the artifact stored under the given key.
func (s *Local) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("artifact not found: %s", key)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Delete removes the artifact under the given key. Deleting a missing
// artifact is not an error.
func (s *Local) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Exists reports whether an artifact exists under the given key.
func (s *Local) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := os.Stat(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat file: %w", err)
	}
	return true, nil
}

// URL returns the filesystem path for the artifact.
func (s *Local) URL(key string) string {
	return s.path(key)
}

func (s *Local) path(key string) string {
	return filepath.Join(s.basePath, key)
}
