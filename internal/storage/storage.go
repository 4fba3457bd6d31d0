// Package storage persists analysis report artifacts to an object store.
package storage

import (
	"context"
	"io"

	"github.com/frontscan/pkg/config"
	"github.com/frontscan/pkg/errors"
)

// Storage is the artifact store behind report publishing.
type Storage interface {
	// Upload writes the reader's content under the given key.
	Upload(ctx context.Context, key string, reader io.Reader) error

	// UploadFile uploads a local file under the given key.
	UploadFile(ctx context.Context, key string, localPath string) error

	// Download opens the artifact stored under the given key.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the artifact under the given key.
	Delete(ctx context.Context, key string) error

	// Exists reports whether an artifact exists under the given key.
	Exists(ctx context.Context, key string) (bool, error)

	// URL returns an address for the artifact, a filesystem path for local
	// storage or a public URL for COS.
	URL(key string) string
}

// Backend names a storage implementation.
type Backend string

const (
	BackendLocal Backend = "local"
	BackendCOS   Backend = "cos"
)

// New creates a Storage from configuration. An empty type defaults to local.
func New(cfg *config.StorageConfig) (Storage, error) {
	if cfg == nil {
		return nil, errors.New(errors.CodeConfigError, "storage config is nil")
	}

	switch Backend(cfg.Type) {
	case BackendLocal, "":
		return NewLocal(cfg.LocalPath)
	case BackendCOS:
		return NewCOS(&COSConfig{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
			Domain:    cfg.Domain,
			Scheme:    cfg.Scheme,
		})
	default:
		return nil, errors.New(errors.CodeConfigError, "unsupported storage type: "+cfg.Type)
	}
}
