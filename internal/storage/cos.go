package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/tencentyun/cos-go-sdk-v5"
)

// COSConfig holds Tencent Cloud COS settings.
type COSConfig struct {
	Bucket    string
	Region    string
	SecretID  string
	SecretKey string
	Domain    string // e.g. "myqcloud.com"
	Scheme    string // "https" or "http"
}

// COS stores report artifacts in a Tencent Cloud COS bucket.
type COS struct {
	client *cos.Client
	bucket string
	region string
	domain string
	scheme string
}

// NewCOS creates a COS-backed store.
func NewCOS(cfg *COSConfig) (*COS, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, fmt.Errorf("bucket and region are required for COS storage")
	}
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("credentials are required for COS storage")
	}

	domain := cfg.Domain
	if domain == "" {
		domain = "myqcloud.com"
	}
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "https"
	}

	bucketURL, err := url.Parse(fmt.Sprintf("%s://%s.cos.%s.%s", scheme, cfg.Bucket, cfg.Region, domain))
	if err != nil {
		return nil, fmt.Errorf("failed to parse bucket URL: %w", err)
	}
	serviceURL, err := url.Parse(fmt.Sprintf("%s://cos.%s.%s", scheme, cfg.Region, domain))
	if err != nil {
		return nil, fmt.Errorf("failed to parse service URL: %w", err)
	}

	client := cos.NewClient(&cos.BaseURL{
		BucketURL:  bucketURL,
		ServiceURL: serviceURL,
	}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
		},
	})

	return &COS{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
		domain: domain,
		scheme: scheme,
	}, nil
}

// Upload writes the reader's content under the given key.
func (s *COS) Upload(ctx context.Context, key string, reader io.Reader) error {
	if _, err := s.client.Object.Put(ctx, key, reader, nil); err != nil {
		return fmt.Errorf("failed to upload to COS: %w", err)
	}
	return nil
}

// UploadFile uploads a local file under the given key.
func (s *COS) UploadFile(ctx context.Context, key string, localPath string) error {
	if _, err := s.client.Object.PutFromFile(ctx, key, localPath, nil); err != nil {
		return fmt.Errorf("failed to upload file to COS: %w", err)
	}
	return nil
}

// Download opens the artifact stored under the given key.
func (s *COS) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.client.Object.Get(ctx, key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download from COS: %w", err)
	}
	return resp.Body, nil
}

// DownloadFile downloads the artifact to a local file.
func (s *COS) DownloadFile(ctx context.Context, key string, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if _, err := s.client.Object.GetToFile(ctx, key, localPath, nil); err != nil {
		return fmt.Errorf("failed to download file from COS: %w", err)
	}
	return nil
}

// Delete removes the artifact under the given key.
func (s *COS) Delete(ctx context.Context, key string) error {
	if _, err := s.client.Object.Delete(ctx, key, nil); err != nil {
		return fmt.Errorf("failed to delete from COS: %w", err)
	}
	return nil
}

// Exists reports whether an artifact exists under the given key.
func (s *COS) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.Object.IsExist(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to check existence in COS: %w", err)
	}
	return ok, nil
}

// URL returns the public URL for the artifact.
func (s *COS) URL(key string) string {
	return fmt.Sprintf("%s://%s.cos.%s.%s/%s", s.scheme, s.bucket, s.region, s.domain, key)
}
