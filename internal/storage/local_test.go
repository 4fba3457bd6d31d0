package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frontscan/pkg/config"
)

func TestLocalUploadDownloadRoundTrip(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	content := []byte(`{"result":{"has_leak":true}}`)
	require.NoError(t, s.Upload(ctx, "runs/run-1/report.json", bytes.NewReader(content)))

	ok, err := s.Exists(ctx, "runs/run-1/report.json")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := s.Download(ctx, "runs/run-1/report.json")
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestLocalDeleteIsIdempotent(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Upload(ctx, "report.json", bytes.NewReader([]byte("{}"))))
	require.NoError(t, s.Delete(ctx, "report.json"))
	require.NoError(t, s.Delete(ctx, "report.json"))

	ok, err := s.Exists(ctx, "report.json")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalDownloadMissingArtifact(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = s.Download(context.Background(), "nope.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "artifact not found")
}

func TestLocalCancelledContext(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, s.Upload(ctx, "x", bytes.NewReader(nil)))
	_, err = s.Download(ctx, "x")
	assert.Error(t, err)
}

func TestNewStorageFromConfig(t *testing.T) {
	dir := t.TempDir()

	s, err := New(&config.StorageConfig{Type: "local", LocalPath: dir})
	require.NoError(t, err)
	assert.IsType(t, &Local{}, s)
	assert.Equal(t, dir+"/report.json", s.URL("report.json"))

	_, err = New(&config.StorageConfig{Type: "ftp"})
	assert.Error(t, err)

	_, err = New(nil)
	assert.Error(t, err)

	_, err = New(&config.StorageConfig{Type: "cos"})
	assert.Error(t, err, "COS requires bucket, region and credentials")
}
