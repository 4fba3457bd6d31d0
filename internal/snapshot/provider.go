// Package snapshot provides the snapshot provider contract and the keyed
// store of captured object graphs.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/frontscan/pkg/errors"
	"github.com/frontscan/pkg/model"
)

// Provider captures a live application's object graph. The runtime-specific
// walker is an external collaborator; the engine only consumes its output.
//
// Contract: object IDs are unique within one snapshot, every reference
// resolves to objects in the same snapshot, and the same logical heap object
// keeps the same ID across captures.
type Provider interface {
	// Capture produces a snapshot for the given label.
	Capture(ctx context.Context, label string) (*model.MemorySnapshot, error)
}

// NopProvider returns empty snapshots. It stands in where no runtime
// integration is wired.
type NopProvider struct {
	seq int
	mu  sync.Mutex
}

// Capture returns an empty snapshot with a sequential id.
func (p *NopProvider) Capture(_ context.Context, label string) (*model.MemorySnapshot, error) {
	p.mu.Lock()
	p.seq++
	id := fmt.Sprintf("empty-%d", p.seq)
	p.mu.Unlock()

	return &model.MemorySnapshot{
		ID:         id,
		Label:      label,
		Objects:    []*model.MemoryObject{},
		References: []*model.MemoryReference{},
	}, nil
}

// FileProvider replays snapshot JSON files from a directory in lexical order.
// Each Capture consumes the next file. IDs found in the input are preserved,
// which keeps the cross-snapshot identity contract in the data's hands.
type FileProvider struct {
	mu    sync.Mutex
	files []string
	next  int
}

// NewFileProvider creates a FileProvider over all *.json files in dir.
func NewFileProvider(dir string) (*FileProvider, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(errors.CodeProviderError, "failed to read snapshot directory", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, errors.Wrap(errors.CodeProviderError,
			fmt.Sprintf("no snapshot files in %s", dir), nil)
	}

	return &FileProvider{files: files}, nil
}

// Remaining returns how many snapshot files have not been consumed yet.
func (p *FileProvider) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.files) - p.next
}

// Capture reads and decodes the next snapshot file.
func (p *FileProvider) Capture(ctx context.Context, label string) (*model.MemorySnapshot, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	p.mu.Lock()
	if p.next >= len(p.files) {
		p.mu.Unlock()
		return nil, errors.Wrap(errors.CodeProviderError, "no more snapshot files", nil)
	}
	path := p.files[p.next]
	p.next++
	p.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.CodeProviderError, "failed to read snapshot file", err)
	}

	var snap model.MemorySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrap(errors.CodeProviderError,
			fmt.Sprintf("failed to decode snapshot file %s", filepath.Base(path)), err)
	}

	if snap.ID == "" {
		snap.ID = filepath.Base(path)
	}
	if label != "" {
		snap.Label = label
	}
	if snap.TotalSize == 0 {
		for _, obj := range snap.Objects {
			snap.TotalSize += obj.Size
		}
	}

	return &snap, nil
}
