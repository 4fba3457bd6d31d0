package snapshot

import (
	"context"
	"sync"

	"github.com/frontscan/pkg/errors"
	"github.com/frontscan/pkg/model"
	"github.com/frontscan/pkg/utils"
)

// Store is a keyed cache of captured snapshots. Snapshots are written once at
// creation and never mutated afterwards; reads hand out the stored pointer.
//
// The store is an explicit injected object, created per process or per test,
// never package-level state.
type Store struct {
	provider Provider
	logger   utils.Logger
	clock    utils.Clock

	mu        sync.RWMutex
	snapshots map[string]*model.MemorySnapshot
	order     []string // insertion order, for retention eviction

	maxSnapshots int // 0 means unbounded
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRetentionLimit evicts the oldest snapshot once more than max are held.
func WithRetentionLimit(max int) StoreOption {
	return func(s *Store) {
		s.maxSnapshots = max
	}
}

// WithClock sets a custom clock, used to timestamp captures lacking one.
func WithClock(clock utils.Clock) StoreOption {
	return func(s *Store) {
		s.clock = clock
	}
}

// NewStore creates a snapshot store backed by the given provider.
func NewStore(provider Provider, logger utils.Logger, opts ...StoreOption) *Store {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	s := &Store{
		provider:  provider,
		logger:    logger,
		clock:     utils.NewRealClock(),
		snapshots: make(map[string]*model.MemorySnapshot),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create captures a snapshot via the provider and stores it under its id.
func (s *Store) Create(ctx context.Context, label string) (*model.MemorySnapshot, error) {
	if s.provider == nil {
		return nil, errors.Wrap(errors.CodeProviderError, "no snapshot provider configured", nil)
	}

	snap, err := s.provider.Capture(ctx, label)
	if err != nil {
		return nil, errors.Wrap(errors.CodeSnapshotError, "snapshot capture failed", err)
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = s.clock.Now()
	}

	s.mu.Lock()
	s.snapshots[snap.ID] = snap
	s.order = append(s.order, snap.ID)
	evicted := s.evictLocked()
	s.mu.Unlock()

	s.logger.Debug("stored snapshot %s (label=%s, objects=%d, refs=%d)",
		snap.ID, label, len(snap.Objects), len(snap.References))
	for _, id := range evicted {
		s.logger.Debug("evicted snapshot %s (retention limit %d)", id, s.maxSnapshots)
	}

	return snap, nil
}

// evictLocked drops oldest snapshots past the retention limit.
// Caller holds the write lock.
func (s *Store) evictLocked() []string {
	if s.maxSnapshots <= 0 {
		return nil
	}
	var evicted []string
	for len(s.order) > s.maxSnapshots {
		id := s.order[0]
		s.order = s.order[1:]
		if _, ok := s.snapshots[id]; ok {
			delete(s.snapshots, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// Get returns the snapshot with the given id, or false if absent.
func (s *Store) Get(id string) (*model.MemorySnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[id]
	return snap, ok
}

// Delete removes the snapshot with the given id. Returns whether it existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snapshots[id]; !ok {
		return false
	}
	delete(s.snapshots, id)
	for i, sid := range s.order {
		if sid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of stored snapshots.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}
