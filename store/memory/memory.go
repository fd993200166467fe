// Package memory provides the in-process SnapshotStore implementation.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pipeworks/stategraph/store"
)

// SnapshotStore keeps snapshots in memory, keyed by run ID. Safe for
// concurrent use.
type SnapshotStore struct {
	mu    sync.RWMutex
	byID  map[string]*store.Snapshot
	byRun map[string][]*store.Snapshot
}

var _ store.SnapshotStore = (*SnapshotStore)(nil)

// NewSnapshotStore creates an empty in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		byID:  make(map[string]*store.Snapshot),
		byRun: make(map[string][]*store.Snapshot),
	}
}

// Save stores a snapshot.
func (s *SnapshotStore) Save(_ context.Context, snapshot *store.Snapshot) error {
	if snapshot == nil || snapshot.ID == "" {
		return fmt.Errorf("snapshot must have an ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[snapshot.ID] = snapshot
	s.byRun[snapshot.RunID] = append(s.byRun[snapshot.RunID], snapshot)
	return nil
}

// Load retrieves a snapshot by ID.
func (s *SnapshotStore) Load(_ context.Context, snapshotID string) (*store.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.byID[snapshotID]
	if !ok {
		return nil, fmt.Errorf("snapshot %s not found", snapshotID)
	}
	return snapshot, nil
}

// List returns all snapshots for a run, ordered by step.
func (s *SnapshotStore) List(_ context.Context, runID string) ([]*store.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshots := append([]*store.Snapshot(nil), s.byRun[runID]...)
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Step < snapshots[j].Step
	})
	return snapshots, nil
}

// Latest returns the most recent snapshot for a run.
func (s *SnapshotStore) Latest(ctx context.Context, runID string) (*store.Snapshot, error) {
	snapshots, err := s.List(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, fmt.Errorf("no snapshots for run %s", runID)
	}
	return snapshots[len(snapshots)-1], nil
}

// Clear removes all snapshots for a run.
func (s *SnapshotStore) Clear(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snapshot := range s.byRun[runID] {
		delete(s.byID, snapshot.ID)
	}
	delete(s.byRun, runID)
	return nil
}
