package store

import (
	"context"
	"time"
)

// Snapshot is the merged state of one execution after one superstep.
type Snapshot struct {
	// ID uniquely identifies the snapshot.
	ID string `json:"id"`

	// RunID identifies the execution the snapshot belongs to.
	RunID string `json:"run_id"`

	// Step is the superstep number the snapshot was taken after.
	Step int `json:"step"`

	// Frontier is the set of nodes that ran in that superstep.
	Frontier []string `json:"frontier"`

	// State is the merged state after the superstep.
	State map[string]any `json:"state"`

	// Timestamp is when the snapshot was taken.
	Timestamp time.Time `json:"timestamp"`
}

// SnapshotStore holds the per-superstep history of executions. All
// implementations are in-process; histories do not survive a restart.
type SnapshotStore interface {
	// Save stores a snapshot.
	Save(ctx context.Context, snapshot *Snapshot) error

	// Load retrieves a snapshot by ID.
	Load(ctx context.Context, snapshotID string) (*Snapshot, error)

	// List returns all snapshots for a run, ordered by step.
	List(ctx context.Context, runID string) ([]*Snapshot, error)

	// Latest returns the most recent snapshot for a run.
	Latest(ctx context.Context, runID string) (*Snapshot, error)

	// Clear removes all snapshots for a run.
	Clear(ctx context.Context, runID string) error
}
