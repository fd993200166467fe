package graph

import (
	"context"

	"github.com/google/uuid"

	"github.com/pipeworks/stategraph/log"
	"github.com/pipeworks/stategraph/store"
)

// SnapshotListener records the merged state after every superstep into a
// SnapshotStore, keyed by run ID, giving callers an in-process history of
// an execution to inspect after the fact.
//
//	st := memory.NewSnapshotStore()
//	cfg := graph.WithListeners(graph.NewSnapshotListener(st))
//	_, err := runnable.InvokeWithConfig(ctx, initial, cfg)
//	history, _ := st.List(ctx, runID)
type SnapshotListener struct {
	store store.SnapshotStore
}

// NewSnapshotListener creates a listener recording into the given store.
func NewSnapshotListener(st store.SnapshotStore) *SnapshotListener {
	return &SnapshotListener{store: st}
}

var _ GraphListener = (*SnapshotListener)(nil)

// OnGraphEvent implements GraphListener. Only superstep events are
// recorded; a failed save is logged, never surfaced into the execution.
func (l *SnapshotListener) OnGraphEvent(ctx context.Context, event *GraphEvent) {
	if event.Type != EventSuperstep {
		return
	}

	snapshot := &store.Snapshot{
		ID:        uuid.NewString(),
		RunID:     event.RunID,
		Step:      event.Step,
		Frontier:  append([]string(nil), event.Frontier...),
		State:     event.State,
		Timestamp: event.Timestamp,
	}
	if err := l.store.Save(ctx, snapshot); err != nil {
		log.Warn("snapshot save failed for run %s step %d: %v", event.RunID, event.Step, err)
	}
}
