package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipeworks/stategraph/store"
)

func newSnapshot(runID string, step int) *store.Snapshot {
	return &store.Snapshot{
		ID:        fmt.Sprintf("%s-%d", runID, step),
		RunID:     runID,
		Step:      step,
		Frontier:  []string{"node"},
		State:     map[string]any{"step": step},
		Timestamp: time.Now(),
	}
}

func TestSnapshotStore_SaveAndLoad(t *testing.T) {
	t.Parallel()

	st := NewSnapshotStore()
	ctx := context.Background()

	snap := newSnapshot("run-1", 1)
	require.NoError(t, st.Save(ctx, snap))

	loaded, err := st.Load(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap, loaded)

	_, err = st.Load(ctx, "missing")
	assert.Error(t, err)
}

func TestSnapshotStore_RejectsMissingID(t *testing.T) {
	t.Parallel()

	st := NewSnapshotStore()
	assert.Error(t, st.Save(context.Background(), &store.Snapshot{RunID: "run-1"}))
	assert.Error(t, st.Save(context.Background(), nil))
}

func TestSnapshotStore_ListOrdersByStep(t *testing.T) {
	t.Parallel()

	st := NewSnapshotStore()
	ctx := context.Background()

	// Saved out of order on purpose.
	for _, step := range []int{3, 1, 2} {
		require.NoError(t, st.Save(ctx, newSnapshot("run-1", step)))
	}
	require.NoError(t, st.Save(ctx, newSnapshot("run-2", 1)))

	history, err := st.List(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, snap := range history {
		assert.Equal(t, i+1, snap.Step)
	}

	empty, err := st.List(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSnapshotStore_Latest(t *testing.T) {
	t.Parallel()

	st := NewSnapshotStore()
	ctx := context.Background()

	_, err := st.Latest(ctx, "run-1")
	assert.Error(t, err)

	for step := 1; step <= 3; step++ {
		require.NoError(t, st.Save(ctx, newSnapshot("run-1", step)))
	}

	latest, err := st.Latest(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 3, latest.Step)
}

func TestSnapshotStore_Clear(t *testing.T) {
	t.Parallel()

	st := NewSnapshotStore()
	ctx := context.Background()

	snap := newSnapshot("run-1", 1)
	require.NoError(t, st.Save(ctx, snap))
	require.NoError(t, st.Save(ctx, newSnapshot("run-2", 1)))

	require.NoError(t, st.Clear(ctx, "run-1"))

	_, err := st.Load(ctx, snap.ID)
	assert.Error(t, err)

	history, err := st.List(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, history)

	// Other runs are untouched.
	history, err = st.List(ctx, "run-2")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSnapshotStore_ConcurrentSaves(t *testing.T) {
	t.Parallel()

	st := NewSnapshotStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(step int) {
			defer wg.Done()
			_ = st.Save(ctx, newSnapshot("run-1", step))
		}(i)
	}
	wg.Wait()

	history, err := st.List(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, history, 20)
}
