package graph_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipeworks/stategraph/graph"
	"github.com/pipeworks/stategraph/store"
	"github.com/pipeworks/stategraph/store/memory"
)

func TestSnapshotListener_RecordsRunHistory(t *testing.T) {
	t.Parallel()

	st := memory.NewSnapshotStore()
	recorder := &eventRecorder{}
	runnable := mustCompile(t, buildSequential(t))

	_, err := runnable.InvokeWithConfig(context.Background(),
		graph.State{"message": "", "count": 0},
		graph.WithListeners(graph.NewSnapshotListener(st), recorder))
	require.NoError(t, err)

	ends := recorder.byType(graph.EventGraphEnd)
	require.Len(t, ends, 1)
	runID := ends[0].RunID

	ctx := context.Background()
	history, err := st.List(ctx, runID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, 1, history[0].Step)
	assert.Equal(t, []string{"a"}, history[0].Frontier)
	assert.Equal(t, " Hello", history[0].State["message"])

	assert.Equal(t, 2, history[1].Step)
	assert.Equal(t, []string{"b"}, history[1].Frontier)
	assert.Equal(t, " Hello World", history[1].State["message"])

	latest, err := st.Latest(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, history[1].ID, latest.ID)
}

func TestSnapshotListener_SeparatesRuns(t *testing.T) {
	t.Parallel()

	st := memory.NewSnapshotStore()
	recorder := &eventRecorder{}
	runnable := mustCompile(t, buildSequential(t))

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := runnable.InvokeWithConfig(ctx,
			graph.State{"message": "", "count": 0},
			graph.WithListeners(graph.NewSnapshotListener(st), recorder))
		require.NoError(t, err)
	}

	ends := recorder.byType(graph.EventGraphEnd)
	require.Len(t, ends, 2)
	require.NotEqual(t, ends[0].RunID, ends[1].RunID)

	for _, end := range ends {
		history, err := st.List(ctx, end.RunID)
		require.NoError(t, err)
		assert.Len(t, history, 2)
	}
}

func TestSnapshotListener_SaveFailureDoesNotAbortRun(t *testing.T) {
	t.Parallel()

	runnable := mustCompile(t, buildSequential(t))

	final, err := runnable.InvokeWithConfig(context.Background(),
		graph.State{"message": "", "count": 0},
		graph.WithListeners(graph.NewSnapshotListener(failingStore{})))
	require.NoError(t, err)
	assert.Equal(t, " Hello World", final["message"])
}

type failingStore struct{}

func (failingStore) Save(context.Context, *store.Snapshot) error { return assert.AnError }
func (failingStore) Load(context.Context, string) (*store.Snapshot, error) {
	return nil, assert.AnError
}
func (failingStore) List(context.Context, string) ([]*store.Snapshot, error) {
	return nil, assert.AnError
}
func (failingStore) Latest(context.Context, string) (*store.Snapshot, error) {
	return nil, assert.AnError
}
func (failingStore) Clear(context.Context, string) error { return assert.AnError }
