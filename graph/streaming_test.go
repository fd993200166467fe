package graph_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipeworks/stategraph/graph"
)

func TestStream_EmitsLifecycleAndCloses(t *testing.T) {
	t.Parallel()

	runnable := mustCompile(t, buildSequential(t))

	var events []graph.GraphEvent
	for ev := range runnable.Stream(context.Background(), graph.State{"message": "", "count": 0}, nil) {
		events = append(events, ev)
	}

	require.NotEmpty(t, events)
	assert.Equal(t, graph.EventGraphStart, events[0].Type)

	last := events[len(events)-1]
	require.Equal(t, graph.EventGraphEnd, last.Type)
	assert.NoError(t, last.Err)
	assert.Equal(t, " Hello World", last.State["message"])
	assert.Equal(t, 2, last.State["count"])

	var completes []string
	for _, ev := range events {
		if ev.Type == graph.EventNodeComplete {
			completes = append(completes, ev.Node)
		}
	}
	assert.Equal(t, []string{"a", "b"}, completes)
}

func TestStream_ErrorArrivesOnFinalEvent(t *testing.T) {
	t.Parallel()

	g := graph.NewStateGraph(graph.NewMapSchema())
	mustAddNode(t, g, "broken", func(_ context.Context, _ graph.State) (graph.State, error) {
		return nil, assert.AnError
	})
	mustAddEdge(t, g, graph.START, "broken")
	mustAddEdge(t, g, "broken", graph.END)
	runnable := mustCompile(t, g)

	var last graph.GraphEvent
	for ev := range runnable.Stream(context.Background(), graph.State{}, nil) {
		last = ev
	}

	require.Equal(t, graph.EventGraphEnd, last.Type)
	assert.ErrorIs(t, last.Err, assert.AnError)
}

func TestStream_KeepsExistingListeners(t *testing.T) {
	t.Parallel()

	runnable := mustCompile(t, buildSequential(t))
	recorder := &eventRecorder{}

	ch := runnable.Stream(context.Background(),
		graph.State{"message": "", "count": 0},
		graph.WithListeners(recorder))
	for range ch {
	}

	// The configured listener still saw the run alongside the stream.
	assert.NotEmpty(t, recorder.byType(graph.EventGraphEnd))
}
