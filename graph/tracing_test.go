package graph_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/pipeworks/stategraph/graph"
)

func tracedSequential(t *testing.T) (*graph.Runnable, *graph.Tracer) {
	t.Helper()
	tracer := graph.NewTracer()
	runnable := mustCompile(t, buildSequential(t)).WithTracer(tracer)
	return runnable, tracer
}

func spansByEvent(spans map[string]*graph.TraceSpan, event graph.TraceEvent) []*graph.TraceSpan {
	var out []*graph.TraceSpan
	for _, span := range spans {
		if span.Event == event {
			out = append(out, span)
		}
	}
	return out
}

func TestTracer_RecordsExecution(t *testing.T) {
	t.Parallel()

	runnable, tracer := tracedSequential(t)

	_, err := runnable.Invoke(context.Background(), graph.State{"message": "", "count": 0})
	require.NoError(t, err)

	spans := tracer.Spans()

	graphSpans := spansByEvent(spans, graph.TraceEventGraphEnd)
	require.Len(t, graphSpans, 1)
	root := graphSpans[0]
	assert.Empty(t, root.ParentID)
	assert.False(t, root.EndTime.IsZero())
	assert.NoError(t, root.Error)

	nodeSpans := spansByEvent(spans, graph.TraceEventNodeEnd)
	require.Len(t, nodeSpans, 2)
	names := map[string]int{}
	for _, span := range nodeSpans {
		names[span.NodeName] = span.Step
		assert.Equal(t, root.ID, span.ParentID)
		assert.GreaterOrEqual(t, span.Duration, span.EndTime.Sub(span.StartTime))
	}
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, names)

	// a->b and b->END traversals.
	edges := spansByEvent(spans, graph.TraceEventEdgeTraversal)
	require.Len(t, edges, 2)
	traversed := map[string]string{}
	for _, span := range edges {
		traversed[span.FromNode] = span.ToNode
	}
	assert.Equal(t, map[string]string{"a": "b", "b": graph.END}, traversed)
}

func TestTracer_NodeErrorSpan(t *testing.T) {
	t.Parallel()

	g := graph.NewStateGraph(graph.NewMapSchema())
	mustAddNode(t, g, "broken", func(_ context.Context, _ graph.State) (graph.State, error) {
		return nil, assert.AnError
	})
	mustAddEdge(t, g, graph.START, "broken")
	mustAddEdge(t, g, "broken", graph.END)

	tracer := graph.NewTracer()
	runnable := mustCompile(t, g).WithTracer(tracer)

	_, err := runnable.Invoke(context.Background(), graph.State{})
	require.Error(t, err)

	errSpans := spansByEvent(tracer.Spans(), graph.TraceEventNodeError)
	require.Len(t, errSpans, 1)
	assert.Equal(t, "broken", errSpans[0].NodeName)
	assert.ErrorIs(t, errSpans[0].Error, assert.AnError)
}

func TestTracer_HooksSeeEverySpan(t *testing.T) {
	t.Parallel()

	runnable, tracer := tracedSequential(t)

	var mu sync.Mutex
	var seen []graph.TraceEvent
	tracer.AddHook(graph.TraceHookFunc(func(_ context.Context, span *graph.TraceSpan) {
		mu.Lock()
		seen = append(seen, span.Event)
		mu.Unlock()
	}))

	_, err := runnable.Invoke(context.Background(), graph.State{"message": "", "count": 0})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	counts := map[graph.TraceEvent]int{}
	for _, ev := range seen {
		counts[ev]++
	}
	assert.Equal(t, 1, counts[graph.TraceEventGraphStart])
	assert.Equal(t, 1, counts[graph.TraceEventGraphEnd])
	assert.Equal(t, 2, counts[graph.TraceEventNodeStart])
	assert.Equal(t, 2, counts[graph.TraceEventNodeEnd])
	assert.Equal(t, 2, counts[graph.TraceEventEdgeTraversal])
}

func TestTracer_SpansAreCopies(t *testing.T) {
	t.Parallel()

	runnable, tracer := tracedSequential(t)
	_, err := runnable.Invoke(context.Background(), graph.State{"message": "", "count": 0})
	require.NoError(t, err)

	for _, span := range tracer.Spans() {
		span.NodeName = "tampered"
		span.Event = graph.TraceEventNodeError
	}

	for _, span := range tracer.Spans() {
		assert.NotEqual(t, "tampered", span.NodeName)
		assert.NotEqual(t, graph.TraceEventNodeError, span.Event)
	}
}

func TestTracer_SpansDuringRunSeeConsistentEndState(t *testing.T) {
	t.Parallel()

	tracer := graph.NewTracer()

	g := graph.NewStateGraph(graph.NewMapSchema())
	mustAddNode(t, g, "work", func(_ context.Context, _ graph.State) (graph.State, error) {
		// Reading the span table while spans are being ended on other
		// goroutines must be safe and never show a half-ended span: an
		// ended span always carries its final event type.
		for _, span := range tracer.Spans() {
			ended := !span.EndTime.IsZero()
			stillStart := span.Event == graph.TraceEventGraphStart || span.Event == graph.TraceEventNodeStart
			if ended && stillStart {
				return nil, fmt.Errorf("span %s ended but still marked %s", span.ID, span.Event)
			}
		}
		return graph.State{}, nil
	})
	mustAddEdge(t, g, graph.START, "work")
	mustAddEdge(t, g, "work", graph.END)

	runnable := mustCompile(t, g).WithTracer(tracer)
	_, err := runnable.Invoke(context.Background(), graph.State{})
	require.NoError(t, err)
}

func TestTracer_Clear(t *testing.T) {
	t.Parallel()

	runnable, tracer := tracedSequential(t)
	_, err := runnable.Invoke(context.Background(), graph.State{"message": "", "count": 0})
	require.NoError(t, err)

	require.NotEmpty(t, tracer.Spans())
	tracer.Clear()
	assert.Empty(t, tracer.Spans())
}

func TestOTelHook_ExportsCompletedSpans(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	hook := graph.NewOTelHookWithTracer(provider.Tracer("test"))

	tracer := graph.NewTracer()
	tracer.AddHook(hook)
	runnable := mustCompile(t, buildSequential(t)).WithTracer(tracer)

	_, err := runnable.Invoke(context.Background(), graph.State{"message": "", "count": 0})
	require.NoError(t, err)

	ended := recorder.Ended()
	// 1 graph span, 2 node spans, 2 edge traversals; starts are skipped.
	require.Len(t, ended, 5)

	names := map[string]int{}
	for _, span := range ended {
		names[span.Name()]++
	}
	assert.Equal(t, 1, names["stategraph.run"])
	assert.Equal(t, 1, names["stategraph.node.a"])
	assert.Equal(t, 1, names["stategraph.node.b"])
	assert.Equal(t, 2, names["stategraph.edge"])
}
