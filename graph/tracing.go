package graph

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TraceEvent classifies spans recorded during graph execution.
type TraceEvent string

const (
	// TraceEventGraphStart indicates the start of graph execution.
	TraceEventGraphStart TraceEvent = "graph_start"

	// TraceEventGraphEnd indicates the end of graph execution.
	TraceEventGraphEnd TraceEvent = "graph_end"

	// TraceEventNodeStart indicates the start of node execution.
	TraceEventNodeStart TraceEvent = "node_start"

	// TraceEventNodeEnd indicates the end of node execution.
	TraceEventNodeEnd TraceEvent = "node_end"

	// TraceEventNodeError indicates an error occurred in node execution.
	TraceEventNodeError TraceEvent = "node_error"

	// TraceEventEdgeTraversal indicates traversal from one node to another.
	TraceEventEdgeTraversal TraceEvent = "edge_traversal"
)

// TraceSpan represents a span of execution with timing and metadata.
type TraceSpan struct {
	// ID is a unique identifier for this span.
	ID string

	// ParentID is the ID of the parent span (empty for root spans).
	ParentID string

	// Event indicates the type of event this span represents.
	Event TraceEvent

	// NodeName is the name of the node being executed (if applicable).
	NodeName string

	// Step is the superstep the span belongs to (node spans only).
	Step int

	// FromNode and ToNode identify edge traversals.
	FromNode string
	ToNode   string

	// StartTime is when this span began.
	StartTime time.Time

	// EndTime is when this span completed (zero for ongoing spans).
	EndTime time.Time

	// Duration is the total time taken, set when the span ends.
	Duration time.Duration

	// State is a snapshot of the state at this point (optional).
	State any

	// Error contains any error that occurred during execution.
	Error error
}

// TraceHook receives every span event a Tracer records.
type TraceHook interface {
	OnEvent(ctx context.Context, span *TraceSpan)
}

// TraceHookFunc adapts a function to the TraceHook interface.
type TraceHookFunc func(ctx context.Context, span *TraceSpan)

// OnEvent implements TraceHook.
func (f TraceHookFunc) OnEvent(ctx context.Context, span *TraceSpan) {
	f(ctx, span)
}

// Tracer collects spans for one or more executions and forwards them to
// registered hooks. It is safe for concurrent use; node spans of a
// superstep are recorded from parallel goroutines.
type Tracer struct {
	mu    sync.Mutex
	hooks []TraceHook
	spans map[string]*TraceSpan
}

// NewTracer creates a new tracer instance.
func NewTracer() *Tracer {
	return &Tracer{spans: make(map[string]*TraceSpan)}
}

// AddHook registers a new trace hook.
func (t *Tracer) AddHook(hook TraceHook) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks = append(t.hooks, hook)
}

// StartSpan creates and records a new trace span.
func (t *Tracer) StartSpan(ctx context.Context, event TraceEvent, nodeName string) *TraceSpan {
	span := &TraceSpan{
		ID:        uuid.NewString(),
		Event:     event,
		NodeName:  nodeName,
		StartTime: time.Now(),
	}
	if parent := SpanFromContext(ctx); parent != nil {
		span.ParentID = parent.ID
	}

	t.record(ctx, span)
	return span
}

// EndSpan completes a trace span. The mutation happens under the tracer
// lock so a concurrent Spans call never observes a half-ended span.
func (t *Tracer) EndSpan(ctx context.Context, span *TraceSpan, state any, err error) {
	if span == nil {
		return
	}

	t.mu.Lock()
	span.EndTime = time.Now()
	span.Duration = span.EndTime.Sub(span.StartTime)
	span.State = state
	span.Error = err

	switch {
	case span.Event == TraceEventNodeStart && err != nil:
		span.Event = TraceEventNodeError
	case span.Event == TraceEventNodeStart:
		span.Event = TraceEventNodeEnd
	case span.Event == TraceEventGraphStart:
		span.Event = TraceEventGraphEnd
	}
	t.mu.Unlock()

	t.notify(ctx, span)
}

// TraceEdgeTraversal records an edge traversal event.
func (t *Tracer) TraceEdgeTraversal(ctx context.Context, fromNode, toNode string) {
	now := time.Now()
	span := &TraceSpan{
		ID:        uuid.NewString(),
		Event:     TraceEventEdgeTraversal,
		FromNode:  fromNode,
		ToNode:    toNode,
		StartTime: now,
		EndTime:   now,
	}
	if parent := SpanFromContext(ctx); parent != nil {
		span.ParentID = parent.ID
	}
	t.record(ctx, span)
}

// Spans returns a snapshot of all collected spans keyed by span ID. The
// returned spans are copies; they do not change when a span later ends.
func (t *Tracer) Spans() map[string]*TraceSpan {
	t.mu.Lock()
	defer t.mu.Unlock()
	spans := make(map[string]*TraceSpan, len(t.spans))
	for id, span := range t.spans {
		clone := *span
		spans[id] = &clone
	}
	return spans
}

// Clear removes all collected spans.
func (t *Tracer) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spans = make(map[string]*TraceSpan)
}

func (t *Tracer) record(ctx context.Context, span *TraceSpan) {
	t.mu.Lock()
	t.spans[span.ID] = span
	t.mu.Unlock()
	t.notify(ctx, span)
}

func (t *Tracer) notify(ctx context.Context, span *TraceSpan) {
	t.mu.Lock()
	hooks := make([]TraceHook, len(t.hooks))
	copy(hooks, t.hooks)
	t.mu.Unlock()

	for _, hook := range hooks {
		hook.OnEvent(ctx, span)
	}
}

type spanContextKey struct{}

// ContextWithSpan returns a new context with the span stored.
func ContextWithSpan(ctx context.Context, span *TraceSpan) context.Context {
	return context.WithValue(ctx, spanContextKey{}, span)
}

// SpanFromContext extracts a span from context.
func SpanFromContext(ctx context.Context) *TraceSpan {
	if span, ok := ctx.Value(spanContextKey{}).(*TraceSpan); ok {
		return span
	}
	return nil
}

// OTelHook forwards completed trace spans to an OpenTelemetry tracer, so
// graph executions show up in whatever backend the global OTel provider
// exports to. Configure the provider before the first execution:
//
//	otel.SetTracerProvider(yourProvider)
//	tracer := graph.NewTracer()
//	tracer.AddHook(graph.NewOTelHook("myservice"))
type OTelHook struct {
	tracer trace.Tracer
}

// NewOTelHook creates an OTel bridge hook using the global tracer
// provider under the given instrumentation name.
func NewOTelHook(name string) *OTelHook {
	return &OTelHook{tracer: otel.Tracer(name)}
}

// NewOTelHookWithTracer creates an OTel bridge hook around an explicit
// tracer, bypassing the global provider.
func NewOTelHookWithTracer(tracer trace.Tracer) *OTelHook {
	return &OTelHook{tracer: tracer}
}

// OnEvent implements TraceHook. Only completed spans are exported; span
// starts are ignored so each engine span maps to exactly one OTel span.
func (h *OTelHook) OnEvent(ctx context.Context, span *TraceSpan) {
	if span.EndTime.IsZero() {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("graph.span.event", string(span.Event)),
	}
	name := "stategraph.run"
	switch span.Event {
	case TraceEventNodeEnd, TraceEventNodeError:
		name = "stategraph.node." + span.NodeName
		attrs = append(attrs,
			attribute.String("graph.node", span.NodeName),
			attribute.Int("graph.step", span.Step),
		)
	case TraceEventEdgeTraversal:
		name = "stategraph.edge"
		attrs = append(attrs,
			attribute.String("graph.edge.from", span.FromNode),
			attribute.String("graph.edge.to", span.ToNode),
		)
	}

	_, otelSpan := h.tracer.Start(ctx, name,
		trace.WithTimestamp(span.StartTime),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	if span.Error != nil {
		otelSpan.RecordError(span.Error)
		otelSpan.SetStatus(codes.Error, span.Error.Error())
	} else {
		otelSpan.SetStatus(codes.Ok, "")
	}
	otelSpan.End(trace.WithTimestamp(span.EndTime))
}
