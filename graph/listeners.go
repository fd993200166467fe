package graph

import (
	"context"
	"sync"
	"time"
)

// EventType classifies lifecycle events emitted during an execution.
type EventType string

const (
	// EventGraphStart is emitted once before the first superstep.
	EventGraphStart EventType = "graph_start"

	// EventGraphEnd is emitted once when the execution completes or fails.
	EventGraphEnd EventType = "graph_end"

	// EventNodeStart is emitted when a node body begins executing.
	EventNodeStart EventType = "node_start"

	// EventNodeComplete is emitted when a node body returns its update.
	EventNodeComplete EventType = "node_complete"

	// EventNodeError is emitted when a node body fails.
	EventNodeError EventType = "node_error"

	// EventSuperstep is emitted after each merge+routing round, with the
	// merged state and the frontier that just ran.
	EventSuperstep EventType = "superstep"
)

// GraphEvent is one lifecycle event. Which fields are populated depends on
// the event type.
type GraphEvent struct {
	// Type classifies the event.
	Type EventType

	// RunID identifies the execution that emitted the event.
	RunID string

	// Step is the superstep number, starting at 1. Zero for graph_start.
	Step int

	// Node is the node name for node-scoped events.
	Node string

	// Frontier is the set of nodes that ran in this superstep.
	Frontier []string

	// State is the relevant state snapshot: the base state for starts,
	// the merged state for superstep and graph_end events.
	State State

	// Update is the partial update a node returned (node_complete only).
	Update State

	// Err is the failure for node_error and failed graph_end events.
	Err error

	// Timestamp is when the event occurred.
	Timestamp time.Time

	// Duration is how long the node body ran (node_complete/node_error).
	Duration time.Duration

	// Tags and Metadata are copied from the invocation Config.
	Tags     []string
	Metadata map[string]any
}

// GraphListener observes lifecycle events of an execution. Implementations
// must be safe for concurrent calls: node-scoped events for one superstep
// are emitted from parallel goroutines.
type GraphListener interface {
	OnGraphEvent(ctx context.Context, event *GraphEvent)
}

// GraphListenerFunc adapts a function to the GraphListener interface.
type GraphListenerFunc func(ctx context.Context, event *GraphEvent)

// OnGraphEvent implements GraphListener.
func (f GraphListenerFunc) OnGraphEvent(ctx context.Context, event *GraphEvent) {
	f(ctx, event)
}

// notifyListeners delivers one event to every listener, waiting for all of
// them before execution proceeds. A panicking listener is isolated so it
// cannot abort the run.
func notifyListeners(ctx context.Context, config *Config, event *GraphEvent) {
	if config == nil || len(config.Listeners) == 0 {
		return
	}

	event.Tags = config.Tags
	event.Metadata = config.Metadata

	var wg sync.WaitGroup
	for _, listener := range config.Listeners {
		wg.Add(1)
		go func(l GraphListener) {
			defer wg.Done()
			defer func() { _ = recover() }()
			l.OnGraphEvent(ctx, event)
		}(listener)
	}
	wg.Wait()
}
