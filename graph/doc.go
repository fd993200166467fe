// Package graph provides the workflow-graph compiler and execution
// runtime: declare named nodes operating over a shared, schema-typed
// state, connect them with plain or router-selected edges, compile the
// declaration into an immutable Runnable, and invoke it to completion
// from START to END.
//
// # Building a graph
//
//	schema := graph.NewMapSchema().
//		AddField("message", graph.TypeString).
//		AddField("count", graph.TypeInt)
//
//	g := graph.NewStateGraph(schema)
//	g.AddNode("hello", "adds a greeting", func(ctx context.Context, state graph.State) (graph.State, error) {
//		return graph.State{
//			"message": state["message"].(string) + " Hello",
//			"count":   state["count"].(int) + 1,
//		}, nil
//	})
//	g.AddEdge(graph.START, "hello")
//	g.AddEdge("hello", graph.END)
//
//	runnable, err := g.Compile()
//	final, err := runnable.Invoke(ctx, graph.State{"message": "", "count": 0})
//
// Nodes return partial updates: only the fields they changed. Updates are
// merged into the state through each field's declared reducer, so fields
// declared with AddAppendField accumulate contributions from concurrent
// branches instead of overwriting each other.
//
// # Execution model
//
// A compiled workflow runs in supersteps. Every node in the current
// frontier executes against the same base state; the collected updates
// are merged in one synchronization point; routing against the merged
// state builds the next frontier. Cycles are legal and bounded by a
// configurable superstep ceiling (MaxStepsExceededError when exceeded).
// Nodes within a superstep run in parallel goroutines and are isolated
// from each other's updates by contract.
//
// # Conditional routing
//
//	g.AddConditionalEdge("categorize", func(ctx context.Context, state graph.State) (string, error) {
//		return state["category"].(string), nil
//	}, map[string]string{
//		"negative": "negative",
//		"zero":     "zero",
//		"positive": "positive",
//	})
//
// The path map is the closed set of legal labels; a label outside it
// fails the run with UndefinedRouteLabelError.
//
// Observability is available through GraphListener (lifecycle events),
// Stream (events on a channel), Tracer (spans, optionally bridged to
// OpenTelemetry via OTelHook), and SnapshotListener (per-superstep state
// history).
package graph
