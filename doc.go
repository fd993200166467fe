// Package stategraph is a workflow-graph execution engine: declare named
// processing nodes over a shared, schema-typed state, wire them with
// plain or router-selected edges, compile the graph, and run it to
// completion from START to END.
//
// The engine lives in the graph subpackage; store holds per-superstep
// run history, log is the logging facility, and config loads engine
// options from files. See the graph package documentation for the
// execution model and examples.
package stategraph
