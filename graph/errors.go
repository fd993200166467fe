package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Build-time errors. All of them indicate a programming error in the graph
// declaration and abort AddNode/AddEdge/Compile immediately.
var (
	// ErrDuplicateNode is returned when a node name is registered twice,
	// or collides with the START/END sentinels.
	ErrDuplicateNode = errors.New("duplicate node")

	// ErrUnknownNode is returned when an edge references a node name that
	// was never registered.
	ErrUnknownNode = errors.New("unknown node")

	// ErrDanglingEdgeTarget is returned when a conditional edge has an
	// empty path map, or a path map entry points at an unregistered node.
	ErrDanglingEdgeTarget = errors.New("dangling edge target")

	// ErrAmbiguousRouting is returned when a node has both a plain outgoing
	// edge and a conditional outgoing edge. A node's outgoing transition
	// must be wholly plain or wholly conditional.
	ErrAmbiguousRouting = errors.New("ambiguous routing")

	// ErrNoEntryPoint is returned when START has no outgoing edge.
	ErrNoEntryPoint = errors.New("no entry point")

	// ErrUnreachableNode is returned when a registered node cannot be
	// reached from START through any combination of edges.
	ErrUnreachableNode = errors.New("unreachable node")

	// ErrDeadEnd is returned when a registered node has no outgoing
	// transition at all, so no branch through it could ever reach END.
	ErrDeadEnd = errors.New("dead-end node")
)

// NodeExecutionError wraps a failure raised by a node body. It carries the
// node name and the base state the node was invoked with.
type NodeExecutionError struct {
	// Node is the name of the node whose body failed.
	Node string

	// State is the superstep base state the node received.
	State State

	// Err is the underlying failure.
	Err error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %s failed: %v", e.Node, e.Err)
}

func (e *NodeExecutionError) Unwrap() error { return e.Err }

// UndefinedRouteLabelError is returned when a router produces a label that
// is absent from its conditional edge's path map.
type UndefinedRouteLabelError struct {
	// Node is the source node of the conditional edge.
	Node string

	// Label is the label the router returned.
	Label string

	// Known holds the labels the path map does define, sorted.
	Known []string
}

func (e *UndefinedRouteLabelError) Error() string {
	return fmt.Sprintf("router for node %s returned undefined label %q (known labels: %s)",
		e.Node, e.Label, strings.Join(e.Known, ", "))
}

// MaxStepsExceededError is returned when an execution runs more supersteps
// than the configured ceiling, the runtime defense against a conditional
// edge that never routes to END.
type MaxStepsExceededError struct {
	// Limit is the superstep ceiling that was exceeded.
	Limit int

	// State is the merged state accumulated before the execution aborted.
	State State
}

func (e *MaxStepsExceededError) Error() string {
	return fmt.Sprintf("execution exceeded %d supersteps without reaching END", e.Limit)
}

// UpdateConflictError is returned in strict mode when two nodes of the same
// superstep both write a plain REPLACE field. Registering a reducer for the
// field, or compiling with Permissive, resolves the conflict.
type UpdateConflictError struct {
	// Field is the state field written twice.
	Field string

	// Nodes are the conflicting writers.
	Nodes []string
}

func (e *UpdateConflictError) Error() string {
	nodes := append([]string(nil), e.Nodes...)
	sort.Strings(nodes)
	return fmt.Sprintf("conflicting updates to field %q from nodes %s in the same superstep",
		e.Field, strings.Join(nodes, " and "))
}
