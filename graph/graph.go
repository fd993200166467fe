package graph

import (
	"context"
	"fmt"
)

const (
	// START is the sentinel entry marker. It is not an executable node;
	// its outgoing edges decide the first frontier of an execution.
	START = "START"

	// END is the sentinel terminal marker. A branch that routes to END
	// is finished; execution completes when every branch has.
	END = "END"
)

// NodeFunc is the contract of a node body: it receives the current state
// snapshot and returns a partial update containing only the fields it
// changed. Node bodies must not mutate the received state.
type NodeFunc func(ctx context.Context, state State) (State, error)

// RouterFunc inspects the state after a merge phase and returns the label
// of the outgoing branch to take. The label is resolved against the
// conditional edge's path map.
type RouterFunc func(ctx context.Context, state State) (string, error)

// Node is a named unit of work in the graph.
type Node struct {
	// Name is the unique identifier for the node.
	Name string

	// Description describes the functionality of the node.
	Description string

	// Function is the node body.
	Function NodeFunc
}

// Edge is an unconditional transition between two nodes.
type Edge struct {
	// From is the name of the node the edge originates from.
	From string

	// To is the name of the node the edge points to.
	To string
}

// ConditionalEdge is a router-selected transition: the router produces a
// label, and the path map resolves the label to a concrete target.
type ConditionalEdge struct {
	// From is the source node name.
	From string

	// Router selects the outgoing label from the merged state.
	Router RouterFunc

	// PathMap maps every label the router may produce to a target node
	// name (or END).
	PathMap map[string]string
}

// StateGraph is the declarative node/edge registry built by a caller
// before compilation. It is not safe for concurrent mutation; compile it
// into a Runnable for execution.
type StateGraph struct {
	schema *MapSchema

	nodes            map[string]Node
	edges            []Edge
	conditionalEdges map[string]ConditionalEdge
}

// NewStateGraph creates an empty graph over the given state schema.
func NewStateGraph(schema *MapSchema) *StateGraph {
	if schema == nil {
		schema = NewMapSchema()
	}
	return &StateGraph{
		schema:           schema,
		nodes:            make(map[string]Node),
		conditionalEdges: make(map[string]ConditionalEdge),
	}
}

// Schema returns the state schema the graph was declared over.
func (g *StateGraph) Schema() *MapSchema { return g.schema }

// AddNode registers a node. The name must be unique and must not collide
// with the START/END sentinels.
func (g *StateGraph) AddNode(name, description string, fn NodeFunc) error {
	if name == START || name == END {
		return fmt.Errorf("%w: %q is a reserved sentinel", ErrDuplicateNode, name)
	}
	if _, ok := g.nodes[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, name)
	}
	if fn == nil {
		return fmt.Errorf("node %s has no body", name)
	}
	g.nodes[name] = Node{Name: name, Description: description, Function: fn}
	return nil
}

// AddEdge declares an unconditional transition. Endpoints may be declared
// lazily; existence of both is checked at compile time. A node may have
// several plain outgoing edges (fan-out), but not a plain edge alongside a
// conditional edge.
func (g *StateGraph) AddEdge(from, to string) error {
	if from == END {
		return fmt.Errorf("%w: END has no outgoing edges", ErrUnknownNode)
	}
	if to == START {
		return fmt.Errorf("%w: START has no incoming edges", ErrUnknownNode)
	}
	g.edges = append(g.edges, Edge{From: from, To: to})
	return nil
}

// AddConditionalEdge declares a router-selected transition from a node.
// The path map fixes the legal label set; a label produced at runtime that
// is missing from it fails the execution with UndefinedRouteLabelError.
func (g *StateGraph) AddConditionalEdge(from string, router RouterFunc, pathMap map[string]string) error {
	if from == END {
		return fmt.Errorf("%w: END has no outgoing edges", ErrUnknownNode)
	}
	if router == nil {
		return fmt.Errorf("conditional edge from %s has no router", from)
	}
	if _, ok := g.conditionalEdges[from]; ok {
		return fmt.Errorf("%w: node %s already has a conditional edge", ErrAmbiguousRouting, from)
	}
	paths := make(map[string]string, len(pathMap))
	for label, to := range pathMap {
		paths[label] = to
	}
	g.conditionalEdges[from] = ConditionalEdge{From: from, Router: router, PathMap: paths}
	return nil
}

// Compile validates the graph and freezes it into an executable Runnable.
// Compilation is one-way and idempotent: the Runnable owns immutable
// copies of the registries, so later mutation of the StateGraph does not
// affect it, and compiling twice yields equivalent Runnables.
func (g *StateGraph) Compile(opts ...CompileOption) (*Runnable, error) {
	var options compileOptions
	for _, opt := range opts {
		opt(&options)
	}

	if err := g.validate(options); err != nil {
		return nil, err
	}

	plain := make(map[string][]string)
	for _, e := range g.edges {
		plain[e.From] = append(plain[e.From], e.To)
	}

	nodes := make(map[string]Node, len(g.nodes))
	for name, n := range g.nodes {
		nodes[name] = n
	}

	cond := make(map[string]ConditionalEdge, len(g.conditionalEdges))
	for from, ce := range g.conditionalEdges {
		paths := make(map[string]string, len(ce.PathMap))
		for label, to := range ce.PathMap {
			paths[label] = to
		}
		cond[from] = ConditionalEdge{From: from, Router: ce.Router, PathMap: paths}
	}

	return &Runnable{
		schema:     g.schema,
		nodes:      nodes,
		plain:      plain,
		cond:       cond,
		permissive: options.permissive,
	}, nil
}

// CompileOption adjusts compile-time policy.
type CompileOption func(*compileOptions)

type compileOptions struct {
	permissive bool
}

// Permissive relaxes strict policies: unreachable nodes are logged instead
// of rejected, and same-superstep writes to a plain REPLACE field resolve
// in last-writer frontier order instead of failing.
func Permissive() CompileOption {
	return func(o *compileOptions) { o.permissive = true }
}
