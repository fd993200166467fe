package graph

import (
	"fmt"
	"sort"

	"github.com/pipeworks/stategraph/log"
)

// validate runs the static compile-time checks: entry point presence,
// endpoint existence, conditional path-map completeness, routing
// exclusivity, dead ends, and reachability from START. Cycles are legal;
// termination is enforced dynamically by the superstep ceiling.
func (g *StateGraph) validate(options compileOptions) error {
	outgoing := make(map[string]bool)

	for _, e := range g.edges {
		if !g.isKnown(e.From) {
			return fmt.Errorf("%w: edge source %s", ErrUnknownNode, e.From)
		}
		if !g.isKnown(e.To) {
			return fmt.Errorf("%w: edge target %s", ErrUnknownNode, e.To)
		}
		if _, ok := g.conditionalEdges[e.From]; ok {
			return fmt.Errorf("%w: node %s has both plain and conditional outgoing edges", ErrAmbiguousRouting, e.From)
		}
		outgoing[e.From] = true
	}

	for from, ce := range g.conditionalEdges {
		if from != START {
			if _, ok := g.nodes[from]; !ok {
				return fmt.Errorf("%w: conditional edge source %s", ErrUnknownNode, from)
			}
		}
		if len(ce.PathMap) == 0 {
			return fmt.Errorf("%w: conditional edge from %s has an empty path map", ErrDanglingEdgeTarget, from)
		}
		for label, to := range ce.PathMap {
			if !g.isKnown(to) {
				return fmt.Errorf("%w: label %q of node %s points to %s", ErrDanglingEdgeTarget, label, from, to)
			}
		}
		outgoing[from] = true
	}

	if !outgoing[START] {
		return ErrNoEntryPoint
	}

	for _, name := range sortedNodeNames(g.nodes) {
		if !outgoing[name] {
			return fmt.Errorf("%w: node %s has no outgoing transition", ErrDeadEnd, name)
		}
	}

	return g.checkReachability(options)
}

func (g *StateGraph) isKnown(name string) bool {
	if name == START || name == END {
		return true
	}
	_, ok := g.nodes[name]
	return ok
}

// checkReachability walks the graph from START over plain and conditional
// edges. Unreachable nodes are a hard error in strict mode and a warning
// in permissive mode.
func (g *StateGraph) checkReachability(options compileOptions) error {
	reached := map[string]bool{START: true}
	queue := []string{START}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		var targets []string
		for _, e := range g.edges {
			if e.From == current {
				targets = append(targets, e.To)
			}
		}
		if ce, ok := g.conditionalEdges[current]; ok {
			for _, to := range ce.PathMap {
				targets = append(targets, to)
			}
		}

		for _, to := range targets {
			if to == END || reached[to] {
				continue
			}
			reached[to] = true
			queue = append(queue, to)
		}
	}

	for _, name := range sortedNodeNames(g.nodes) {
		if !reached[name] {
			if options.permissive {
				log.Warn("node %s is unreachable from START", name)
				continue
			}
			return fmt.Errorf("%w: %s", ErrUnreachableNode, name)
		}
	}
	return nil
}

func sortedNodeNames(nodes map[string]Node) []string {
	names := make([]string, 0, len(nodes))
	for name := range nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
