package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pipeworks/stategraph/log"
)

// Runnable is the immutable, validated, executable form of a StateGraph.
// It owns the superstep execution algorithm and is safe for concurrent
// Invoke calls: every execution keeps its own state and frontier.
type Runnable struct {
	schema *MapSchema

	nodes map[string]Node
	plain map[string][]string
	cond  map[string]ConditionalEdge

	permissive bool
	tracer     *Tracer
}

// SetTracer sets a tracer for observability.
func (r *Runnable) SetTracer(tracer *Tracer) {
	r.tracer = tracer
}

// GetTracer returns the current tracer.
func (r *Runnable) GetTracer() *Tracer {
	return r.tracer
}

// WithTracer returns a copy of the Runnable with the given tracer.
func (r *Runnable) WithTracer(tracer *Tracer) *Runnable {
	clone := *r
	clone.tracer = tracer
	return &clone
}

// Invoke executes the workflow to completion from the given initial state
// and returns the final merged state.
func (r *Runnable) Invoke(ctx context.Context, initial State) (State, error) {
	return r.InvokeWithConfig(ctx, initial, nil)
}

// InvokeWithConfig executes the workflow with per-invocation settings.
//
// Execution proceeds in supersteps: every node in the current frontier
// runs against the same base state, the collected partial updates are
// merged through the schema's reducers, and routing against the merged
// state builds the next frontier. Execution completes when the frontier
// is empty (all branches reached END) and fails on the first node error,
// undefined route label, or when the superstep ceiling is exceeded.
//
// On failure the accumulated state is returned together with the error.
func (r *Runnable) InvokeWithConfig(ctx context.Context, initial State, config *Config) (State, error) {
	runID := uuid.NewString()
	state := cloneState(initial)
	maxSteps := config.maxSteps()

	if config != nil {
		ctx = WithConfig(ctx, config)
	}

	var graphSpan *TraceSpan
	if r.tracer != nil {
		graphSpan = r.tracer.StartSpan(ctx, TraceEventGraphStart, "")
		graphSpan.State = state
		ctx = ContextWithSpan(ctx, graphSpan)
	}

	finish := func(final State, err error) (State, error) {
		if r.tracer != nil {
			r.tracer.EndSpan(ctx, graphSpan, final, err)
		}
		notifyListeners(ctx, config, &GraphEvent{
			Type:      EventGraphEnd,
			RunID:     runID,
			State:     final,
			Err:       err,
			Timestamp: time.Now(),
		})
		return final, err
	}

	notifyListeners(ctx, config, &GraphEvent{
		Type:      EventGraphStart,
		RunID:     runID,
		State:     state,
		Timestamp: time.Now(),
	})

	frontier, err := r.seedFrontier(ctx, state)
	if err != nil {
		return finish(state, err)
	}

	for step := 1; len(frontier) > 0; step++ {
		if step > maxSteps {
			return finish(state, &MaxStepsExceededError{Limit: maxSteps, State: state})
		}
		log.Debug("superstep %d: frontier %v", step, frontier)

		updates, nodeErr := r.runFrontier(ctx, runID, step, frontier, state, config)

		// Merge whatever the superstep produced before surfacing a
		// failure, so sibling progress is not discarded.
		merged, mergeErr := r.mergeFrontier(frontier, state, updates)
		if mergeErr != nil {
			return finish(state, mergeErr)
		}
		state = merged
		if nodeErr != nil {
			return finish(state, nodeErr)
		}

		next, routeErr := r.routeFrontier(ctx, frontier, state)
		if routeErr != nil {
			return finish(state, routeErr)
		}

		notifyListeners(ctx, config, &GraphEvent{
			Type:      EventSuperstep,
			RunID:     runID,
			Step:      step,
			Frontier:  frontier,
			State:     state,
			Timestamp: time.Now(),
		})

		frontier = next
	}

	return finish(state, nil)
}

// seedFrontier resolves the outgoing transition of START against the
// initial state and returns the first frontier.
func (r *Runnable) seedFrontier(ctx context.Context, state State) ([]string, error) {
	if targets := r.plain[START]; len(targets) > 0 {
		frontier := make([]string, 0, len(targets))
		seen := make(map[string]bool, len(targets))
		for _, to := range targets {
			if to == END || seen[to] {
				continue
			}
			seen[to] = true
			frontier = append(frontier, to)
		}
		return frontier, nil
	}

	ce := r.cond[START]
	target, err := r.resolveConditional(ctx, ce, state)
	if err != nil {
		return nil, err
	}
	if target == END {
		return nil, nil
	}
	return []string{target}, nil
}

// runFrontier executes every frontier node against the same base state and
// returns the collected partial updates, indexed by frontier position.
// All nodes run to completion even when a sibling fails; the first failure
// in frontier order is returned.
func (r *Runnable) runFrontier(ctx context.Context, runID string, step int, frontier []string, base State, config *Config) ([]State, error) {
	var wg sync.WaitGroup
	updates := make([]State, len(frontier))
	errs := make([]error, len(frontier))

	for i, name := range frontier {
		node := r.nodes[name]
		idx := i

		safeGo(&wg, func() {
			var nodeSpan *TraceSpan
			if r.tracer != nil {
				nodeSpan = r.tracer.StartSpan(ctx, TraceEventNodeStart, node.Name)
				nodeSpan.Step = step
				nodeSpan.State = base
			}
			notifyListeners(ctx, config, &GraphEvent{
				Type:      EventNodeStart,
				RunID:     runID,
				Step:      step,
				Node:      node.Name,
				State:     base,
				Timestamp: time.Now(),
			})

			started := time.Now()
			update, err := node.Function(ctx, base)
			elapsed := time.Since(started)

			if r.tracer != nil {
				r.tracer.EndSpan(ctx, nodeSpan, update, err)
			}

			if err != nil {
				errs[idx] = &NodeExecutionError{Node: node.Name, State: base, Err: err}
				notifyListeners(ctx, config, &GraphEvent{
					Type:      EventNodeError,
					RunID:     runID,
					Step:      step,
					Node:      node.Name,
					Err:       errs[idx],
					Timestamp: time.Now(),
					Duration:  elapsed,
				})
				return
			}

			updates[idx] = update
			notifyListeners(ctx, config, &GraphEvent{
				Type:      EventNodeComplete,
				RunID:     runID,
				Step:      step,
				Node:      node.Name,
				Update:    update,
				Timestamp: time.Now(),
				Duration:  elapsed,
			})
		}, func(panicVal any) {
			errs[idx] = &NodeExecutionError{
				Node:  node.Name,
				State: base,
				Err:   fmt.Errorf("panic: %v", panicVal),
			}
		})
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return updates, err
		}
	}
	return updates, nil
}

// mergeFrontier folds the collected partial updates into the superstep's
// base state, field by field through the schema's reducers, and returns a
// new snapshot. Updates are applied in frontier order. In strict mode two
// writes to the same plain REPLACE field fail with UpdateConflictError.
// A panicking reducer surfaces as a NodeExecutionError, never as a panic
// of the invoking goroutine.
func (r *Runnable) mergeFrontier(frontier []string, base State, updates []State) (_ State, err error) {
	merged := cloneState(base)
	writers := make(map[string]string)

	var name string
	defer func() {
		if v := recover(); v != nil {
			err = &NodeExecutionError{Node: name, State: base, Err: fmt.Errorf("merge panic: %v", v)}
		}
	}()

	for i, update := range updates {
		if update == nil {
			continue
		}
		name = frontier[i]

		for key, value := range update {
			field, ok := r.schema.Lookup(key)
			if ok && field.Reducer == nil {
				if prev, clash := writers[key]; clash && !r.permissive {
					return nil, &UpdateConflictError{Field: key, Nodes: []string{prev, name}}
				}
				writers[key] = name
			}

			result, err := r.schema.reduce(key, merged[key], value)
			if err != nil {
				return nil, &NodeExecutionError{Node: name, State: base, Err: err}
			}
			merged[key] = result
		}
	}
	return merged, nil
}

// routeFrontier resolves the outgoing transition of every node that just
// ran, against the merged state, and returns the deduplicated next
// frontier. END targets are dropped: those branches are finished.
func (r *Runnable) routeFrontier(ctx context.Context, frontier []string, state State) ([]string, error) {
	var next []string
	seen := make(map[string]bool)

	add := func(from, to string) {
		if r.tracer != nil {
			r.tracer.TraceEdgeTraversal(ctx, from, to)
		}
		if to == END {
			log.Debug("branch at %s reached END", from)
			return
		}
		if !seen[to] {
			seen[to] = true
			next = append(next, to)
		}
	}

	for _, name := range frontier {
		if ce, ok := r.cond[name]; ok {
			target, err := r.resolveConditional(ctx, ce, state)
			if err != nil {
				return nil, err
			}
			add(name, target)
			continue
		}
		for _, to := range r.plain[name] {
			add(name, to)
		}
	}
	return next, nil
}

// resolveConditional invokes a router and looks its label up in the path
// map.
func (r *Runnable) resolveConditional(ctx context.Context, ce ConditionalEdge, state State) (string, error) {
	label, err := ce.Router(ctx, state)
	if err != nil {
		return "", &NodeExecutionError{Node: ce.From, State: state, Err: fmt.Errorf("router: %w", err)}
	}
	target, ok := ce.PathMap[label]
	if !ok {
		return "", &UndefinedRouteLabelError{Node: ce.From, Label: label, Known: sortedLabels(ce.PathMap)}
	}
	return target, nil
}

func sortedLabels(pathMap map[string]string) []string {
	labels := make([]string, 0, len(pathMap))
	for label := range pathMap {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// safeGo runs fn on the WaitGroup with panic recovery routed to onPanic.
func safeGo(wg *sync.WaitGroup, fn func(), onPanic func(panicVal any)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if v := recover(); v != nil {
				onPanic(v)
			}
		}()
		fn()
	}()
}
