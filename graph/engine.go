// Package graph provides the core graph execution engine for the workflow
// runtime: a generic node/edge graph with reducer-based state merge,
// conditional routing, and bounded-concurrent fan-out with join-back.
package graph

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/proposalforge/rfpflow/graph/emit"
	"github.com/proposalforge/rfpflow/graph/store"
)

// contextKey avoids collisions with context keys from other packages.
type contextKey string

const (
	// RunIDKey is the context key for the unique workflow run identifier.
	RunIDKey contextKey = "graph.run_id"
	// StepIDKey is the context key for the current execution step number.
	StepIDKey contextKey = "graph.step_id"
	// NodeIDKey is the context key for the current node identifier.
	NodeIDKey contextKey = "graph.node_id"
)

// Reducer merges a node's Delta into the accumulated state. Implementations
// decide per field whether to replace, append, or merge; see workflow.Reduce
// for the concrete rules used by the RFP graph.
type Reducer[S any] func(prev, delta S) (S, error)

// Engine executes a graph of Node[S] values connected by Edge[S] predicates
// and explicit Next routing, accumulating state via a Reducer.
type Engine[S any] struct {
	reducer   Reducer[S]
	store     store.Store[S]
	emitter   emit.Emitter
	nodes     map[string]Node[S]
	policies  map[string]NodePolicy
	edges     []Edge[S]
	startNode string

	cfg engineConfig
}

// New constructs an Engine with the given reducer, store, emitter and
// options. Most callers should pass store.NewMemStore[S]() for st and a
// real emit.Emitter; either may be nil if that facility is not needed.
func New[S any](reducer Reducer[S], st store.Store[S], emitter emit.Emitter, opts ...Option) (*Engine[S], error) {
	cfg := engineConfig{
		defaultNodeTimeout: 30 * time.Second,
		logger:             noopLogger{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if cfg.logger == nil {
		cfg.logger = noopLogger{}
	}

	return &Engine[S]{
		reducer:  reducer,
		store:    st,
		emitter:  emitter,
		nodes:    make(map[string]Node[S]),
		policies: make(map[string]NodePolicy),
		cfg:      cfg,
	}, nil
}

// Add registers a node under id, with an optional policy (timeout/retry).
// Registering the same id twice overwrites the previous registration.
func (e *Engine[S]) Add(id string, n Node[S], policy ...NodePolicy) {
	e.nodes[id] = n
	if len(policy) > 0 {
		e.policies[id] = policy[0]
	}
}

// Connect adds a conditional edge evaluated when a node's Route does not
// explicitly name a next node (i.e. Route is the zero Next{}).
func (e *Engine[S]) Connect(from, to string, when Predicate[S]) {
	e.edges = append(e.edges, Edge[S]{From: from, To: to, When: when})
}

// StartAt sets the entry node for Run.
func (e *Engine[S]) StartAt(id string) {
	e.startNode = id
}

func (e *Engine[S]) emit(ev emit.Event) {
	if e.emitter != nil {
		e.emitter.Emit(ev)
	}
}

func (e *Engine[S]) nodeTimeout(nodeID string) time.Duration {
	if p, ok := e.policies[nodeID]; ok && p.Timeout > 0 {
		return p.Timeout
	}
	return e.cfg.defaultNodeTimeout
}

func (e *Engine[S]) runNode(ctx context.Context, runID string, step int, nodeID string, state S) NodeResult[S] {
	n, ok := e.nodes[nodeID]
	if !ok {
		return NodeResult[S]{Err: &NodeError{Message: "node not registered", Code: "UNKNOWN_NODE", NodeID: nodeID}}
	}

	policy := e.policies[nodeID]
	maxAttempts := 1
	if policy.RetryPolicy != nil && policy.RetryPolicy.MaxAttempts > maxAttempts {
		maxAttempts = policy.RetryPolicy.MaxAttempts
	}

	var result NodeResult[S]
	for attempt := 0; attempt < maxAttempts; attempt++ {
		runCtx := context.WithValue(context.WithValue(context.WithValue(ctx, RunIDKey, runID), StepIDKey, step), NodeIDKey, nodeID)
		timeout := e.nodeTimeout(nodeID)
		var cancel context.CancelFunc
		if timeout > 0 {
			runCtx, cancel = context.WithTimeout(runCtx, timeout)
		}

		start := time.Now()
		result = n.Run(runCtx, state)
		latency := time.Since(start)
		if cancel != nil {
			cancel()
		}

		status := "success"
		if result.Err != nil {
			status = "error"
		}
		if e.cfg.metrics != nil {
			e.cfg.metrics.RecordStepLatency(runID, nodeID, latency, status)
		}
		e.cfg.logger.Infow("node executed", "run_id", runID, "node_id", nodeID, "status", status, "latency_ms", latency.Milliseconds(), "attempt", attempt+1)

		if result.Err == nil {
			return result
		}
		if policy.RetryPolicy == nil || policy.RetryPolicy.Retryable == nil || !policy.RetryPolicy.Retryable(result.Err) {
			return result
		}
		if attempt == maxAttempts-1 {
			return result
		}

		if e.cfg.metrics != nil {
			e.cfg.metrics.IncrementRetries(runID, nodeID, "error")
		}
		delay := computeBackoff(attempt, policy.RetryPolicy.BaseDelay, policy.RetryPolicy.MaxDelay, nil)
		select {
		case <-ctx.Done():
			return result
		case <-time.After(delay):
		}
	}
	return result
}

// Run executes the graph starting at StartAt's node until a terminal route,
// an unmatched route (ErrNoRoute), MaxSteps, or the wall-clock budget is
// reached.
//
// runID identifies this execution for store persistence and emitted events.
func (e *Engine[S]) Run(ctx context.Context, runID string, initial S) (S, error) {
	if e.startNode == "" {
		var zero S
		return zero, &EngineError{Message: "no start node configured", Code: "NO_START_NODE"}
	}
	return e.RunFrom(ctx, runID, e.startNode, initial)
}

// RunFrom executes the graph starting at a node other than StartAt's,
// otherwise identical to Run. It is what Manager.ApproveOutline uses to
// resume a run paused at human_approval: after Step merges the approval
// into state, RunFrom("proposal_builder", ...) drives the rest of the graph
// to completion under the same loop Run uses.
func (e *Engine[S]) RunFrom(ctx context.Context, runID string, startNode string, initial S) (S, error) {
	if e.cfg.runWallClockBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.runWallClockBudget)
		defer cancel()
	}

	state := initial
	current := startNode
	step := 0

	for {
		if err := ctx.Err(); err != nil {
			return state, err
		}
		step++
		if e.cfg.maxSteps > 0 && step > e.cfg.maxSteps {
			return state, &EngineError{Message: "max steps exceeded", Code: "MAX_STEPS_EXCEEDED", Cause: ErrMaxStepsExceeded}
		}

		result := e.runNode(ctx, runID, step, current, state)
		if result.Err != nil {
			e.emit(emit.Event{RunID: runID, Step: step, NodeID: current, Msg: "node_error", Meta: map[string]interface{}{"error": result.Err.Error()}})
			return state, result.Err
		}

		merged, err := e.reducer(state, result.Delta)
		if err != nil {
			if e.cfg.metrics != nil {
				e.cfg.metrics.IncrementMergeConflicts(runID, "reducer_error")
			}
			return state, &EngineError{Message: "state merge failed", Code: "MERGE_CONFLICT", Cause: err}
		}
		state = merged

		if e.store != nil {
			if err := e.store.SaveStep(ctx, runID, step, current, state); err != nil {
				e.cfg.logger.Warnw("save step failed", "run_id", runID, "step", step, "error", err)
			}
		}
		e.emit(emit.Event{RunID: runID, Step: step, NodeID: current, Msg: "node_complete"})

		route := result.Route

		switch {
		case route.Terminal:
			return state, nil

		case len(route.Many) > 0:
			joined, err := e.runParallel(ctx, runID, step, route.Many, state)
			if err != nil {
				return state, err
			}
			state = joined
			if route.JoinTo == "" {
				return state, nil
			}
			current = route.JoinTo
			continue

		case route.To != "":
			current = route.To
			continue

		default:
			next, matched := e.evaluateEdges(current, state)
			if !matched {
				return state, &EngineError{Message: fmt.Sprintf("no route from node %q", current), Code: "NO_ROUTE", Cause: ErrNoRoute}
			}
			current = next
			continue
		}
	}
}

// runParallel executes each named node concurrently against the same base
// state, then merges every branch's Delta back into it in the order the
// branches were listed (so the result is independent of completion order),
// and returns the joined state. Concurrency is bounded by
// engineConfig.maxConcurrent when set.
func (e *Engine[S]) runParallel(ctx context.Context, runID string, step int, nodeIDs []string, base S) (S, error) {
	results := make([]NodeResult[S], len(nodeIDs))

	g, gctx := errgroup.WithContext(ctx)
	if e.cfg.maxConcurrent > 0 {
		g.SetLimit(e.cfg.maxConcurrent)
	}

	if e.cfg.metrics != nil {
		e.cfg.metrics.UpdateInflightNodes(len(nodeIDs))
		defer e.cfg.metrics.UpdateInflightNodes(0)
	}

	for i, id := range nodeIDs {
		i, id := i, id
		g.Go(func() error {
			results[i] = e.runNode(gctx, runID, step, id, base)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return base, err
	}

	state := base
	for i, result := range results {
		if result.Err != nil {
			return base, &EngineError{Message: fmt.Sprintf("branch %q failed", nodeIDs[i]), Code: "BRANCH_ERROR", Cause: result.Err}
		}
		merged, err := e.reducer(state, result.Delta)
		if err != nil {
			if e.cfg.metrics != nil {
				e.cfg.metrics.IncrementMergeConflicts(runID, "reducer_error")
			}
			return base, &EngineError{Message: "parallel state merge failed", Code: "MERGE_CONFLICT", Cause: err}
		}
		state = merged
		e.emit(emit.Event{RunID: runID, Step: step, NodeID: nodeIDs[i], Msg: "branch_complete"})
	}

	return state, nil
}

func (e *Engine[S]) evaluateEdges(from string, state S) (string, bool) {
	for _, edge := range e.edges {
		if edge.From != from {
			continue
		}
		if edge.When == nil || edge.When(state) {
			return edge.To, true
		}
	}
	return "", false
}

// Step resumes execution from a previously saved checkpoint, running exactly
// one node and returning its merged state and routing decision without
// following that route. It is used by Manager.ApproveOutline to advance a
// run that Run left paused at the human-approval gate.
func (e *Engine[S]) Step(ctx context.Context, runID, nodeID string, state S) (S, Next, error) {
	result := e.runNode(ctx, runID, 0, nodeID, state)
	if result.Err != nil {
		return state, Next{}, result.Err
	}
	merged, err := e.reducer(state, result.Delta)
	if err != nil {
		return state, Next{}, &EngineError{Message: "state merge failed", Code: "MERGE_CONFLICT", Cause: err}
	}
	if e.store != nil {
		_, lastStep, loadErr := e.store.LoadLatest(ctx, runID)
		if loadErr != nil {
			lastStep = 0
		}
		if err := e.store.SaveStep(ctx, runID, lastStep+1, nodeID, merged); err != nil {
			e.cfg.logger.Warnw("save step failed", "run_id", runID, "error", err)
		}
	}
	return merged, result.Route, nil
}
