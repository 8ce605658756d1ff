// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/google/uuid"
)

var (
	tracer = otel.Tracer("tesvik.dag")
	meter  = otel.Meter("tesvik.dag")
)

// DefaultMaxSteps is the default ceiling on node invocations per run.
const DefaultMaxSteps = 50

// Observer receives per-node outcomes. Used to feed Prometheus collectors
// that live outside this package.
type Observer interface {
	NodeFinished(dag, node string, duration time.Duration, err error)
	RunFinished(dag string, duration time.Duration, err error)
}

type observerKey struct{}

// ContextWithObserver attaches obs to ctx. Run notifies it for that run
// only, after the executor's own observer.
func ContextWithObserver(ctx context.Context, obs Observer) context.Context {
	return context.WithValue(ctx, observerKey{}, obs)
}

func observerFrom(ctx context.Context) Observer {
	obs, _ := ctx.Value(observerKey{}).(Observer)
	return obs
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*executorOptions)

type executorOptions struct {
	maxSteps int
	observer Observer
}

// WithMaxSteps sets the step ceiling. Values below 1 are ignored.
func WithMaxSteps(n int) ExecutorOption {
	return func(o *executorOptions) {
		if n > 0 {
			o.maxSteps = n
		}
	}
}

// WithObserver registers an Observer for node and run outcomes.
func WithObserver(obs Observer) ExecutorOption {
	return func(o *executorOptions) {
		o.observer = obs
	}
}

// Executor runs a DAG sequentially with observability.
//
// Description:
//
//	Executor walks the graph from its entry: runs a node, merges its patch,
//	evaluates the node's outgoing rule against the merged state and moves
//	on, until the terminal node's patch is merged. Node failures are
//	absorbed. The step ceiling and caller cancellation are the only ways a
//	run ends without reaching the terminal node.
//
// Thread Safety:
//
//	Executor is safe for concurrent use. Each Run owns its own state.
type Executor[S any, P Patch] struct {
	dag      *DAG[S, P]
	logger   *slog.Logger
	maxSteps int
	observer Observer

	// Metrics (initialized lazily)
	metricsOnce     sync.Once
	nodeLatency     metric.Float64Histogram
	nodeSuccesses   metric.Int64Counter
	nodeFailures    metric.Int64Counter
	pipelineLatency metric.Float64Histogram
	exhaustions     metric.Int64Counter
}

// NewExecutor creates a new DAG executor.
//
// Inputs:
//
//	dag - The DAG to execute. Must not be nil.
//	logger - Logger for execution logs. If nil, uses slog.Default().
//	opts - Optional settings (step ceiling, observer).
//
// Outputs:
//
//	*Executor - The configured executor.
//	error - Non-nil if dag is nil.
func NewExecutor[S any, P Patch](dag *DAG[S, P], logger *slog.Logger, opts ...ExecutorOption) (*Executor[S, P], error) {
	if dag == nil {
		return nil, ErrInvalidInput
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := executorOptions{maxSteps: DefaultMaxSteps}
	for _, opt := range opts {
		opt(&o)
	}

	return &Executor[S, P]{
		dag:      dag,
		logger:   logger,
		maxSteps: o.maxSteps,
		observer: o.observer,
	}, nil
}

// MaxSteps returns the configured step ceiling.
func (e *Executor[S, P]) MaxSteps() int {
	return e.maxSteps
}

// initMetrics lazily initializes metrics.
// Logs errors if metric creation fails but continues execution (graceful degradation).
func (e *Executor[S, P]) initMetrics() {
	e.metricsOnce.Do(func() {
		var initErrors []string

		var err error
		e.nodeLatency, err = meter.Float64Histogram("dag_node_duration_seconds",
			metric.WithDescription("Time spent executing each DAG node"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "node_latency: "+err.Error())
		}

		e.nodeSuccesses, err = meter.Int64Counter("dag_node_success_total",
			metric.WithDescription("Number of successful node executions"),
		)
		if err != nil {
			initErrors = append(initErrors, "node_successes: "+err.Error())
		}

		e.nodeFailures, err = meter.Int64Counter("dag_node_failure_total",
			metric.WithDescription("Number of node executions that returned an error or panicked"),
		)
		if err != nil {
			initErrors = append(initErrors, "node_failures: "+err.Error())
		}

		e.pipelineLatency, err = meter.Float64Histogram("dag_pipeline_duration_seconds",
			metric.WithDescription("Total pipeline execution time"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "pipeline_latency: "+err.Error())
		}

		e.exhaustions, err = meter.Int64Counter("dag_pipeline_exhausted_total",
			metric.WithDescription("Number of runs aborted by the step ceiling"),
		)
		if err != nil {
			initErrors = append(initErrors, "exhaustions: "+err.Error())
		}

		if len(initErrors) > 0 {
			e.logger.Error("failed to initialize some DAG metrics (observability degraded)",
				slog.Int("failed_count", len(initErrors)),
				slog.Any("errors", initErrors),
			)
		}
	})
}

// Run executes the DAG from entry to terminal.
//
// Description:
//
//	Seeds the run with initial, then invokes nodes one at a time. Creates a
//	root span for tracing and a child span per node.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	initial - The seeded state.
//
// Outputs:
//
//	*Result - Execution result including the final state and path. Also
//	          returned alongside an error so callers can inspect progress.
//	error - *PipelineExhaustedError when the ceiling is hit, a *NodeError
//	        wrapping ErrUnknownRoute or the context error otherwise.
func (e *Executor[S, P]) Run(ctx context.Context, initial S) (*Result[S], error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	e.initMetrics()

	ctx, span := tracer.Start(ctx, "dag.Pipeline",
		trace.WithAttributes(
			attribute.String("dag.name", e.dag.Name()),
			attribute.Int("dag.node_count", e.dag.NodeCount()),
			attribute.Int("dag.max_steps", e.maxSteps),
		),
	)
	defer span.End()

	start := time.Now()
	sessionID := uuid.NewString()[:12] // 48 bits of entropy

	e.logger.Info("pipeline started",
		slog.String("dag", e.dag.Name()),
		slog.String("session_id", sessionID),
		slog.Int("nodes", e.dag.NodeCount()),
	)

	result := &Result[S]{
		SessionID:     sessionID,
		State:         initial,
		Path:          make([]string, 0, e.dag.NodeCount()),
		NodeDurations: make(map[string]time.Duration),
		NodeErrors:    make(map[string]string),
	}

	err := e.walk(ctx, result)
	result.Duration = time.Since(start)

	if e.pipelineLatency != nil {
		e.pipelineLatency.Record(ctx, result.Duration.Seconds(),
			metric.WithAttributes(attribute.String("dag", e.dag.Name())),
		)
	}
	if e.observer != nil {
		e.observer.RunFinished(e.dag.Name(), result.Duration, err)
	}
	if obs := observerFrom(ctx); obs != nil {
		obs.RunFinished(e.dag.Name(), result.Duration, err)
	}

	span.SetAttributes(attribute.Int("dag.steps", result.Steps()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Error("pipeline aborted",
			slog.String("session_id", sessionID),
			slog.Int("steps", result.Steps()),
			slog.String("error", err.Error()),
		)
		return result, err
	}

	span.SetStatus(codes.Ok, "")
	e.logger.Info("pipeline completed",
		slog.String("session_id", sessionID),
		slog.Duration("duration", result.Duration),
		slog.Int("steps", result.Steps()),
		slog.Int("absorbed_failures", len(result.NodeErrors)),
	)
	return result, nil
}

// walk performs the sequential traversal, mutating result in place.
func (e *Executor[S, P]) walk(ctx context.Context, result *Result[S]) error {
	current := e.dag.Entry()

	for {
		select {
		case <-ctx.Done():
			return NewNodeError(current, ctx.Err())
		default:
		}

		if len(result.Path) >= e.maxSteps {
			if e.exhaustions != nil {
				e.exhaustions.Add(ctx, 1, metric.WithAttributes(attribute.String("dag", e.dag.Name())))
			}
			path := make([]string, len(result.Path))
			copy(path, result.Path)
			return &PipelineExhaustedError{Limit: e.maxSteps, Node: current, Path: path}
		}

		node, ok := e.dag.GetNode(current)
		if !ok {
			return NewNodeError(current, ErrNodeNotFound)
		}

		result.Path = append(result.Path, current)
		patch, duration, err := e.executeNode(ctx, node, result.State, result.SessionID)
		result.NodeDurations[current] = duration
		if err != nil {
			result.NodeErrors[current] = err.Error()
		} else {
			result.State = e.dag.merge(result.State, patch)
		}

		if current == e.dag.Terminal() {
			return nil
		}

		next, err := e.nextNode(current, result.State)
		if err != nil {
			return err
		}
		current = next
	}
}

// nextNode evaluates the outgoing rule of a node against merged state.
func (e *Executor[S, P]) nextNode(current string, state S) (string, error) {
	if to, ok := e.dag.next[current]; ok {
		return to, nil
	}

	r, ok := e.dag.routes[current]
	if !ok {
		return "", NewNodeError(current, ErrNodeNotFound)
	}

	label := r.router(state)
	to, ok := r.targets[label]
	if !ok {
		return "", NewNodeError(current, fmt.Errorf("%w: %q", ErrUnknownRoute, label))
	}

	e.logger.Debug("route selected",
		slog.String("node", current),
		slog.String("label", label),
		slog.String("next", to),
	)
	return to, nil
}

// executeNode runs a single node with observability and failure isolation.
func (e *Executor[S, P]) executeNode(ctx context.Context, node Node[S, P], state S, sessionID string) (patch P, duration time.Duration, err error) {
	ctx, span := tracer.Start(ctx, node.Name(),
		trace.WithAttributes(
			attribute.String("dag.node", node.Name()),
			attribute.String("dag.session_id", sessionID),
		),
	)
	defer span.End()

	e.logger.Debug("node starting",
		slog.String("node", node.Name()),
		slog.String("session_id", sessionID),
	)

	timeout := node.Timeout()
	if timeout <= 0 {
		timeout = DefaultNodeTimeout
	}

	nodeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	patch, err = e.invoke(nodeCtx, node, state)
	duration = time.Since(start)

	if e.nodeLatency != nil {
		e.nodeLatency.Record(ctx, duration.Seconds(),
			metric.WithAttributes(attribute.String("node", node.Name())),
		)
	}
	if e.observer != nil {
		e.observer.NodeFinished(e.dag.Name(), node.Name(), duration, err)
	}
	if obs := observerFrom(ctx); obs != nil {
		obs.NodeFinished(e.dag.Name(), node.Name(), duration, err)
	}

	if err != nil {
		if errors.Is(nodeCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %s: %w", ErrNodeTimeout, node.Name(), err)
		}

		if e.nodeFailures != nil {
			e.nodeFailures.Add(ctx, 1,
				metric.WithAttributes(attribute.String("node", node.Name())),
			)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		e.logger.Warn("node failed, continuing without its update",
			slog.String("node", node.Name()),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)
		var zero P
		return zero, duration, err
	}

	if e.nodeSuccesses != nil {
		e.nodeSuccesses.Add(ctx, 1,
			metric.WithAttributes(attribute.String("node", node.Name())),
		)
	}
	keys := patch.Keys()
	span.SetAttributes(attribute.StringSlice("dag.patch_keys", keys))
	span.SetStatus(codes.Ok, "")

	e.logger.Info("node completed",
		slog.String("node", node.Name()),
		slog.Duration("duration", duration),
		slog.Any("keys", keys),
	)

	return patch, duration, nil
}

// invoke calls Execute and converts a panic into ErrNodePanic.
func (e *Executor[S, P]) invoke(ctx context.Context, node Node[S, P], state S) (patch P, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero P
			patch = zero
			err = fmt.Errorf("%w: %v", ErrNodePanic, r)
		}
	}()
	return node.Execute(ctx, state)
}
