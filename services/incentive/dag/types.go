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
	"time"
)

// Patch is the sparse update a node returns.
//
// Keys lists the state keys the patch replaces; it is used for logging
// and tracing only. Merging is done by the graph's MergeFunc.
type Patch interface {
	Keys() []string
}

// Node represents a single step in the pipeline.
//
// Description:
//
//	Node is the fundamental unit of work in a graph. Each node has a unique
//	name and implements Execute to turn the current state into a patch.
//
// Thread Safety:
//
//	A built graph may be run by many executions concurrently, so
//	implementations must be safe for concurrent use. Within one run nodes
//	are invoked strictly one at a time.
type Node[S any, P Patch] interface {
	// Name returns the unique identifier for this node.
	Name() string

	// Execute runs the node's logic.
	//
	// Inputs:
	//   ctx - Context carrying the node's deadline.
	//   state - Read-only view of the accumulated state.
	//
	// Outputs:
	//   P - Keys to replace in state. Absent keys are left untouched.
	//   error - Non-nil only for failures the node could not absorb. The
	//           executor logs it and continues without merging.
	Execute(ctx context.Context, state S) (P, error)

	// Timeout returns the maximum execution time for this node.
	// Zero means DefaultNodeTimeout.
	Timeout() time.Duration
}

// MergeFunc applies a patch to a state and returns the merged state.
type MergeFunc[S any, P Patch] func(state S, patch P) S

// RouterFunc inspects post-merge state and returns a route label.
type RouterFunc[S any] func(state S) string

// EdgeKind distinguishes unconditional from routed edges.
type EdgeKind string

const (
	// EdgeUnconditional always proceeds to To.
	EdgeUnconditional EdgeKind = "unconditional"

	// EdgeConditional proceeds to To when the router returns Label.
	EdgeConditional EdgeKind = "conditional"
)

// Edge represents a transition between nodes.
type Edge struct {
	From  string   `json:"from"`
	To    string   `json:"to"`
	Kind  EdgeKind `json:"kind"`
	Label string   `json:"label,omitempty"`
}

// route holds a node's conditional transition.
type route[S any] struct {
	router  RouterFunc[S]
	targets map[string]string
}

// DAG represents the complete pipeline graph.
//
// Description:
//
//	DAG holds nodes, their transitions, the entry and the terminal node.
//	It must be built using a Builder before execution.
//
// Thread Safety:
//
//	DAG is safe for concurrent read access after building. Do not modify
//	after calling Build().
type DAG[S any, P Patch] struct {
	name     string
	nodes    map[string]Node[S, P]
	order    []string
	next     map[string]string
	routes   map[string]*route[S]
	edges    []Edge
	merge    MergeFunc[S, P]
	entry    string
	terminal string
}

// Name returns the DAG's name.
func (d *DAG[S, P]) Name() string {
	return d.name
}

// GetNode returns a node by name.
func (d *DAG[S, P]) GetNode(name string) (Node[S, P], bool) {
	node, ok := d.nodes[name]
	return node, ok
}

// NodeCount returns the number of nodes.
func (d *DAG[S, P]) NodeCount() int {
	return len(d.nodes)
}

// NodeNames returns all node names in insertion order.
func (d *DAG[S, P]) NodeNames() []string {
	names := make([]string, len(d.order))
	copy(names, d.order)
	return names
}

// Edges returns every transition in declaration order.
func (d *DAG[S, P]) Edges() []Edge {
	edges := make([]Edge, len(d.edges))
	copy(edges, d.edges)
	return edges
}

// Entry returns the entry node name.
func (d *DAG[S, P]) Entry() string {
	return d.entry
}

// Terminal returns the terminal node name.
func (d *DAG[S, P]) Terminal() string {
	return d.terminal
}

// Result represents the outcome of a graph execution.
type Result[S any] struct {
	// SessionID is the execution session ID.
	SessionID string `json:"session_id"`

	// State is the accumulated state when the run ended.
	State S `json:"state"`

	// Path lists executed nodes in order.
	Path []string `json:"path"`

	// Duration is the total execution time.
	Duration time.Duration `json:"duration"`

	// NodeDurations tracks execution time per node.
	NodeDurations map[string]time.Duration `json:"node_durations,omitempty"`

	// NodeErrors holds errors that nodes returned or panicked with. These
	// were absorbed and did not stop the run.
	NodeErrors map[string]string `json:"node_errors,omitempty"`
}

// Steps returns the number of node invocations.
func (r *Result[S]) Steps() int {
	return len(r.Path)
}
