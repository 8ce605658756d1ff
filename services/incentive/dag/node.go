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
	"fmt"
	"sort"
	"time"
)

// DefaultNodeTimeout is the default timeout for nodes that don't specify one.
const DefaultNodeTimeout = 30 * time.Second

// BaseNode provides the name and timeout half of the Node interface.
//
// Description:
//
//	Embed BaseNode in concrete node implementations and add Execute.
//
// Example:
//
//	type AuditNode struct {
//	    dag.BaseNode
//	    auditor *audit.Auditor
//	}
//
//	func (n *AuditNode) Execute(ctx context.Context, s analysis.State) (analysis.Patch, error) {
//	    // implementation
//	}
type BaseNode struct {
	NodeName    string
	NodeTimeout time.Duration
}

// Name returns the node's unique identifier.
func (n *BaseNode) Name() string {
	return n.NodeName
}

// Timeout returns the maximum execution time for this node.
func (n *BaseNode) Timeout() time.Duration {
	if n.NodeTimeout == 0 {
		return DefaultNodeTimeout
	}
	return n.NodeTimeout
}

// FuncNode wraps a function as a Node for simple cases.
//
// Example:
//
//	node := dag.NewFuncNode("route_marker", func(ctx context.Context, s State) (Patch, error) {
//	    return Patch{}, nil
//	})
type FuncNode[S any, P Patch] struct {
	BaseNode
	fn func(context.Context, S) (P, error)
}

// NewFuncNode creates a node from a function.
func NewFuncNode[S any, P Patch](name string, fn func(context.Context, S) (P, error)) *FuncNode[S, P] {
	return &FuncNode[S, P]{
		BaseNode: BaseNode{NodeName: name},
		fn:       fn,
	}
}

// Execute runs the wrapped function.
func (n *FuncNode[S, P]) Execute(ctx context.Context, state S) (P, error) {
	if n.fn == nil {
		var zero P
		return zero, ErrInvalidInput
	}
	return n.fn(ctx, state)
}

// WithTimeout sets the timeout for a FuncNode.
func (n *FuncNode[S, P]) WithTimeout(d time.Duration) *FuncNode[S, P] {
	n.NodeTimeout = d
	return n
}

// Builder constructs a DAG with validation.
//
// Description:
//
//	Builder provides a fluent API for declaring nodes and transitions.
//	Every node except the terminal has exactly one outgoing rule: either
//	an unconditional edge or a conditional route. Errors are accumulated
//	and the first one is returned from Build.
//
// Thread Safety:
//
//	Builder is NOT safe for concurrent use. Build the DAG in a single goroutine.
//
// Example:
//
//	graph, err := dag.NewBuilder[State, Patch]("analysis", Merge).
//	    AddNode(extract).
//	    AddNode(audit).
//	    AddNode(report).
//	    AddEdge("extract", "audit").
//	    AddConditionalEdges("audit", hasInput, map[string]string{
//	        "continue":     "retrieve",
//	        "insufficient": "report",
//	    }).
//	    Build()
type Builder[S any, P Patch] struct {
	name   string
	merge  MergeFunc[S, P]
	nodes  map[string]Node[S, P]
	order  []string
	next   map[string]string
	routes map[string]*route[S]
	edges  []Edge
	entry  string
	errors []error
}

// NewBuilder creates a new DAG builder.
//
// Inputs:
//
//	name - The name for the DAG (used in logging/metrics).
//	merge - Applies node patches to state. Must not be nil.
//
// Outputs:
//
//	*Builder - The builder instance.
func NewBuilder[S any, P Patch](name string, merge MergeFunc[S, P]) *Builder[S, P] {
	b := &Builder[S, P]{
		name:   name,
		merge:  merge,
		nodes:  make(map[string]Node[S, P]),
		next:   make(map[string]string),
		routes: make(map[string]*route[S]),
	}
	if merge == nil {
		b.errors = append(b.errors, fmt.Errorf("%w: merge function is nil", ErrInvalidInput))
	}
	return b
}

// AddNode adds a node to the DAG.
func (b *Builder[S, P]) AddNode(node Node[S, P]) *Builder[S, P] {
	if node == nil {
		b.errors = append(b.errors, ErrNilNode)
		return b
	}

	name := node.Name()
	if _, exists := b.nodes[name]; exists {
		b.errors = append(b.errors, NewNodeError(name, ErrDuplicateNode))
		return b
	}

	b.nodes[name] = node
	b.order = append(b.order, name)
	return b
}

// SetEntry names the entry node. When unset, Build picks the single node
// with no incoming edges.
func (b *Builder[S, P]) SetEntry(name string) *Builder[S, P] {
	b.entry = name
	return b
}

// AddEdge declares an unconditional transition.
func (b *Builder[S, P]) AddEdge(from, to string) *Builder[S, P] {
	if b.hasOutgoing(from) {
		b.errors = append(b.errors, NewNodeError(from, ErrDuplicateEdge))
		return b
	}
	b.next[from] = to
	b.edges = append(b.edges, Edge{From: from, To: to, Kind: EdgeUnconditional})
	return b
}

// AddConditionalEdges declares a routed transition.
//
// Inputs:
//
//	from - The node whose post-merge state is inspected.
//	router - Returns one of the labels in targets.
//	targets - Label to next-node mapping. Must not be empty.
//
// Outputs:
//
//	*Builder - The builder for chaining.
func (b *Builder[S, P]) AddConditionalEdges(from string, router RouterFunc[S], targets map[string]string) *Builder[S, P] {
	if b.hasOutgoing(from) {
		b.errors = append(b.errors, NewNodeError(from, ErrDuplicateEdge))
		return b
	}
	if router == nil || len(targets) == 0 {
		b.errors = append(b.errors, NewNodeError(from, fmt.Errorf("%w: conditional edge needs a router and targets", ErrInvalidInput)))
		return b
	}

	copied := make(map[string]string, len(targets))
	labels := make([]string, 0, len(targets))
	for label, to := range targets {
		copied[label] = to
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		b.edges = append(b.edges, Edge{From: from, To: copied[label], Kind: EdgeConditional, Label: label})
	}

	b.routes[from] = &route[S]{router: router, targets: copied}
	return b
}

func (b *Builder[S, P]) hasOutgoing(name string) bool {
	if _, ok := b.next[name]; ok {
		return true
	}
	_, ok := b.routes[name]
	return ok
}

// Build validates and constructs the DAG.
//
// Description:
//
//	Validates that every edge references existing nodes, that there is a
//	single entry and a single terminal, that every node is reachable from
//	the entry and that no cycles are present.
//
// Outputs:
//
//	*DAG - The constructed DAG.
//	error - Non-nil if validation fails.
func (b *Builder[S, P]) Build() (*DAG[S, P], error) {
	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}

	if len(b.nodes) == 0 {
		return nil, ErrInvalidInput
	}

	for _, edge := range b.edges {
		if _, exists := b.nodes[edge.From]; !exists {
			return nil, NewNodeError(edge.From, ErrNodeNotFound)
		}
		if _, exists := b.nodes[edge.To]; !exists {
			return nil, NewNodeError(edge.To, ErrNodeNotFound)
		}
	}

	adjList := b.adjacency()

	if err := b.detectCycles(adjList); err != nil {
		return nil, err
	}

	entry, err := b.findEntry()
	if err != nil {
		return nil, err
	}

	terminal, err := b.findTerminal()
	if err != nil {
		return nil, err
	}

	if err := b.checkReachable(entry, adjList); err != nil {
		return nil, err
	}

	return &DAG[S, P]{
		name:     b.name,
		nodes:    b.nodes,
		order:    b.order,
		next:     b.next,
		routes:   b.routes,
		edges:    b.edges,
		merge:    b.merge,
		entry:    entry,
		terminal: terminal,
	}, nil
}

// adjacency returns successors per node with deterministic ordering.
func (b *Builder[S, P]) adjacency() map[string][]string {
	adjList := make(map[string][]string, len(b.nodes))
	for _, edge := range b.edges {
		adjList[edge.From] = append(adjList[edge.From], edge.To)
	}
	return adjList
}

// detectCycles uses DFS to detect cycles in the graph.
func (b *Builder[S, P]) detectCycles(adjList map[string][]string) error {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := make([]string, 0)

	var dfs func(node string) error
	dfs = func(node string) error {
		visited[node] = true
		recStack[node] = true
		path = append(path, node)

		for _, succ := range adjList[node] {
			if !visited[succ] {
				if err := dfs(succ); err != nil {
					return err
				}
			} else if recStack[succ] {
				cycleStart := 0
				for i, n := range path {
					if n == succ {
						cycleStart = i
						break
					}
				}
				cyclePath := append(append([]string{}, path[cycleStart:]...), succ)
				return NewCycleError(cyclePath)
			}
		}

		path = path[:len(path)-1]
		recStack[node] = false
		return nil
	}

	for _, name := range b.order {
		if !visited[name] {
			if err := dfs(name); err != nil {
				return err
			}
		}
	}

	return nil
}

// findEntry returns the declared entry or the single node without
// incoming edges.
func (b *Builder[S, P]) findEntry() (string, error) {
	if b.entry != "" {
		if _, ok := b.nodes[b.entry]; !ok {
			return "", NewNodeError(b.entry, ErrNodeNotFound)
		}
		return b.entry, nil
	}

	hasIncoming := make(map[string]bool)
	for _, edge := range b.edges {
		hasIncoming[edge.To] = true
	}

	var roots []string
	for _, name := range b.order {
		if !hasIncoming[name] {
			roots = append(roots, name)
		}
	}
	if len(roots) != 1 {
		return "", fmt.Errorf("%w: candidates %v", ErrNoEntry, roots)
	}
	return roots[0], nil
}

// findTerminal returns the single node without an outgoing rule.
func (b *Builder[S, P]) findTerminal() (string, error) {
	var terminals []string
	for _, name := range b.order {
		if !b.hasOutgoing(name) {
			terminals = append(terminals, name)
		}
	}

	switch len(terminals) {
	case 0:
		return "", ErrNoTerminal
	case 1:
		return terminals[0], nil
	default:
		return "", fmt.Errorf("%w: %v", ErrMultipleTerminals, terminals)
	}
}

// checkReachable verifies every node is reachable from the entry.
func (b *Builder[S, P]) checkReachable(entry string, adjList map[string][]string) error {
	seen := map[string]bool{entry: true}
	queue := []string{entry}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, succ := range adjList[current] {
			if !seen[succ] {
				seen[succ] = true
				queue = append(queue, succ)
			}
		}
	}

	for _, name := range b.order {
		if !seen[name] {
			return NewNodeError(name, ErrUnreachableNode)
		}
	}
	return nil
}
