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
	"errors"
	"fmt"
)

// Sentinel errors for the dag package.
var (
	// ErrNilContext is returned when a nil context is passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrNilNode is returned when a nil node is provided.
	ErrNilNode = errors.New("node must not be nil")

	// ErrDuplicateNode is returned when adding a node with an existing name.
	ErrDuplicateNode = errors.New("node with this name already exists")

	// ErrNodeNotFound is returned when a referenced node doesn't exist.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDuplicateEdge is returned when a node is given a second outgoing rule.
	ErrDuplicateEdge = errors.New("node already has an outgoing edge")

	// ErrCycleDetected is returned when the graph contains a cycle.
	ErrCycleDetected = errors.New("cycle detected in DAG")

	// ErrNoEntry is returned when no unique entry node can be determined.
	ErrNoEntry = errors.New("graph has no unique entry node")

	// ErrNoTerminal is returned when no node lacks an outgoing edge.
	ErrNoTerminal = errors.New("graph has no terminal node")

	// ErrMultipleTerminals is returned when more than one node lacks an outgoing edge.
	ErrMultipleTerminals = errors.New("graph has more than one terminal node")

	// ErrUnreachableNode is returned when a node cannot be reached from the entry.
	ErrUnreachableNode = errors.New("node is unreachable from entry")

	// ErrUnknownRoute is returned when a router yields a label with no target.
	ErrUnknownRoute = errors.New("router returned an unmapped label")

	// ErrNodeTimeout is returned when a node exceeds its timeout.
	ErrNodeTimeout = errors.New("node execution timed out")

	// ErrNodePanic is recorded when a node panics during Execute.
	ErrNodePanic = errors.New("node panicked")

	// ErrPipelineExhausted is returned when a run exceeds its step ceiling.
	ErrPipelineExhausted = errors.New("pipeline exhausted step budget")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)

// NodeError wraps an error with the node that caused it.
type NodeError struct {
	NodeName string
	Err      error
}

// Error returns the error message.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q: %v", e.NodeName, e.Err)
}

// Unwrap returns the underlying error.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// NewNodeError creates a NodeError.
func NewNodeError(nodeName string, err error) *NodeError {
	return &NodeError{
		NodeName: nodeName,
		Err:      err,
	}
}

// CycleError provides details about a detected cycle.
type CycleError struct {
	Path []string
}

// Error returns the cycle description.
func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %v", e.Path)
}

// Unwrap lets errors.Is match ErrCycleDetected.
func (e *CycleError) Unwrap() error {
	return ErrCycleDetected
}

// NewCycleError creates a CycleError.
func NewCycleError(path []string) *CycleError {
	return &CycleError{Path: path}
}

// PipelineExhaustedError reports where a run stopped after hitting the
// step ceiling.
type PipelineExhaustedError struct {
	// Limit is the configured ceiling.
	Limit int

	// Node is the node that would have run next.
	Node string

	// Path is the sequence of nodes executed before the abort.
	Path []string
}

// Error returns the error message.
func (e *PipelineExhaustedError) Error() string {
	return fmt.Sprintf("pipeline exhausted after %d steps before node %q", e.Limit, e.Node)
}

// Unwrap lets errors.Is match ErrPipelineExhausted.
func (e *PipelineExhaustedError) Unwrap() error {
	return ErrPipelineExhausted
}
