// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dag provides the graph execution framework for analysis pipelines.
//
// A graph is a fixed set of named nodes joined by unconditional edges or
// conditional routes. Execution is strictly sequential:
//   - run the current node against the accumulated state
//   - merge the node's patch (replace-if-present, key by key)
//   - evaluate the node's outgoing rule against the merged state
//   - stop once the terminal node's patch is merged
//
// Nodes are expected to absorb their own failures. As a second line, the
// executor records any returned error or panic, skips that node's merge and
// keeps going. A step ceiling bounds every run; exceeding it returns a
// *PipelineExhaustedError.
//
// # Thread Safety
//
// Built graphs and executors are safe for concurrent use. Each Run owns its
// state.
//
// # Example
//
//	graph, err := dag.NewBuilder[State, Patch]("analysis", Merge).
//	    AddNode(extract).
//	    AddNode(report).
//	    AddEdge("extract", "report").
//	    Build()
//
//	executor, err := dag.NewExecutor(graph, logger, dag.WithMaxSteps(50))
//	result, err := executor.Run(ctx, NewState(query))
package dag
