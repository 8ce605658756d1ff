// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package nodes

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/tesvik/services/incentive/analysis"
	"github.com/AleutianAI/tesvik/services/incentive/dag"
	"github.com/AleutianAI/tesvik/services/incentive/observability"
	"github.com/AleutianAI/tesvik/services/incentive/retrieval"
)

// ReasonRetrieval labels a failed retrieval in the fallback metric.
const ReasonRetrieval = "retrieval"

// searcher runs one bounded retrieval and merges the results into the
// documents already in state.
type searcher struct {
	name      string
	retriever retrieval.Retriever
	timeout   time.Duration
	metrics   *observability.Metrics
	logger    *slog.Logger
}

func newSearcher(d Deps, name string) searcher {
	return searcher{
		name:      name,
		retriever: d.Retriever,
		timeout:   d.Options.withDefaults().RetrievalTimeout,
		metrics:   d.Metrics,
		logger:    d.logger(),
	}
}

// search returns the merged documents, or false when retrieval failed.
func (s searcher) search(ctx context.Context, existing []analysis.Document, query string, limit int) ([]analysis.Document, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	found, err := s.retriever.Retrieve(ctx, query, limit)
	if err != nil {
		s.logger.Warn("retrieval failed, keeping existing documents",
			slog.String("node", s.name),
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
		s.metrics.RecordFallback(s.name, ReasonRetrieval)
		return nil, false
	}

	merged := analysis.AppendDocuments(existing, found)
	s.metrics.RecordDocuments(s.name, len(merged)-len(existing))
	s.logger.Info("documents retrieved",
		slog.String("node", s.name),
		slog.Int("found", len(found)),
		slog.Int("total", len(merged)),
	)
	return merged, true
}

// DocumentRetriever fetches the legal texts for the investment.
//
// Reads: entities, documents. Writes: documents, existing ones first and new
// ones deduplicated by text. Fallback: documents unchanged.
type DocumentRetriever struct {
	dag.BaseNode
	searcher
	limit int
}

// NewDocumentRetriever creates the first retrieval step.
func NewDocumentRetriever(d Deps) *DocumentRetriever {
	opts := d.Options.withDefaults()
	return &DocumentRetriever{
		BaseNode: dag.BaseNode{NodeName: NameRetrieveDocuments, NodeTimeout: opts.RetrievalTimeout + nodeGrace},
		searcher: newSearcher(d, NameRetrieveDocuments),
		limit:    opts.DocumentLimit,
	}
}

// Execute implements dag.Node.
func (n *DocumentRetriever) Execute(ctx context.Context, s analysis.State) (analysis.Patch, error) {
	if s.Entities == nil {
		return analysis.Patch{}, nil
	}
	query := strings.TrimSpace(s.Entities.Topic + " " + s.Entities.Region)
	docs, ok := n.search(ctx, s.Documents, query, n.limit)
	if !ok {
		return analysis.Patch{}, nil
	}
	return analysis.Patch{Documents: &docs}, nil
}

type focusedInput struct {
	Type   analysis.InvestmentType
	Topic  string
	Region string
}

type focusedOutput struct {
	Query string `json:"query" validate:"required"`
}

// FocusedRetriever asks for a type-specific search query and appends what it
// finds.
//
// Reads: entities, investment_classification, documents. Writes:
// focused_query and documents. Fallback: documents unchanged, and no
// focused query when generating one failed.
type FocusedRetriever struct {
	dag.BaseNode
	searcher
	reasoned *Reasoned[focusedOutput]
	limit    int
}

// NewFocusedRetriever creates the focused retrieval step.
func NewFocusedRetriever(d Deps) (*FocusedRetriever, error) {
	r, err := reasonedFor[focusedOutput](d, NameFocusedRetriever, focusedSystem, focusedPrompt, 0)
	if err != nil {
		return nil, err
	}
	opts := d.Options.withDefaults()
	return &FocusedRetriever{
		BaseNode: dag.BaseNode{NodeName: NameFocusedRetriever, NodeTimeout: r.NodeTimeout() + opts.RetrievalTimeout},
		searcher: newSearcher(d, NameFocusedRetriever),
		reasoned: r,
		limit:    opts.FocusedLimit,
	}, nil
}

// Execute implements dag.Node.
func (n *FocusedRetriever) Execute(ctx context.Context, s analysis.State) (analysis.Patch, error) {
	if s.Classification == nil || s.Entities == nil {
		return analysis.Patch{}, nil
	}

	out, err := n.reasoned.Call(ctx, focusedInput{
		Type:   s.Classification.Type,
		Topic:  s.Entities.Topic,
		Region: s.Entities.Region,
	})
	if err != nil {
		n.reasoned.Absorb(err)
		return analysis.Patch{}, nil
	}
	query := strings.TrimSpace(out.Query)

	patch := analysis.Patch{FocusedQuery: &query}
	if docs, ok := n.search(ctx, s.Documents, query, n.limit); ok {
		patch.Documents = &docs
	}
	return patch, nil
}
