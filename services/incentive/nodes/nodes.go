// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package nodes holds the pipeline steps of an incentive analysis.
//
// Each step is a dag.Node over analysis.State that returns an analysis.Patch.
// Deterministic steps wrap the audit, temporal and region packages. Reasoned
// steps wrap an llm.Client behind Reasoned, which renders a prompt, decodes a
// strict JSON schema and falls back to a documented default on any failure.
// A reasoned node never returns an error for a backend failure; the fallback
// is its result.
package nodes

import (
	"log/slog"
	"time"

	"github.com/AleutianAI/tesvik/services/incentive/analysis"
	"github.com/AleutianAI/tesvik/services/incentive/audit"
	"github.com/AleutianAI/tesvik/services/incentive/dag"
	"github.com/AleutianAI/tesvik/services/incentive/llm"
	"github.com/AleutianAI/tesvik/services/incentive/observability"
	"github.com/AleutianAI/tesvik/services/incentive/region"
	"github.com/AleutianAI/tesvik/services/incentive/retrieval"
	"github.com/AleutianAI/tesvik/services/incentive/temporal"
)

// Node is a pipeline step.
type Node = dag.Node[analysis.State, analysis.Patch]

// Node names.
const (
	NameEntityExtractor   = "entity_extractor"
	NameRuleAuditor       = "rule_auditor"
	NameRetrieveDocuments = "retrieve_documents"
	NameDetailExtractor   = "detail_extractor"
	NameTemporalResolver  = "temporal_resolver"
	NameTypeAnalyzer      = "investment_type_analyzer"
	NameFocusedRetriever  = "focused_retriever"
	NameConditionAnalyzer = "condition_analyzer"
	NamePhysicalRegion    = "physical_region"
	NameEffectiveRegion   = "effective_region"
	NameFinalRegion       = "final_region"
	NameSupportAnalyzer   = "support_analyzer"
	NameReportSynthesizer = "final_report_synthesizer"
)

// Defaults for Options.
const (
	DefaultCallTimeout      = 60 * time.Second
	DefaultMaxTokens        = 2048
	DefaultDocumentLimit    = 5
	DefaultFocusedLimit     = 3
	DefaultRetrievalTimeout = 15 * time.Second

	// nodeGrace is added to the call timeout so a timed-out call still
	// leaves the node time to return its fallback.
	nodeGrace = 2 * time.Second
)

// Options tunes the nodes.
type Options struct {
	// CallTimeout bounds each reasoning call.
	CallTimeout time.Duration

	// MaxTokens caps each reasoning response. Zero uses the backend default.
	MaxTokens int

	// DocumentLimit is k for the first retrieval.
	DocumentLimit int

	// FocusedLimit is k for the focused retrieval.
	FocusedLimit int

	// RetrievalTimeout bounds each retrieval call.
	RetrievalTimeout time.Duration

	// ReportTemperature is the sampling temperature of the report
	// synthesizer. Every other reasoned node runs at zero.
	ReportTemperature float64
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		CallTimeout:       DefaultCallTimeout,
		MaxTokens:         DefaultMaxTokens,
		DocumentLimit:     DefaultDocumentLimit,
		FocusedLimit:      DefaultFocusedLimit,
		RetrievalTimeout:  DefaultRetrievalTimeout,
		ReportTemperature: 0.7,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.CallTimeout <= 0 {
		o.CallTimeout = d.CallTimeout
	}
	if o.MaxTokens < 0 {
		o.MaxTokens = 0
	}
	if o.DocumentLimit <= 0 {
		o.DocumentLimit = d.DocumentLimit
	}
	if o.FocusedLimit <= 0 {
		o.FocusedLimit = d.FocusedLimit
	}
	if o.RetrievalTimeout <= 0 {
		o.RetrievalTimeout = d.RetrievalTimeout
	}
	return o
}

// Deps are the collaborators shared by all nodes of a pipeline. Everything
// except Client and Retriever is read-only and safe to share across runs.
type Deps struct {
	Index     *audit.Index
	Rules     *temporal.Store
	Regions   *region.Table
	Policy    region.Policy
	Retriever retrieval.Retriever
	Client    llm.Client
	Metrics   *observability.Metrics
	Logger    *slog.Logger
	Options   Options
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// All builds every node in pipeline order.
//
// Outputs:
//
//	[]Node - The thirteen steps, entity extraction first.
//	error - Non-nil if a required collaborator is missing or a prompt
//	        template fails to parse.
func All(d Deps) ([]Node, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	d.Options = d.Options.withDefaults()

	entities, err := NewEntityExtractor(d)
	if err != nil {
		return nil, err
	}
	details, err := NewDetailExtractor(d)
	if err != nil {
		return nil, err
	}
	classifier, err := NewTypeAnalyzer(d)
	if err != nil {
		return nil, err
	}
	focused, err := NewFocusedRetriever(d)
	if err != nil {
		return nil, err
	}
	conditions, err := NewConditionAnalyzer(d)
	if err != nil {
		return nil, err
	}
	supports, err := NewSupportAnalyzer(d)
	if err != nil {
		return nil, err
	}
	report, err := NewReportSynthesizer(d)
	if err != nil {
		return nil, err
	}

	return []Node{
		entities,
		NewRuleAuditor(d),
		NewDocumentRetriever(d),
		details,
		NewTemporalResolver(d),
		classifier,
		focused,
		conditions,
		NewPhysicalRegion(d),
		NewEffectiveRegion(d),
		NewFinalRegion(d),
		supports,
		report,
	}, nil
}

func (d Deps) validate() error {
	switch {
	case d.Index == nil:
		return missing("audit index")
	case d.Rules == nil:
		return missing("temporal store")
	case d.Regions == nil:
		return missing("region table")
	case d.Retriever == nil:
		return missing("retriever")
	case d.Client == nil:
		return missing("reasoning client")
	}
	return nil
}
