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
	"github.com/AleutianAI/tesvik/services/incentive/analysis"
	"github.com/AleutianAI/tesvik/services/incentive/dag"
)

// PipelineName names the analysis graph in logs, traces and metrics.
const PipelineName = "incentive_analysis"

// Pipeline is the analysis graph type.
type Pipeline = dag.DAG[analysis.State, analysis.Patch]

// NewPipeline wires every node into the analysis graph.
//
// Description:
//
//	entity_extractor → rule_auditor, then the sufficiency route either
//	continues through retrieval, date extraction, temporal resolution and
//	classification, or jumps to the report. After classification the focus
//	route optionally runs the focused retrieval before condition analysis,
//	the three region steps, support analysis and the report.
func NewPipeline(d Deps) (*Pipeline, error) {
	all, err := All(d)
	if err != nil {
		return nil, err
	}

	b := dag.NewBuilder[analysis.State, analysis.Patch](PipelineName, analysis.Merge)
	for _, n := range all {
		b.AddNode(n)
	}
	return b.
		SetEntry(NameEntityExtractor).
		AddEdge(NameEntityExtractor, NameRuleAuditor).
		AddConditionalEdges(NameRuleAuditor, Sufficiency, map[string]string{
			LabelContinue:     NameRetrieveDocuments,
			LabelInsufficient: NameReportSynthesizer,
		}).
		AddEdge(NameRetrieveDocuments, NameDetailExtractor).
		AddEdge(NameDetailExtractor, NameTemporalResolver).
		AddEdge(NameTemporalResolver, NameTypeAnalyzer).
		AddConditionalEdges(NameTypeAnalyzer, Focus, map[string]string{
			LabelFocus: NameFocusedRetriever,
			LabelSkip:  NameConditionAnalyzer,
		}).
		AddEdge(NameFocusedRetriever, NameConditionAnalyzer).
		AddEdge(NameConditionAnalyzer, NamePhysicalRegion).
		AddEdge(NamePhysicalRegion, NameEffectiveRegion).
		AddEdge(NameEffectiveRegion, NameFinalRegion).
		AddEdge(NameFinalRegion, NameSupportAnalyzer).
		AddEdge(NameSupportAnalyzer, NameReportSynthesizer).
		Build()
}
