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
	"strconv"
	"time"

	"github.com/AleutianAI/tesvik/services/incentive/analysis"
	"github.com/AleutianAI/tesvik/services/incentive/dag"
	"github.com/AleutianAI/tesvik/services/incentive/temporal"
)

// ConditionsUnavailable is the reasoning of the condition fallback.
const ConditionsUnavailable = "Ön koşullar (yatırım türü, varlıklar) sağlanamadığı veya koşul analizi " +
	"tamamlanamadığı için özel şartlar belirlenemedi."

type conditionInput struct {
	Type      analysis.InvestmentType
	Entities  string
	Details   string
	Directive string
	Documents string
}

type conditionItem struct {
	Description string `json:"description" validate:"required"`
	LegalBasis  string `json:"legal_basis"`
}

type conditionOutput struct {
	Items     []conditionItem `json:"conditions" validate:"dive"`
	Reasoning string          `json:"reasoning" validate:"required"`
}

// ConditionAnalyzer lists the special conditions the investment must meet.
//
// Reads: investment_classification, entities, extracted_details,
// temporal_directive, documents. Writes: special_conditions. Fallback: no
// conditions with ConditionsUnavailable as reasoning.
type ConditionAnalyzer struct {
	dag.BaseNode
	reasoned *Reasoned[conditionOutput]
}

// NewConditionAnalyzer creates the condition step.
func NewConditionAnalyzer(d Deps) (*ConditionAnalyzer, error) {
	r, err := reasonedFor[conditionOutput](d, NameConditionAnalyzer, conditionSystem, conditionPrompt, 0)
	if err != nil {
		return nil, err
	}
	return &ConditionAnalyzer{
		BaseNode: dag.BaseNode{NodeName: NameConditionAnalyzer, NodeTimeout: r.NodeTimeout()},
		reasoned: r,
	}, nil
}

// Execute implements dag.Node.
func (n *ConditionAnalyzer) Execute(ctx context.Context, s analysis.State) (analysis.Patch, error) {
	fallback := analysis.Patch{SpecialConditions: &analysis.Conditions{
		Items:     []analysis.Condition{},
		Reasoning: ConditionsUnavailable,
	}}
	if s.Classification == nil || s.Entities == nil {
		return fallback, nil
	}

	out, err := n.reasoned.Call(ctx, conditionInput{
		Type:      s.Classification.Type,
		Entities:  formatJSON(s.Entities),
		Details:   formatJSON(s.Details),
		Directive: directiveOf(s),
		Documents: formatDocuments(s.Documents),
	})
	if err != nil {
		n.reasoned.Absorb(err)
		return fallback, nil
	}

	items := make([]analysis.Condition, 0, len(out.Items))
	for _, it := range out.Items {
		items = append(items, analysis.Condition(it))
	}
	return analysis.Patch{SpecialConditions: &analysis.Conditions{
		Items:     items,
		Reasoning: out.Reasoning,
	}}, nil
}

type supportInput struct {
	Type       analysis.InvestmentType
	Region     string
	Entities   string
	Conditions string
	AsOf       string
	Table      string
	General    string
	Documents  string
}

type supportWire struct {
	Kind                   analysis.SupportKind `json:"support_name" validate:"required,support_kind"`
	ContributionRate       string               `json:"yatirima_katki_orani"`
	TaxReductionRate       string               `json:"vergi_indirim_orani"`
	TLInterestPoints       string               `json:"tl_kredi_faiz_destegi_puani"`
	FXInterestPoints       string               `json:"doviz_kredi_faiz_destegi_puani"`
	InterestCap            string               `json:"faiz_destegi_ust_limiti"`
	PremiumSupportDuration string               `json:"sigorta_primi_destegi_suresi"`
	Description            string               `json:"description" validate:"required"`
	LegalBasis             string               `json:"legal_basis" validate:"required"`
}

type supportOutput struct {
	Supports []supportWire `json:"supports" validate:"dive"`
}

// SupportAnalyzer determines the support items and their rates.
//
// Reads: investment_classification, special_conditions, entities,
// documents, rules, region_resolution. Writes: support_findings.
// Out-of-scope investments get none without a reasoning call. Fallback:
// DefaultSupports over the folded rule tables.
type SupportAnalyzer struct {
	dag.BaseNode
	reasoned *Reasoned[supportOutput]
	rules    *temporal.Store
	logger   *slog.Logger
}

// NewSupportAnalyzer creates the support step.
func NewSupportAnalyzer(d Deps) (*SupportAnalyzer, error) {
	r, err := reasonedFor[supportOutput](d, NameSupportAnalyzer, supportSystem, supportPrompt, 0)
	if err != nil {
		return nil, err
	}
	return &SupportAnalyzer{
		BaseNode: dag.BaseNode{NodeName: NameSupportAnalyzer, NodeTimeout: r.NodeTimeout()},
		reasoned: r,
		rules:    d.Rules,
		logger:   d.logger(),
	}, nil
}

// Execute implements dag.Node.
func (n *SupportAnalyzer) Execute(ctx context.Context, s analysis.State) (analysis.Patch, error) {
	t := analysis.TypeUndetermined
	if s.Classification != nil {
		t = s.Classification.Type
	}
	if t == analysis.TypeOutOfScope {
		none := []analysis.SupportItem{}
		return analysis.Patch{SupportFindings: &none}, nil
	}

	var final *int
	if s.RegionResolution != nil {
		final = s.RegionResolution.Final
	}
	general := n.rules.GeneralSupports()
	rules := s.Rules
	if rules == nil {
		snap := n.rules.FoldVersions(n.rules.Today())
		rules = &snap
	}

	out, err := n.reasoned.Call(ctx, supportInput{
		Type:       t,
		Region:     regionLabel(final),
		Entities:   formatJSON(s.Entities),
		Conditions: formatConditions(s.SpecialConditions),
		AsOf:       rules.AsOf.Format(time.DateOnly),
		Table:      formatSupportTable(supportTableFor(t, final, rules)),
		General:    formatGeneral(general),
		Documents:  formatDocuments(s.Documents),
	})
	if err != nil {
		n.reasoned.Absorb(err)
		items := DefaultSupports(t, final, rules, general)
		return analysis.Patch{SupportFindings: &items}, nil
	}

	items := make([]analysis.SupportItem, 0, len(out.Supports))
	for _, w := range out.Supports {
		items = append(items, analysis.SupportItem(w))
	}
	n.logger.Info("supports determined",
		slog.String("node", NameSupportAnalyzer),
		slog.Int("count", len(items)),
	)
	return analysis.Patch{SupportFindings: &items}, nil
}

// supportTableFor picks the table shown to the backend: the final region's,
// or region 5's for a priority investment located below it.
func supportTableFor(t analysis.InvestmentType, final *int, rules *analysis.RuleSnapshot) map[string]map[string]string {
	if final == nil {
		return nil
	}
	region := *final
	if t == analysis.TypePriority {
		region = max(region, priorityRegion)
	}
	return rules.SupportsFor(region)
}

func regionLabel(r *int) string {
	if r == nil {
		return unknownValue
	}
	return strconv.Itoa(*r) + ". Bölge"
}

func directiveOf(s analysis.State) string {
	if s.TemporalDirective == nil {
		return temporal.NoDirective
	}
	return *s.TemporalDirective
}
