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
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/tesvik/services/incentive/analysis"
	"github.com/AleutianAI/tesvik/services/incentive/dag"
)

type reportInput struct {
	State string
}

type reportOutput struct {
	Title             string                   `json:"title" validate:"required"`
	Summary           string                   `json:"summary" validate:"required"`
	Reasoning         string                   `json:"reasoning"`
	SupportsSection   string                   `json:"supports_section"`
	ConditionsSection string                   `json:"conditions_section"`
	LegalReferences   analysis.LegalReferences `json:"legal_references"`

	// Accepted so a backend echoing it does not fail the schema. The
	// warning always comes from state.
	AcquiredRightsWarning *string `json:"acquired_rights_warning"`
}

// reportState is the projection of state the synthesizer sees.
type reportState struct {
	Query                 string                     `json:"query"`
	Entities              *analysis.Entities         `json:"entities,omitempty"`
	RegionallyEligible    *bool                      `json:"is_regionally_eligible,omitempty"`
	LargeScale            *bool                      `json:"is_large_scale,omitempty"`
	Prohibited            *bool                      `json:"is_prohibited,omitempty"`
	Details               *analysis.ExtractedDetails `json:"extracted_details,omitempty"`
	TemporalDirective     *string                    `json:"temporal_directive,omitempty"`
	AcquiredRightsWarning *string                    `json:"acquired_rights_warning,omitempty"`
	Classification        *analysis.Classification   `json:"investment_classification,omitempty"`
	SpecialConditions     *analysis.Conditions       `json:"special_conditions,omitempty"`
	SupportFindings       []analysis.SupportItem     `json:"support_findings"`
	RegionResolution      *analysis.RegionResolution `json:"region_resolution,omitempty"`
}

// ReportSynthesizer writes the final report.
//
// Reads: everything. Writes: final_report, and insufficient_input when topic
// or region is missing, in which case the report explains what is missing
// without a reasoning call. Fallback: a report assembled from state.
//
// acquired_rights_warning is always copied from state, and supports_section
// is never empty when support findings exist.
type ReportSynthesizer struct {
	dag.BaseNode
	reasoned *Reasoned[reportOutput]
	logger   *slog.Logger
}

// NewReportSynthesizer creates the terminal step.
func NewReportSynthesizer(d Deps) (*ReportSynthesizer, error) {
	opts := d.Options.withDefaults()
	r, err := reasonedFor[reportOutput](d, NameReportSynthesizer, reportSystem, reportPrompt, opts.ReportTemperature)
	if err != nil {
		return nil, err
	}
	return &ReportSynthesizer{
		BaseNode: dag.BaseNode{NodeName: NameReportSynthesizer, NodeTimeout: r.NodeTimeout()},
		reasoned: r,
		logger:   d.logger(),
	}, nil
}

// Execute implements dag.Node.
func (n *ReportSynthesizer) Execute(ctx context.Context, s analysis.State) (analysis.Patch, error) {
	if !s.Entities.HasTopicAndRegion() {
		n.logger.Info("input insufficient, writing partial report", slog.String("node", NameReportSynthesizer))
		report := InsufficientReport(s)
		return analysis.Patch{FinalReport: &report, InsufficientInput: analysis.Ptr(true)}, nil
	}

	var report analysis.FinalReport
	out, err := n.reasoned.Call(ctx, reportInput{State: formatJSON(reportState{
		Query:                 s.Query,
		Entities:              s.Entities,
		RegionallyEligible:    s.RegionallyEligible,
		LargeScale:            s.LargeScale,
		Prohibited:            s.Prohibited,
		Details:               s.Details,
		TemporalDirective:     s.TemporalDirective,
		AcquiredRightsWarning: s.AcquiredRightsWarning,
		Classification:        s.Classification,
		SpecialConditions:     s.SpecialConditions,
		SupportFindings:       s.SupportFindings,
		RegionResolution:      s.RegionResolution,
	})})
	if err != nil {
		n.reasoned.Absorb(err)
		report = AssembleReport(s)
	} else {
		report = analysis.FinalReport{
			Title:             out.Title,
			Summary:           out.Summary,
			Reasoning:         out.Reasoning,
			SupportsSection:   out.SupportsSection,
			ConditionsSection: out.ConditionsSection,
			LegalReferences:   out.LegalReferences,
		}
	}

	report.AcquiredRightsWarning = s.AcquiredRightsWarning
	if strings.TrimSpace(report.SupportsSection) == "" {
		report.SupportsSection = SupportsSection(s.SupportFindings)
	}
	if strings.TrimSpace(report.ConditionsSection) == "" {
		report.ConditionsSection = formatConditions(s.SpecialConditions)
	}
	if len(report.LegalReferences) == 0 {
		report.LegalReferences = legalReferences(s)
	}
	return analysis.Patch{FinalReport: &report}, nil
}

// InsufficientReport explains that the query lacked topic or region.
func InsufficientReport(s analysis.State) analysis.FinalReport {
	var missingFields []string
	if s.Entities == nil || strings.TrimSpace(s.Entities.Topic) == "" {
		missingFields = append(missingFields, "yatırım konusu")
	}
	if s.Entities == nil || strings.TrimSpace(s.Entities.Region) == "" {
		missingFields = append(missingFields, "yatırım yeri (il)")
	}
	return analysis.FinalReport{
		Title: "Analiz Tamamlanamadı: Eksik Bilgi",
		Summary: fmt.Sprintf("Sorgunuzda %s tespit edilemediği için teşvik analizi yapılamadı.",
			strings.Join(missingFields, " ve ")),
		Reasoning: "Teşvik türü, bölge ve destek unsurları yatırımın konusuna ve yapılacağı ile göre belirlenir. " +
			"Lütfen sorgunuzu yatırım konusunu, ilini ve mümkünse tutarını belirterek yeniden gönderin. " +
			"Örnek: \"Gaziantep'te 30 milyon TL'lik otel yatırımı\".",
		SupportsSection:       "Eksik bilgi nedeniyle destek unsurları belirlenemedi.",
		ConditionsSection:     "Eksik bilgi nedeniyle özel şartlar belirlenemedi.",
		LegalReferences:       analysis.LegalReferences{},
		AcquiredRightsWarning: s.AcquiredRightsWarning,
	}
}

// AssembleReport builds the report from state without a reasoning call.
func AssembleReport(s analysis.State) analysis.FinalReport {
	if !s.Entities.HasTopicAndRegion() {
		return InsufficientReport(s)
	}
	c := s.Classification
	if c == nil {
		fallback := ClassifyFromFlags(s)
		c = &fallback
	}

	topic, city := s.Entities.Topic, s.Entities.Region
	if s.RegionResolution != nil && s.RegionResolution.City != "" {
		city = s.RegionResolution.City
	}

	var final *int
	if s.RegionResolution != nil {
		final = s.RegionResolution.Final
	}

	summary := fmt.Sprintf("%s ilinde planlanan %s yatırımı %s kapsamında değerlendirilmiştir.", city, topic, c.Type)
	if final != nil {
		summary += fmt.Sprintf(" Desteklerin belirlenmesinde esas alınan bölge %s'dir.", regionLabel(final))
	}
	if n := len(s.SupportFindings); n > 0 {
		summary += fmt.Sprintf(" Yatırım %d destek unsurundan yararlanabilir.", n)
	}

	reasoning := []string{c.Reasoning}
	if r := s.RegionResolution; r != nil && r.Physical != nil {
		reasoning = append(reasoning, fmt.Sprintf("%s fiziki olarak %s içindedir.", city, regionLabel(r.Physical)))
		if r.PriorityFloorApplied {
			reasoning = append(reasoning, "Öncelikli yatırım olduğundan en az 5. bölge destekleri uygulanır.")
		}
		if r.ZoneBonusApplied {
			reasoning = append(reasoning, "Organize sanayi bölgesinde yer aldığından bir alt bölge desteklerinden yararlanır.")
		}
	}
	if s.SpecialConditions != nil && s.SpecialConditions.Reasoning != "" {
		reasoning = append(reasoning, s.SpecialConditions.Reasoning)
	}

	return analysis.FinalReport{
		Title:                 fmt.Sprintf("%s - %s Yatırımı Teşvik Analizi", city, topic),
		Summary:               summary,
		Reasoning:             strings.Join(reasoning, " "),
		SupportsSection:       SupportsSection(s.SupportFindings),
		ConditionsSection:     formatConditions(s.SpecialConditions),
		LegalReferences:       legalReferences(s),
		AcquiredRightsWarning: s.AcquiredRightsWarning,
	}
}

// SupportsSection renders support findings as a bulleted list.
func SupportsSection(items []analysis.SupportItem) string {
	if len(items) == 0 {
		return "Bu yatırım için tespit edilen destek unsuru bulunmamaktadır."
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		line := "- " + string(it.Kind)
		if rates := supportRates(it); rates != "" {
			line += " (" + rates + ")"
		}
		if it.Description != "" {
			line += ": " + it.Description
		}
		if it.LegalBasis != "" {
			line += " [" + it.LegalBasis + "]"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func supportRates(it analysis.SupportItem) string {
	var parts []string
	add := func(label, v string) {
		if v != "" {
			parts = append(parts, label+": "+v)
		}
	}
	add("yatırıma katkı oranı", it.ContributionRate)
	add("vergi indirim oranı", it.TaxReductionRate)
	add("TL kredi", it.TLInterestPoints)
	add("döviz kredi", it.FXInterestPoints)
	add("üst limit", it.InterestCap)
	add("süre", it.PremiumSupportDuration)
	return strings.Join(parts, ", ")
}

// legalReferences collects the distinct legal bases cited in state.
func legalReferences(s analysis.State) analysis.LegalReferences {
	seen := make(map[string]bool)
	refs := analysis.LegalReferences{}
	add := func(ref string) {
		ref = strings.TrimSpace(ref)
		if ref == "" || ref == "Yok" || seen[ref] {
			return
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	if s.Classification != nil {
		add(s.Classification.LegalBasis)
	}
	if s.SpecialConditions != nil {
		for _, c := range s.SpecialConditions.Items {
			add(c.LegalBasis)
		}
	}
	for _, it := range s.SupportFindings {
		add(it.LegalBasis)
	}
	if len(refs) == 0 {
		add(decisionBasis)
	}
	return refs
}
