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
	"time"

	"github.com/AleutianAI/tesvik/services/incentive/analysis"
	"github.com/AleutianAI/tesvik/services/incentive/audit"
	"github.com/AleutianAI/tesvik/services/incentive/dag"
	"github.com/AleutianAI/tesvik/services/incentive/region"
	"github.com/AleutianAI/tesvik/services/incentive/temporal"
)

// RuleAuditor runs the annex checks on the extracted entities.
//
// Reads: entities. Writes: entities.investment_sector_code and the three
// audit flags. When topic or region is missing it writes nothing. An
// unresolved topic clears the sector code and sets every flag false.
type RuleAuditor struct {
	dag.BaseNode
	index  *audit.Index
	logger *slog.Logger
}

// NewRuleAuditor creates the audit step.
func NewRuleAuditor(d Deps) *RuleAuditor {
	return &RuleAuditor{
		BaseNode: dag.BaseNode{NodeName: NameRuleAuditor},
		index:    d.Index,
		logger:   d.logger(),
	}
}

// Execute implements dag.Node.
func (n *RuleAuditor) Execute(_ context.Context, s analysis.State) (analysis.Patch, error) {
	if !s.Entities.HasTopicAndRegion() {
		n.logger.Warn("topic or region missing, skipping audit", slog.String("node", NameRuleAuditor))
		return analysis.Patch{}, nil
	}

	entities := *s.Entities
	f := n.index.Audit(entities.Topic, entities.Region, entities.AmountOrZero())
	if f.SectorCode == audit.Unresolved {
		n.logger.Warn("no sector code for topic",
			slog.String("node", NameRuleAuditor),
			slog.String("topic", entities.Topic),
		)
		entities.SectorCode = ""
		return analysis.Patch{
			Entities:           &entities,
			RegionallyEligible: analysis.Ptr(false),
			LargeScale:         analysis.Ptr(false),
			Prohibited:         analysis.Ptr(false),
		}, nil
	}

	entities.SectorCode = f.SectorCode
	n.logger.Info("audit completed",
		slog.String("node", NameRuleAuditor),
		slog.String("sector_code", f.SectorCode),
		slog.String("sector", f.SectorName),
		slog.Bool("regionally_eligible", f.RegionallyEligible),
		slog.Bool("large_scale", f.LargeScale),
		slog.Bool("prohibited", f.Prohibited),
	)
	return analysis.Patch{
		Entities:           &entities,
		RegionallyEligible: analysis.Ptr(f.RegionallyEligible),
		LargeScale:         analysis.Ptr(f.LargeScale),
		Prohibited:         analysis.Ptr(f.Prohibited),
	}, nil
}

// TemporalResolver anchors the analysis to a date.
//
// Reads: extracted_details. Writes: reference_date, temporal_directive,
// rules and, for past dates, acquired_rights_warning. Without an extracted
// date it uses today.
type TemporalResolver struct {
	dag.BaseNode
	rules  *temporal.Store
	logger *slog.Logger
}

// NewTemporalResolver creates the temporal step.
func NewTemporalResolver(d Deps) *TemporalResolver {
	return &TemporalResolver{
		BaseNode: dag.BaseNode{NodeName: NameTemporalResolver},
		rules:    d.Rules,
		logger:   d.logger(),
	}
}

// Execute implements dag.Node.
func (n *TemporalResolver) Execute(_ context.Context, s analysis.State) (analysis.Patch, error) {
	today := n.rules.Today()
	date, ok := temporal.PrimaryDate(s.Details)
	if !ok {
		date = today
	}

	directives := n.rules.ResolveDirectives(date)
	text := directives.Text
	if note := temporal.HistoricalNote(date, today); note != "" {
		text = note + "\n\n" + text
	}
	snapshot := n.rules.FoldVersions(date)

	n.logger.Info("rules resolved",
		slog.String("node", NameTemporalResolver),
		slog.String("reference_date", date.Format(time.DateOnly)),
		slog.Bool("extracted", ok),
		slog.Int("directives", len(directives.Entries)),
	)

	return analysis.Patch{
		ReferenceDate:         &date,
		TemporalDirective:     &text,
		AcquiredRightsWarning: temporal.AcquiredRightsWarning(date, today),
		Rules:                 &snapshot,
	}, nil
}

// PhysicalRegion looks the investment's province up in the city table.
//
// Reads: entities.investment_region. Writes: region_resolution with the
// physical region, or without one when the city is unknown.
type PhysicalRegion struct {
	dag.BaseNode
	table  *region.Table
	logger *slog.Logger
}

// NewPhysicalRegion creates the physical region step.
func NewPhysicalRegion(d Deps) *PhysicalRegion {
	return &PhysicalRegion{
		BaseNode: dag.BaseNode{NodeName: NamePhysicalRegion},
		table:    d.Regions,
		logger:   d.logger(),
	}
}

// Execute implements dag.Node.
func (n *PhysicalRegion) Execute(_ context.Context, s analysis.State) (analysis.Patch, error) {
	var city string
	if s.Entities != nil {
		city = s.Entities.Region
	}

	res := analysis.RegionResolution{City: n.table.CanonicalName(city)}
	physical, ok := n.table.Physical(city)
	if !ok {
		n.logger.Warn("city not in region table",
			slog.String("node", NamePhysicalRegion),
			slog.String("city", city),
		)
		if res.City == "" {
			res.City = city
		}
		return analysis.Patch{RegionResolution: &res}, nil
	}
	res.Physical = &physical
	return analysis.Patch{RegionResolution: &res}, nil
}

// EffectiveRegion applies the priority floor and the organized zone bonus.
//
// Reads: region_resolution.physical_region, investment_classification,
// query. Writes: region_resolution.effective_region. An unknown physical
// region leaves the resolution unchanged.
type EffectiveRegion struct {
	dag.BaseNode
	policy region.Policy
	logger *slog.Logger
}

// NewEffectiveRegion creates the effective region step.
func NewEffectiveRegion(d Deps) *EffectiveRegion {
	return &EffectiveRegion{
		BaseNode: dag.BaseNode{NodeName: NameEffectiveRegion},
		policy:   d.Policy,
		logger:   d.logger(),
	}
}

// Execute implements dag.Node.
func (n *EffectiveRegion) Execute(_ context.Context, s analysis.State) (analysis.Patch, error) {
	if s.RegionResolution == nil || s.RegionResolution.Physical == nil {
		return analysis.Patch{}, nil
	}
	res := *s.RegionResolution

	class := analysis.TypeUndetermined
	if s.Classification != nil {
		class = s.Classification.Type
	}
	eff := region.EffectiveRegion(*res.Physical, class, s.Query, n.policy)
	res.Effective = &eff.Region
	res.PriorityFloorApplied = eff.PriorityFloorApplied
	res.ZoneBonusApplied = eff.ZoneBonusApplied

	n.logger.Info("effective region computed",
		slog.String("node", NameEffectiveRegion),
		slog.Int("physical", *res.Physical),
		slog.Int("effective", eff.Region),
		slog.Bool("priority_floor", eff.PriorityFloorApplied),
		slog.Bool("zone_bonus", eff.ZoneBonusApplied),
	)
	return analysis.Patch{RegionResolution: &res}, nil
}

// FinalRegion picks the support region.
//
// Reads: region_resolution. Writes: region_resolution.final_region as the
// larger of physical and effective. Leaves it unset when either is unknown.
type FinalRegion struct {
	dag.BaseNode
}

// NewFinalRegion creates the final region step.
func NewFinalRegion(Deps) *FinalRegion {
	return &FinalRegion{BaseNode: dag.BaseNode{NodeName: NameFinalRegion}}
}

// Execute implements dag.Node.
func (n *FinalRegion) Execute(_ context.Context, s analysis.State) (analysis.Patch, error) {
	r := s.RegionResolution
	if r == nil || r.Physical == nil || r.Effective == nil {
		return analysis.Patch{}, nil
	}
	res := *r
	final := region.Final(*r.Physical, *r.Effective)
	res.Final = &final
	return analysis.Patch{RegionResolution: &res}, nil
}
