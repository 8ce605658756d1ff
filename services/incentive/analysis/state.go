// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

import (
	"time"
)

// State is the record threaded through one analysis run.
//
// Description:
//
//	Every field except Query is optional and populated incrementally by
//	pipeline nodes. Nodes never mutate State directly; they return a Patch
//	that Merge applies key by key.
//
// Thread Safety:
//
//	State is created per request and never shared. Nodes receive it by
//	value and must treat pointed-to substructures as read-only.
type State struct {
	// Query is the user's question. Immutable after creation.
	Query string `json:"query"`

	Entities *Entities `json:"entities,omitempty"`

	// Audit flags set by the rule auditor.
	RegionallyEligible *bool `json:"is_regionally_eligible,omitempty"`
	LargeScale         *bool `json:"is_large_scale,omitempty"`
	Prohibited         *bool `json:"is_prohibited,omitempty"`

	// Documents is append-only across retrieval nodes.
	Documents []Document `json:"documents,omitempty"`

	Details               *ExtractedDetails `json:"extracted_details,omitempty"`
	ReferenceDate         *time.Time        `json:"reference_date,omitempty"`
	TemporalDirective     *string           `json:"temporal_directive,omitempty"`
	AcquiredRightsWarning *string           `json:"acquired_rights_warning,omitempty"`
	Rules                 *RuleSnapshot     `json:"rules,omitempty"`

	Classification    *Classification   `json:"investment_classification,omitempty"`
	FocusedQuery      *string           `json:"focused_query,omitempty"`
	SpecialConditions *Conditions       `json:"special_conditions,omitempty"`
	SupportFindings   []SupportItem     `json:"support_findings,omitempty"`
	RegionResolution  *RegionResolution `json:"region_resolution,omitempty"`

	// InsufficientInput is set when the run skipped document-dependent
	// analysis because topic or region was missing.
	InsufficientInput *bool `json:"insufficient_input,omitempty"`

	FinalReport *FinalReport `json:"final_report,omitempty"`
}

// NewState creates the initial state for a query.
func NewState(query string) State {
	return State{Query: query}
}

// Flag dereferences an optional audit flag, treating absent as false.
func Flag(b *bool) bool {
	return b != nil && *b
}

// Patch is the sparse update a node returns.
//
// Description:
//
//	A nil field means "leave untouched". A non-nil field replaces the
//	corresponding State field wholesale. Slice fields use a pointer so an
//	explicit empty list can be distinguished from absence. Query cannot be
//	patched.
type Patch struct {
	Entities *Entities

	RegionallyEligible *bool
	LargeScale         *bool
	Prohibited         *bool

	Documents *[]Document

	Details               *ExtractedDetails
	ReferenceDate         *time.Time
	TemporalDirective     *string
	AcquiredRightsWarning *string
	Rules                 *RuleSnapshot

	Classification    *Classification
	FocusedQuery      *string
	SpecialConditions *Conditions
	SupportFindings   *[]SupportItem
	RegionResolution  *RegionResolution

	InsufficientInput *bool

	FinalReport *FinalReport
}

// Keys returns the state keys this patch replaces, in declaration order.
func (p Patch) Keys() []string {
	keys := make([]string, 0, 4)
	add := func(present bool, key string) {
		if present {
			keys = append(keys, key)
		}
	}
	add(p.Entities != nil, "entities")
	add(p.RegionallyEligible != nil, "is_regionally_eligible")
	add(p.LargeScale != nil, "is_large_scale")
	add(p.Prohibited != nil, "is_prohibited")
	add(p.Documents != nil, "documents")
	add(p.Details != nil, "extracted_details")
	add(p.ReferenceDate != nil, "reference_date")
	add(p.TemporalDirective != nil, "temporal_directive")
	add(p.AcquiredRightsWarning != nil, "acquired_rights_warning")
	add(p.Rules != nil, "rules")
	add(p.Classification != nil, "investment_classification")
	add(p.FocusedQuery != nil, "focused_query")
	add(p.SpecialConditions != nil, "special_conditions")
	add(p.SupportFindings != nil, "support_findings")
	add(p.RegionResolution != nil, "region_resolution")
	add(p.InsufficientInput != nil, "insufficient_input")
	add(p.FinalReport != nil, "final_report")
	return keys
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return len(p.Keys()) == 0
}

// Merge applies a patch to a state and returns the result.
//
// Description:
//
//	Key-wise replace-if-present. Absent keys keep their previous value.
//	The input state is not modified.
//
// Inputs:
//
//	s - The current state.
//	p - The node's patch.
//
// Outputs:
//
//	State - The merged state.
func Merge(s State, p Patch) State {
	if p.Entities != nil {
		s.Entities = p.Entities
	}
	if p.RegionallyEligible != nil {
		s.RegionallyEligible = p.RegionallyEligible
	}
	if p.LargeScale != nil {
		s.LargeScale = p.LargeScale
	}
	if p.Prohibited != nil {
		s.Prohibited = p.Prohibited
	}
	if p.Documents != nil {
		s.Documents = *p.Documents
	}
	if p.Details != nil {
		s.Details = p.Details
	}
	if p.ReferenceDate != nil {
		s.ReferenceDate = p.ReferenceDate
	}
	if p.TemporalDirective != nil {
		s.TemporalDirective = p.TemporalDirective
	}
	if p.AcquiredRightsWarning != nil {
		s.AcquiredRightsWarning = p.AcquiredRightsWarning
	}
	if p.Rules != nil {
		s.Rules = p.Rules
	}
	if p.Classification != nil {
		s.Classification = p.Classification
	}
	if p.FocusedQuery != nil {
		s.FocusedQuery = p.FocusedQuery
	}
	if p.SpecialConditions != nil {
		s.SpecialConditions = p.SpecialConditions
	}
	if p.SupportFindings != nil {
		s.SupportFindings = *p.SupportFindings
	}
	if p.RegionResolution != nil {
		s.RegionResolution = p.RegionResolution
	}
	if p.InsufficientInput != nil {
		s.InsufficientInput = p.InsufficientInput
	}
	if p.FinalReport != nil {
		s.FinalReport = p.FinalReport
	}
	return s
}

// AppendDocuments returns existing followed by every incoming document
// whose text is not already present.
func AppendDocuments(existing, incoming []Document) []Document {
	seen := make(map[string]bool, len(existing)+len(incoming))
	out := make([]Document, 0, len(existing)+len(incoming))
	for _, d := range existing {
		seen[d.Text] = true
		out = append(out, d)
	}
	for _, d := range incoming {
		if seen[d.Text] {
			continue
		}
		seen[d.Text] = true
		out = append(out, d)
	}
	return out
}

// Ptr returns a pointer to v. Used when building patches.
func Ptr[T any](v T) *T {
	return &v
}
