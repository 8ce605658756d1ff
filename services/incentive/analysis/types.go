// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analysis defines the record threaded through an incentive
// analysis run and the typed patches nodes use to update it.
package analysis

import (
	"strings"
	"time"
)

// =============================================================================
// Investment Types
// =============================================================================

// InvestmentType is the incentive category an investment is classified into.
type InvestmentType string

const (
	TypeGeneral      InvestmentType = "Genel Teşvik"
	TypeRegional     InvestmentType = "Bölgesel Teşvik"
	TypePriority     InvestmentType = "Öncelikli Yatırım"
	TypeLargeScale   InvestmentType = "Büyük Ölçekli Yatırım"
	TypeStrategic    InvestmentType = "Stratejik Yatırım"
	TypeOutOfScope   InvestmentType = "Kapsam Dışı"
	TypeUndetermined InvestmentType = "Belirsiz"
)

// InvestmentTypes lists every valid category in presentation order.
var InvestmentTypes = []InvestmentType{
	TypeGeneral,
	TypeRegional,
	TypePriority,
	TypeLargeScale,
	TypeStrategic,
	TypeOutOfScope,
	TypeUndetermined,
}

// Valid reports whether t is one of the known categories.
func (t InvestmentType) Valid() bool {
	for _, known := range InvestmentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// SkipsFocusedSearch reports whether a classification needs no refinement
// search before condition analysis.
func (t InvestmentType) SkipsFocusedSearch() bool {
	return t == TypeGeneral || t == TypeOutOfScope
}

// =============================================================================
// Support Kinds
// =============================================================================

// SupportKind names a support instrument.
type SupportKind string

const (
	SupportTaxReduction      SupportKind = "Vergi İndirimi"
	SupportVATExemption      SupportKind = "KDV İstisnası"
	SupportCustomsExemption  SupportKind = "Gümrük Vergisi Muafiyeti"
	SupportEmployerPremium   SupportKind = "Sigorta Primi İşveren Hissesi Desteği"
	SupportInterest          SupportKind = "Faiz Desteği"
	SupportLandAllocation    SupportKind = "Yatırım Yeri Tahsisi"
	SupportIncomeTaxWithhold SupportKind = "Gelir Vergisi Stopajı Desteği"
	SupportEmployeePremium   SupportKind = "Sigorta Primi Desteği (İşçi Hissesi)"
)

// SupportKinds lists every valid support instrument.
var SupportKinds = []SupportKind{
	SupportTaxReduction,
	SupportVATExemption,
	SupportCustomsExemption,
	SupportEmployerPremium,
	SupportInterest,
	SupportLandAllocation,
	SupportIncomeTaxWithhold,
	SupportEmployeePremium,
}

// Valid reports whether k is one of SupportKinds.
func (k SupportKind) Valid() bool {
	for _, known := range SupportKinds {
		if k == known {
			return true
		}
	}
	return false
}

// =============================================================================
// State Substructures
// =============================================================================

// Entities are the structured facts extracted from the query.
type Entities struct {
	Topic      string   `json:"investment_topic,omitempty"`
	SectorCode string   `json:"investment_sector_code,omitempty"`
	Region     string   `json:"investment_region,omitempty"`
	Amount     *float64 `json:"investment_amount,omitempty"`
}

// HasTopicAndRegion reports whether enough input exists for
// document-dependent analysis.
func (e *Entities) HasTopicAndRegion() bool {
	return e != nil && strings.TrimSpace(e.Topic) != "" && strings.TrimSpace(e.Region) != ""
}

// AmountOrZero returns the investment amount, zero when absent.
func (e *Entities) AmountOrZero() float64 {
	if e == nil || e.Amount == nil {
		return 0
	}
	return *e.Amount
}

// Document is one retrieved legal text passage.
type Document struct {
	Text    string `json:"text"`
	Source  string `json:"source"`
	Section string `json:"section,omitempty"`
}

// ExtractedDetails carries the dates found in the query.
type ExtractedDetails struct {
	ReferenceDate       *time.Time `json:"reference_date,omitempty"`
	ApplicationDate     *time.Time `json:"application_date,omitempty"`
	CertificateDate     *time.Time `json:"certificate_date,omitempty"`
	InvestmentStartDate *time.Time `json:"investment_start_date,omitempty"`
	Reasoning           string     `json:"reasoning,omitempty"`
}

// Classification is the investment-type decision and its rationale.
type Classification struct {
	Type       InvestmentType `json:"investment_type"`
	Reasoning  string         `json:"reasoning"`
	LegalBasis string         `json:"legal_basis,omitempty"`
}

// Condition is a special requirement or exception the investment is bound by.
type Condition struct {
	Description string `json:"description"`
	LegalBasis  string `json:"legal_basis,omitempty"`
}

// Conditions groups the special conditions found for an investment.
type Conditions struct {
	Items     []Condition `json:"conditions"`
	Reasoning string      `json:"reasoning"`
}

// SupportItem is one support the investment is entitled to.
//
// Numeric attributes are kept as text because published tables mix
// percentages, point values and durations.
type SupportItem struct {
	Kind                   SupportKind `json:"support_name"`
	ContributionRate       string      `json:"yatirima_katki_orani,omitempty"`
	TaxReductionRate       string      `json:"vergi_indirim_orani,omitempty"`
	TLInterestPoints       string      `json:"tl_kredi_faiz_destegi_puani,omitempty"`
	FXInterestPoints       string      `json:"doviz_kredi_faiz_destegi_puani,omitempty"`
	InterestCap            string      `json:"faiz_destegi_ust_limiti,omitempty"`
	PremiumSupportDuration string      `json:"sigorta_primi_destegi_suresi,omitempty"`
	Description            string      `json:"description"`
	LegalBasis             string      `json:"legal_basis"`
}

// RegionResolution records the three region decisions.
type RegionResolution struct {
	City                 string `json:"city,omitempty"`
	Physical             *int   `json:"physical_region,omitempty"`
	Effective            *int   `json:"effective_region,omitempty"`
	Final                *int   `json:"final_region,omitempty"`
	PriorityFloorApplied bool   `json:"priority_floor_applied,omitempty"`
	ZoneBonusApplied     bool   `json:"zone_bonus_applied,omitempty"`
}

// RuleSnapshot is the rule set in force on a reference date.
type RuleSnapshot struct {
	AsOf     time.Time                            `json:"as_of"`
	Regions  map[string]int                       `json:"regions,omitempty"`
	Supports map[int]map[string]map[string]string `json:"supports,omitempty"`
}

// SupportsFor returns the support table for a region, nil when unknown.
func (s *RuleSnapshot) SupportsFor(region int) map[string]map[string]string {
	if s == nil {
		return nil
	}
	return s.Supports[region]
}
