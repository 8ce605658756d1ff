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
	"fmt"
	"strings"

	"github.com/AleutianAI/tesvik/services/incentive/analysis"
)

// Support table attribute names in the knowledge base.
const (
	attrContribution = "YKO"
	attrTaxReduction = "İndirim Oranı"
	attrDuration     = "Süre (yıl)"
	attrTLPoints     = "TL Puan"
	attrFXPoints     = "Döviz Puan"
	attrLimit        = "Limit (Bin TL)"
	attrNote         = "Not"
)

const (
	// interestMinRegion is the lowest region where regional investments get
	// interest support.
	interestMinRegion = 4

	// priorityRegion is the region whose table priority investments use.
	priorityRegion = 5

	decisionBasis = "2012/3305 sayılı Karar"
)

var supportDescriptions = map[analysis.SupportKind]string{
	analysis.SupportTaxReduction:      "Gelir veya kurumlar vergisi, yatırıma katkı tutarına ulaşıncaya kadar indirimli oranlarla uygulanır.",
	analysis.SupportEmployerPremium:   "İlave istihdam için asgari ücrete isabet eden sigorta primi işveren hissesi belirlenen süre boyunca karşılanır.",
	analysis.SupportInterest:          "En az bir yıl vadeli yatırım kredisinin faizinin belirlenen puanı karşılanır.",
	analysis.SupportLandAllocation:    "Yatırım için uygun hazine taşınmazı varsa yatırım yeri tahsis edilebilir.",
	analysis.SupportIncomeTaxWithhold: "İlave istihdam için asgari ücrete isabet eden gelir vergisi stopajı terkin edilir.",
	analysis.SupportEmployeePremium:   "İlave istihdam için asgari ücrete isabet eden sigorta primi işçi hissesi karşılanır.",
}

var supportArticles = map[analysis.SupportKind]string{
	analysis.SupportTaxReduction:      "Madde 15",
	analysis.SupportEmployerPremium:   "Madde 21",
	analysis.SupportInterest:          "Madde 18",
	analysis.SupportLandAllocation:    "Madde 2/g",
	analysis.SupportIncomeTaxWithhold: "Madde 2/d",
	analysis.SupportEmployeePremium:   "Madde 2/e",
	analysis.SupportVATExemption:      "Madde 10",
	analysis.SupportCustomsExemption:  "Madde 10",
}

// DefaultSupports derives the supports of an investment from the rule tables
// alone.
//
// Description:
//
//	Out-of-scope investments get nothing. Every other type gets the
//	region-independent supports. Regional and large-scale investments add
//	the tax reduction, employer premium and land allocation rows of their
//	final region, interest support from region 4 on, and any supports the
//	region's table reserves for itself. Priority investments use the region 5
//	table unless their own region is higher. Strategic investments get every
//	row of their region's table plus income tax withholding support. Without
//	a final region only the region-independent supports are returned.
func DefaultSupports(t analysis.InvestmentType, finalRegion *int, rules *analysis.RuleSnapshot, general map[string]string) []analysis.SupportItem {
	if t == analysis.TypeOutOfScope {
		return nil
	}

	items := generalSupports(general)
	if finalRegion == nil {
		return items
	}
	region := *finalRegion

	var kinds []analysis.SupportKind
	switch t {
	case analysis.TypeRegional, analysis.TypeLargeScale:
		kinds = []analysis.SupportKind{
			analysis.SupportTaxReduction,
			analysis.SupportEmployerPremium,
			analysis.SupportLandAllocation,
		}
		if region >= interestMinRegion {
			kinds = append(kinds, analysis.SupportInterest)
		}
		kinds = append(kinds, analysis.SupportIncomeTaxWithhold, analysis.SupportEmployeePremium)
	case analysis.TypePriority:
		region = max(region, priorityRegion)
		kinds = []analysis.SupportKind{
			analysis.SupportTaxReduction,
			analysis.SupportEmployerPremium,
			analysis.SupportInterest,
			analysis.SupportLandAllocation,
		}
	case analysis.TypeStrategic:
		kinds = []analysis.SupportKind{
			analysis.SupportTaxReduction,
			analysis.SupportEmployerPremium,
			analysis.SupportInterest,
			analysis.SupportLandAllocation,
			analysis.SupportIncomeTaxWithhold,
			analysis.SupportEmployeePremium,
		}
	default:
		return items
	}

	table := rules.SupportsFor(region)
	for _, kind := range kinds {
		row, inTable := table[string(kind)]
		switch {
		case inTable:
		case kind == analysis.SupportLandAllocation:
		case kind == analysis.SupportIncomeTaxWithhold && t == analysis.TypeStrategic:
		default:
			// Region-specific rows only apply where the table lists them.
			continue
		}
		items = append(items, tableSupport(kind, region, row))
	}
	return items
}

func generalSupports(general map[string]string) []analysis.SupportItem {
	var items []analysis.SupportItem
	for _, kind := range []analysis.SupportKind{analysis.SupportVATExemption, analysis.SupportCustomsExemption} {
		desc, ok := general[string(kind)]
		if !ok {
			continue
		}
		items = append(items, analysis.SupportItem{
			Kind:        kind,
			Description: desc,
			LegalBasis:  decisionBasis + ", " + supportArticles[kind],
		})
	}
	return items
}

func tableSupport(kind analysis.SupportKind, region int, row map[string]string) analysis.SupportItem {
	item := analysis.SupportItem{
		Kind:        kind,
		Description: supportDescriptions[kind],
		LegalBasis:  fmt.Sprintf("%s, %s; bölge destek tablosu, %d. Bölge", decisionBasis, supportArticles[kind], region),
	}
	if v := row[attrContribution]; v != "" {
		item.ContributionRate = "%" + v
	}
	if v := row[attrTaxReduction]; v != "" {
		item.TaxReductionRate = "%" + v
	}
	if v := row[attrDuration]; v != "" {
		item.PremiumSupportDuration = v + " yıl"
	}
	if v := row[attrTLPoints]; v != "" {
		item.TLInterestPoints = v + " puan"
	}
	if v := row[attrFXPoints]; v != "" {
		item.FXInterestPoints = v + " puan"
	}
	if v := row[attrLimit]; v != "" {
		item.InterestCap = v + " bin TL"
	}
	if v := strings.TrimSpace(row[attrNote]); v != "" {
		item.Description += " " + v
	}
	return item
}
