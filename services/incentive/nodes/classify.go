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

	"github.com/AleutianAI/tesvik/services/incentive/analysis"
	"github.com/AleutianAI/tesvik/services/incentive/dag"
	"github.com/AleutianAI/tesvik/services/incentive/observability"
	"github.com/AleutianAI/tesvik/services/incentive/temporal"
)

type typeInput struct {
	Entities           string
	RegionallyEligible string
	LargeScale         string
	Prohibited         string
	Directive          string
	Documents          string
}

type typeOutput struct {
	Type       analysis.InvestmentType `json:"investment_type" validate:"required,investment_type"`
	Reasoning  string                  `json:"reasoning" validate:"required"`
	LegalBasis string                  `json:"legal_basis"`
}

// TypeAnalyzer classifies the investment.
//
// Reads: entities, the audit flags, documents, reference_date and
// temporal_directive. Writes: investment_classification.
//
// A priority annotation in force on the reference date that lists the
// sector code decides the type without a reasoning call. Missing entities
// give Belirsiz. Fallback: a classification derived from the audit flags.
type TypeAnalyzer struct {
	dag.BaseNode
	reasoned *Reasoned[typeOutput]
	rules    *temporal.Store
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewTypeAnalyzer creates the classification step.
func NewTypeAnalyzer(d Deps) (*TypeAnalyzer, error) {
	r, err := reasonedFor[typeOutput](d, NameTypeAnalyzer, typeSystem, typePrompt, 0)
	if err != nil {
		return nil, err
	}
	return &TypeAnalyzer{
		BaseNode: dag.BaseNode{NodeName: NameTypeAnalyzer, NodeTimeout: r.NodeTimeout()},
		reasoned: r,
		rules:    d.Rules,
		metrics:  d.Metrics,
		logger:   d.logger(),
	}, nil
}

// Execute implements dag.Node.
func (n *TypeAnalyzer) Execute(ctx context.Context, s analysis.State) (analysis.Patch, error) {
	c, source := n.classify(ctx, s)
	n.metrics.RecordClassification(string(c.Type), source)
	n.logger.Info("investment classified",
		slog.String("node", NameTypeAnalyzer),
		slog.String("type", string(c.Type)),
		slog.String("source", source),
	)
	return analysis.Patch{Classification: &c}, nil
}

func (n *TypeAnalyzer) classify(ctx context.Context, s analysis.State) (analysis.Classification, string) {
	if s.Entities == nil {
		return ClassifyFromFlags(s), observability.SourceFallback
	}

	if c, ok := n.priorityRule(s); ok {
		return c, observability.SourceShortCircuit
	}

	out, err := n.reasoned.Call(ctx, typeInput{
		Entities:           formatJSON(s.Entities),
		RegionallyEligible: formatFlag(s.RegionallyEligible),
		LargeScale:         formatFlag(s.LargeScale),
		Prohibited:         formatFlag(s.Prohibited),
		Directive:          directiveOf(s),
		Documents:          formatDocuments(s.Documents),
	})
	if err != nil {
		n.reasoned.Absorb(err)
		return ClassifyFromFlags(s), observability.SourceFallback
	}
	return analysis.Classification(out), observability.SourceReasoned
}

// priorityRule reports whether an annotation in force on the reference date
// grants priority status to the investment's sector.
func (n *TypeAnalyzer) priorityRule(s analysis.State) (analysis.Classification, bool) {
	date := n.rules.Today()
	if s.ReferenceDate != nil {
		date = *s.ReferenceDate
	}
	a, ok := n.rules.ResolveDirectives(date).PriorityFor(s.Entities.SectorCode)
	if !ok {
		return analysis.Classification{}, false
	}
	return analysis.Classification{
		Type: analysis.TypePriority,
		Reasoning: fmt.Sprintf("Analiz tarihinde yürürlükte olan %s kuralı, %s sektör kodlu yatırımlara "+
			"doğrudan öncelikli yatırım statüsü vermektedir. Bu kural diğer değerlendirmelerden önce gelir.",
			a.ChangeID, s.Entities.SectorCode),
		LegalBasis: orDefault(a.LegalSource, "2012/3305 sayılı Karar, Madde 17"),
	}, true
}

// ClassifyFromFlags derives a classification from the audit flags alone.
// A prohibited sector is out of scope; otherwise large scale wins over
// regional eligibility, and anything else falls to the general scheme.
func ClassifyFromFlags(s analysis.State) analysis.Classification {
	if s.Entities == nil {
		return analysis.Classification{
			Type:       analysis.TypeUndetermined,
			Reasoning:  "Analiz için yeterli ön bilgi (yatırım konusu ve yeri) bulunamadı.",
			LegalBasis: "Yok",
		}
	}
	switch {
	case analysis.Flag(s.Prohibited):
		return analysis.Classification{
			Type:       analysis.TypeOutOfScope,
			Reasoning:  "Yatırım konusu teşvik edilmeyecek yatırımlar listesinde yer almaktadır.",
			LegalBasis: "2012/3305 sayılı Karar, EK-4",
		}
	case analysis.Flag(s.LargeScale):
		return analysis.Classification{
			Type:       analysis.TypeLargeScale,
			Reasoning:  "Yatırım tutarı, sektör için belirlenen büyük ölçekli yatırım asgari tutarını karşılamaktadır.",
			LegalBasis: "2012/3305 sayılı Karar, Madde 12 ve EK-3",
		}
	case analysis.Flag(s.RegionallyEligible):
		return analysis.Classification{
			Type:       analysis.TypeRegional,
			Reasoning:  "Yatırım konusu, yatırımın yapılacağı ilde bölgesel teşvik uygulamaları kapsamında desteklenen sektörler arasındadır.",
			LegalBasis: "2012/3305 sayılı Karar, Madde 11 ve EK-2B",
		}
	default:
		return analysis.Classification{
			Type:       analysis.TypeGeneral,
			Reasoning:  "Yatırım bölgesel, büyük ölçekli veya öncelikli yatırım şartlarını karşılamadığından genel teşvik uygulamaları kapsamında değerlendirilmiştir.",
			LegalBasis: "2012/3305 sayılı Karar, Madde 10",
		}
	}
}
