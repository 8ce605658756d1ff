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

	"github.com/AleutianAI/tesvik/pkg/validation"
	"github.com/AleutianAI/tesvik/services/incentive/analysis"
	"github.com/AleutianAI/tesvik/services/incentive/dag"
)

// reasonedFor builds the Reasoned adapter of a node from the shared deps.
func reasonedFor[T any](d Deps, name, system, prompt string, temperature float64) (*Reasoned[T], error) {
	opts := d.Options.withDefaults()
	return NewReasoned[T](ReasonedConfig{
		Name:        name,
		System:      system,
		Prompt:      prompt,
		Temperature: temperature,
		MaxTokens:   opts.MaxTokens,
		Timeout:     opts.CallTimeout,
	}, d.Client, d.Metrics, d.logger())
}

type queryInput struct {
	Query string
}

type entityOutput struct {
	Topic      string   `json:"investment_topic"`
	SectorCode string   `json:"investment_sector_code"`
	Region     string   `json:"investment_region"`
	Amount     *float64 `json:"investment_amount" validate:"omitempty,gte=0"`
}

// EntityExtractor pulls topic, sector code, region and amount out of the
// query.
//
// Reads: query, entities. Writes: entities. Fields already present in the
// state (seeded by the caller) win over extracted ones. Fallback: empty
// patch, which keeps the seeded entities or, without them, sends the run
// down the insufficient-input route.
type EntityExtractor struct {
	dag.BaseNode
	reasoned *Reasoned[entityOutput]
}

// NewEntityExtractor creates the entity extraction step.
func NewEntityExtractor(d Deps) (*EntityExtractor, error) {
	r, err := reasonedFor[entityOutput](d, NameEntityExtractor, entitySystem, entityPrompt, 0)
	if err != nil {
		return nil, err
	}
	return &EntityExtractor{
		BaseNode: dag.BaseNode{NodeName: NameEntityExtractor, NodeTimeout: r.NodeTimeout()},
		reasoned: r,
	}, nil
}

// Execute implements dag.Node.
func (n *EntityExtractor) Execute(ctx context.Context, s analysis.State) (analysis.Patch, error) {
	out, err := n.reasoned.Call(ctx, queryInput{Query: s.Query})
	if err != nil {
		n.reasoned.Absorb(err)
		return analysis.Patch{}, nil
	}
	extracted := &analysis.Entities{
		Topic:      strings.TrimSpace(out.Topic),
		SectorCode: sectorCode(out.SectorCode),
		Region:     strings.TrimSpace(out.Region),
		Amount:     out.Amount,
	}
	return analysis.Patch{Entities: overlaySeeded(s.Entities, extracted)}, nil
}

// overlaySeeded returns extracted with every non-empty seeded field put back.
func overlaySeeded(seeded, extracted *analysis.Entities) *analysis.Entities {
	if seeded == nil {
		return extracted
	}
	out := *extracted
	if v := strings.TrimSpace(seeded.Topic); v != "" {
		out.Topic = v
	}
	if v := strings.TrimSpace(seeded.SectorCode); v != "" {
		out.SectorCode = v
	}
	if v := strings.TrimSpace(seeded.Region); v != "" {
		out.Region = v
	}
	if seeded.Amount != nil {
		amount := *seeded.Amount
		out.Amount = &amount
	}
	return &out
}

// sectorCode normalizes an extracted US-97 code. Anything that is not a
// code is dropped so the rule auditor resolves the topic instead.
func sectorCode(raw string) string {
	code, err := validation.SanitizeSectorCode(raw)
	if err != nil {
		return ""
	}
	return code
}

type detailOutput struct {
	ReferenceDate       *string `json:"reference_date" validate:"omitempty,datetime=2006-01-02"`
	ApplicationDate     *string `json:"application_date" validate:"omitempty,datetime=2006-01-02"`
	CertificateDate     *string `json:"certificate_date" validate:"omitempty,datetime=2006-01-02"`
	InvestmentStartDate *string `json:"investment_start_date" validate:"omitempty,datetime=2006-01-02"`
	Reasoning           string  `json:"reasoning"`
}

// DetailExtractor finds the dates the analysis should be anchored to.
//
// Reads: query. Writes: extracted_details. Fallback: no details, so the
// temporal resolver uses today.
type DetailExtractor struct {
	dag.BaseNode
	reasoned *Reasoned[detailOutput]
	logger   *slog.Logger
}

// NewDetailExtractor creates the date extraction step.
func NewDetailExtractor(d Deps) (*DetailExtractor, error) {
	r, err := reasonedFor[detailOutput](d, NameDetailExtractor, detailSystem, detailPrompt, 0)
	if err != nil {
		return nil, err
	}
	return &DetailExtractor{
		BaseNode: dag.BaseNode{NodeName: NameDetailExtractor, NodeTimeout: r.NodeTimeout()},
		reasoned: r,
		logger:   d.logger(),
	}, nil
}

// Execute implements dag.Node.
func (n *DetailExtractor) Execute(ctx context.Context, s analysis.State) (analysis.Patch, error) {
	out, err := n.reasoned.Call(ctx, queryInput{Query: s.Query})
	if err != nil {
		n.reasoned.Absorb(err)
		return analysis.Patch{}, nil
	}
	details := &analysis.ExtractedDetails{
		ReferenceDate:       parseDay(out.ReferenceDate),
		ApplicationDate:     parseDay(out.ApplicationDate),
		CertificateDate:     parseDay(out.CertificateDate),
		InvestmentStartDate: parseDay(out.InvestmentStartDate),
		Reasoning:           out.Reasoning,
	}
	if details.ReferenceDate != nil {
		n.logger.Info("reference date extracted",
			slog.String("node", NameDetailExtractor),
			slog.String("date", details.ReferenceDate.Format(time.DateOnly)),
		)
	}
	return analysis.Patch{Details: details}, nil
}

// parseDay parses a validated YYYY-MM-DD string.
func parseDay(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(time.DateOnly, *s)
	if err != nil {
		return nil
	}
	return &t
}
