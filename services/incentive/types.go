// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package incentive

import (
	"time"

	"github.com/AleutianAI/tesvik/services/incentive/analysis"
	"github.com/AleutianAI/tesvik/services/incentive/audit"
	"github.com/AleutianAI/tesvik/services/incentive/temporal"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "1.0.0"

// AnalyzeRequest asks for one analysis.
type AnalyzeRequest struct {
	// Query is the investor's question in natural language.
	Query string `json:"query" binding:"required"`

	// Entities optionally seeds the extracted entities. Seeded fields
	// win over extracted ones, so callers can analyze without a reasoning
	// backend.
	Entities *analysis.Entities `json:"entities,omitempty"`
}

// AnalyzeResponse is the outcome of one analysis.
type AnalyzeResponse struct {
	SessionID  string                `json:"session_id"`
	Report     *analysis.FinalReport `json:"report"`
	State      analysis.State        `json:"state"`
	Path       []string              `json:"path"`
	Duration   time.Duration         `json:"duration"`
	NodeErrors map[string]string     `json:"node_errors,omitempty"`

	// Saved is false when the run could not be persisted.
	Saved bool `json:"saved"`

	// Redactions lists the pattern IDs removed from the query.
	Redactions []string `json:"redactions,omitempty"`
}

// AuditRequest runs the annex checks without the pipeline.
type AuditRequest struct {
	Topic  string  `json:"topic" binding:"required"`
	Region string  `json:"region"`
	Amount float64 `json:"amount" binding:"gte=0"`
}

// AuditResponse carries the annex findings.
type AuditResponse struct {
	audit.Findings
	Topic  string  `json:"topic"`
	Region string  `json:"region,omitempty"`
	Amount float64 `json:"amount"`
}

// RegionRequest resolves a city under an optional classification.
type RegionRequest struct {
	City  string
	Type  analysis.InvestmentType
	Query string
}

// RegionResponse is the resolved region for a city.
type RegionResponse struct {
	analysis.RegionResolution
	Type analysis.InvestmentType `json:"investment_type,omitempty"`
}

// DirectivesResponse lists the annotations in force on a date.
type DirectivesResponse struct {
	Date      string                `json:"date"`
	Text      string                `json:"text"`
	ChangeIDs []string              `json:"change_ids,omitempty"`
	Entries   []temporal.Annotation `json:"entries,omitempty"`
}

// RulesResponse is the folded rule tables for a date.
type RulesResponse struct {
	Date            string                `json:"date"`
	Rules           analysis.RuleSnapshot `json:"rules"`
	GeneralSupports map[string]string     `json:"general_supports"`
}

// RunSummary is one stored analysis in a listing.
type RunSummary struct {
	SessionID string        `json:"session_id"`
	Query     string        `json:"query"`
	CreatedAt time.Time     `json:"created_at"`
	Duration  time.Duration `json:"duration"`
	Type      string        `json:"investment_type,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Reasoning string `json:"reasoning"`
	Retrieval string `json:"retrieval"`
}
