// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package privacy detects and redacts personal data in investor questions.
//
// Questions often carry identity numbers, IBANs or phone numbers pasted
// from application forms. None of it affects eligibility, so the service
// scrubs it before the text reaches the reasoning backend or the run
// history. The patterns ship embedded in the binary; see enforcement.
package privacy

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/tesvik/services/incentive/privacy/enforcement"
)

// Public is the classification of text with no findings.
const Public = "public"

// Mode is what the service does with a query containing personal data.
type Mode string

const (
	// ModeOff disables scanning.
	ModeOff Mode = "off"

	// ModeRedact replaces each finding with its pattern ID.
	ModeRedact Mode = "redact"

	// ModeBlock rejects the query.
	ModeBlock Mode = "block"
)

// Engine scans text against a compiled pattern catalogue.
//
// Thread Safety:
//
//	Immutable after construction; safe for concurrent use.
type Engine struct {
	classifications []Classification
}

// New builds an engine from the embedded patterns.
func New() (*Engine, error) {
	return NewFromYAML(enforcement.PersonalDataPatterns)
}

// NewFromYAML builds an engine from a pattern file.
//
// Outputs:
//
//	*Engine - Classifications ordered by priority, highest first.
//	error - Non-nil on malformed YAML, a bad regex or an unknown validator.
func NewFromYAML(data []byte) (*Engine, error) {
	var f PatternFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("privacy: parse patterns: %w", err)
	}
	if err := f.compile(); err != nil {
		return nil, fmt.Errorf("privacy: %w", err)
	}
	return &Engine{classifications: f.Classifications}, nil
}

// Classifications returns the classification names in priority order.
func (e *Engine) Classifications() []string {
	names := make([]string, len(e.classifications))
	for i, c := range e.classifications {
		names[i] = c.Name
	}
	return names
}

// Classify returns the highest-priority classification present in text,
// or Public.
func (e *Engine) Classify(text string) string {
	for _, c := range e.classifications {
		for i := range c.Patterns {
			if len(matches(&c.Patterns[i], text)) > 0 {
				return c.Name
			}
		}
	}
	return Public
}

// Scan returns every finding in text ordered by position. Where spans
// overlap, the higher-priority classification wins.
func (e *Engine) Scan(text string) []Finding {
	var out []Finding
	for _, c := range e.classifications {
		for i := range c.Patterns {
			p := &c.Patterns[i]
			for _, loc := range matches(p, text) {
				if overlaps(out, loc[0], loc[1]) {
					continue
				}
				out = append(out, Finding{
					Classification: c.Name,
					PatternID:      p.ID,
					Description:    p.Description,
					Confidence:     p.Confidence,
					Start:          loc[0],
					End:            loc[1],
					Match:          text[loc[0]:loc[1]],
				})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// Redact replaces each finding with "[PATTERN_ID]".
func (e *Engine) Redact(text string) (string, []Finding) {
	findings := e.Scan(text)
	if len(findings) == 0 {
		return text, nil
	}
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, f := range findings {
		b.WriteString(text[last:f.Start])
		b.WriteString("[" + f.PatternID + "]")
		last = f.End
	}
	b.WriteString(text[last:])
	return b.String(), findings
}

func matches(p *Pattern, text string) [][]int {
	locs := p.compiled.FindAllStringIndex(text, -1)
	if p.check == nil {
		return locs
	}
	valid := locs[:0]
	for _, loc := range locs {
		if p.check(text[loc[0]:loc[1]]) {
			valid = append(valid, loc)
		}
	}
	return valid
}

func overlaps(found []Finding, start, end int) bool {
	for _, f := range found {
		if start < f.End && f.Start < end {
			return true
		}
	}
	return false
}
