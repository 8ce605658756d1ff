// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package privacy

import (
	"fmt"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// ConfidenceLevel is how likely a pattern match is real personal data.
type ConfidenceLevel string

const (
	Low    ConfidenceLevel = "low"
	Medium ConfidenceLevel = "medium"
	High   ConfidenceLevel = "high"
)

// UnmarshalYAML rejects unknown confidence values.
func (c *ConfidenceLevel) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch level := ConfidenceLevel(s); level {
	case High, Medium, Low:
		*c = level
		return nil
	default:
		return fmt.Errorf("invalid confidence %q", s)
	}
}

// PatternFile is the on-disk pattern catalogue.
type PatternFile struct {
	Classifications []Classification `yaml:"classifications"`
}

// Classification groups patterns of one kind of personal data.
type Classification struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Priority    int       `yaml:"priority"`
	Patterns    []Pattern `yaml:"patterns"`
}

// Pattern is one detector.
type Pattern struct {
	ID          string          `yaml:"id"`
	Description string          `yaml:"description"`
	Regex       string          `yaml:"regex"`
	Confidence  ConfidenceLevel `yaml:"confidence"`

	// Validator names a checksum the match must also pass (tckn, luhn).
	Validator string `yaml:"validator"`

	compiled *regexp.Regexp
	check    func(string) bool
}

// compile prepares every pattern and orders classifications by priority,
// highest first.
func (f *PatternFile) compile() error {
	for i := range f.Classifications {
		c := &f.Classifications[i]
		if c.Name == "" {
			return fmt.Errorf("classification %d has no name", i)
		}
		for j := range c.Patterns {
			p := &c.Patterns[j]
			re, err := regexp.Compile(p.Regex)
			if err != nil {
				return fmt.Errorf("pattern %s: %w", p.ID, err)
			}
			p.compiled = re
			if p.Validator != "" {
				check, ok := validators[p.Validator]
				if !ok {
					return fmt.Errorf("pattern %s: unknown validator %q", p.ID, p.Validator)
				}
				p.check = check
			}
		}
	}
	sort.SliceStable(f.Classifications, func(i, j int) bool {
		return f.Classifications[i].Priority > f.Classifications[j].Priority
	})
	return nil
}

// Finding is one detected span. The matched text is kept only in memory
// and is never logged.
type Finding struct {
	Classification string          `json:"classification"`
	PatternID      string          `json:"pattern_id"`
	Description    string          `json:"description"`
	Confidence     ConfidenceLevel `json:"confidence"`
	Start          int             `json:"start"`
	End            int             `json:"end"`
	Match          string          `json:"-"`
}
