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
	"encoding/json"
	"strings"
)

// FinalReport is the structured answer produced by the terminal node.
type FinalReport struct {
	Title                 string          `json:"title"`
	Summary               string          `json:"summary"`
	Reasoning             string          `json:"reasoning"`
	SupportsSection       string          `json:"supports_section"`
	ConditionsSection     string          `json:"conditions_section"`
	LegalReferences       LegalReferences `json:"legal_references"`
	AcquiredRightsWarning *string         `json:"acquired_rights_warning,omitempty"`
}

// LegalReferences is a list of citations.
//
// Reasoning backends sometimes return the list as a single comma-separated
// string; UnmarshalJSON accepts both forms.
type LegalReferences []string

// UnmarshalJSON implements json.Unmarshaler.
func (r *LegalReferences) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*r = compactReferences(list)
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return err
	}
	*r = compactReferences(strings.Split(joined, ","))
	return nil
}

func compactReferences(in []string) LegalReferences {
	out := make(LegalReferences, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
