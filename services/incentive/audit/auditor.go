// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package audit

import (
	"fmt"
	"strings"
)

// Unresolved is returned by ResolveSectorCode when no catalogue entry matches.
const Unresolved = "unresolved"

// Findings is the deterministic audit of one investment.
type Findings struct {
	SectorCode         string `json:"sector_code"`
	SectorName         string `json:"sector_name,omitempty"`
	RegionallyEligible bool   `json:"is_regionally_eligible"`
	LargeScale         bool   `json:"is_large_scale"`
	Prohibited         bool   `json:"is_prohibited"`
}

// ResolveSectorCode maps a free-text topic to a sector code.
//
// Description:
//
//	Returns the code of the first catalogue entry whose name shares at
//	least one word with the topic. Catalogue order breaks ties. Returns
//	Unresolved when nothing matches or the catalogue is absent.
func (idx *Index) ResolveSectorCode(topic string) string {
	code, _ := idx.resolveSector(topic)
	return code
}

func (idx *Index) resolveSector(topic string) (string, string) {
	if idx == nil || !idx.hasSectors {
		return Unresolved, ""
	}
	words := Words(topic)
	if len(words) == 0 {
		return Unresolved, ""
	}
	for _, s := range idx.sectors {
		for w := range s.words {
			if words[w] {
				return s.Code, s.Name
			}
		}
	}
	return Unresolved, ""
}

// IsRegionallyEligible reports whether sectorCode is listed for regionName in
// the regional eligibility table.
func (idx *Index) IsRegionallyEligible(sectorCode, regionName string) bool {
	if idx == nil || !idx.hasEligibility || sectorCode == "" || sectorCode == Unresolved {
		return false
	}
	name := NormalizePlace(regionName)
	if name == "" {
		return false
	}
	for _, row := range idx.eligibility {
		if row.normalized == name {
			return row.codes[sectorCode]
		}
	}
	return false
}

// IsLargeScale reports whether amount (TL) meets the large-scale threshold
// registered for sectorCode. Sub-investments are searched after their
// parent; the first matching entry decides.
func (idx *Index) IsLargeScale(sectorCode string, amount float64) bool {
	if idx == nil || !idx.hasThresholds || sectorCode == "" || sectorCode == Unresolved {
		return false
	}
	if t, ok := findThreshold(idx.thresholds, sectorCode); ok {
		return amount >= t.MinimumTL
	}
	return false
}

func findThreshold(ts []Threshold, code string) (Threshold, bool) {
	for _, t := range ts {
		if t.HasMinimum && referencesCode(t.Topic, code) {
			return t, true
		}
		if sub, ok := findThreshold(t.Sub, code); ok {
			return sub, true
		}
	}
	return Threshold{}, false
}

// IsProhibited reports whether sectorCode appears anywhere under a
// prohibition section of EK-4.
//
// Description:
//
//	Leaves are plain strings or objects with a "code" or "konu" field.
//	A traversal failure answers false; see Audit for the policy.
func (idx *Index) IsProhibited(sectorCode string) (prohibited bool) {
	if idx == nil || idx.prohibition == nil || sectorCode == "" || sectorCode == Unresolved {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			prohibited = false
		}
	}()
	return searchProhibition(idx.prohibition, sectorCode, false)
}

// searchProhibition walks the tree depth first. Leaves only count once the
// walk has entered a section titled ProhibitedSectionTitle.
func searchProhibition(node any, code string, inSection bool) bool {
	switch v := node.(type) {
	case map[string]any:
		if title, ok := v["başlık"].(string); ok {
			inSection = strings.Contains(NormalizePlace(title), NormalizePlace(ProhibitedSectionTitle))
		}
		if inSection {
			for _, key := range []string{"code", "konu"} {
				if leaf, ok := v[key].(string); ok && referencesCode(leaf, code) {
					return true
				}
			}
		}
		for key, child := range v {
			if key == "başlık" || key == "code" || key == "konu" {
				continue
			}
			if searchProhibition(child, code, inSection) {
				return true
			}
		}
	case []any:
		for _, child := range v {
			if searchProhibition(child, code, inSection) {
				return true
			}
		}
	case string:
		return inSection && referencesCode(v, code)
	case nil, bool, float64:
		return false
	default:
		panic(fmt.Sprintf("unexpected prohibition node %T", node))
	}
	return false
}

// Audit runs all four checks for one investment.
func (idx *Index) Audit(topic, region string, amount float64) Findings {
	code, name := idx.resolveSector(topic)
	return Findings{
		SectorCode:         code,
		SectorName:         name,
		RegionallyEligible: idx.IsRegionallyEligible(code, region),
		LargeScale:         idx.IsLargeScale(code, amount),
		// Fails open: a broken prohibition tree reports "not prohibited".
		Prohibited: idx.IsProhibited(code),
	}
}
