// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package region resolves the incentive region of an investment in three
// steps: physical, effective and final.
package region

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/tesvik/services/incentive/analysis"
	"github.com/AleutianAI/tesvik/services/incentive/audit"
)

//go:embed data/cities.yaml
var defaultData embed.FS

// CitiesFile is the city table file name.
const CitiesFile = "cities.yaml"

// Region bounds.
const (
	MinRegion = 1
	MaxRegion = 6
)

// Unknown is the region reported for unmapped places. It is never a valid
// region number.
const Unknown = -1

// Table maps normalized province names to region numbers.
//
// Thread Safety:
//
//	Immutable after construction. Safe for concurrent use.
type Table struct {
	regions map[string]int
	names   map[string]string
}

type tableFile struct {
	Provinces map[string]int    `yaml:"provinces"`
	Aliases   map[string]string `yaml:"aliases"`
}

// DefaultTable returns the embedded 81-province table.
func DefaultTable() *Table {
	t, err := LoadTable(defaultData, "data/"+CitiesFile)
	if err != nil {
		panic(err)
	}
	return t
}

// LoadTable reads a province table from fsys.
func LoadTable(fsys fs.FS, name string) (*Table, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("reading city table: %w", err)
	}
	var tf tableFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parsing city table: %w", err)
	}
	return NewTable(tf.Provinces, tf.Aliases)
}

// NewTable builds a Table. Every region must lie in 1..6 and every alias must
// point at a known province.
func NewTable(provinces map[string]int, aliases map[string]string) (*Table, error) {
	t := &Table{
		regions: make(map[string]int, len(provinces)+len(aliases)),
		names:   make(map[string]string, len(provinces)+len(aliases)),
	}
	for name, r := range provinces {
		if r < MinRegion || r > MaxRegion {
			return nil, fmt.Errorf("province %s: region %d out of range", name, r)
		}
		key := audit.NormalizePlace(name)
		t.regions[key] = r
		t.names[key] = name
	}
	for alias, target := range aliases {
		key := audit.NormalizePlace(target)
		r, ok := t.regions[key]
		if !ok {
			return nil, fmt.Errorf("alias %s: unknown province %s", alias, target)
		}
		akey := audit.NormalizePlace(alias)
		t.regions[akey] = r
		t.names[akey] = t.names[key]
	}
	return t, nil
}

// Len returns the number of accepted names, aliases included.
func (t *Table) Len() int {
	return len(t.regions)
}

// Physical looks up the region a city physically lies in.
//
// Returns (Unknown, false) for empty or unmapped names.
func (t *Table) Physical(city string) (int, bool) {
	if t == nil {
		return Unknown, false
	}
	r, ok := t.regions[audit.NormalizePlace(city)]
	if !ok {
		return Unknown, false
	}
	return r, true
}

// CanonicalName returns the table spelling for city, or "" when unknown.
func (t *Table) CanonicalName(city string) string {
	if t == nil {
		return ""
	}
	return t.names[audit.NormalizePlace(city)]
}

// Policy governs the effective-region adjustments.
type Policy struct {
	// PriorityFloor is the minimum effective region of a priority investment.
	PriorityFloor int `yaml:"priority_floor" json:"priority_floor" validate:"min=1,max=6"`

	// RequirePriorityClassification applies the floor only when the resolved
	// classification is a priority investment. When false, a priority keyword
	// in the query is enough.
	RequirePriorityClassification bool `yaml:"require_priority_classification" json:"require_priority_classification"`

	// PriorityKeywords trigger the floor when classification is not required.
	PriorityKeywords []string `yaml:"priority_keywords" json:"priority_keywords"`

	// ZoneBonus is added once when the query places the investment in an
	// organized industrial zone.
	ZoneBonus int `yaml:"zone_bonus" json:"zone_bonus" validate:"min=0,max=5"`

	// ZoneKeywords mark an organized industrial zone in the query.
	ZoneKeywords []string `yaml:"zone_keywords" json:"zone_keywords"`
}

// DefaultPolicy returns the policy used unless configured otherwise.
func DefaultPolicy() Policy {
	return Policy{
		PriorityFloor:                 5,
		RequirePriorityClassification: true,
		PriorityKeywords:              []string{"öncelikli"},
		ZoneBonus:                     1,
		ZoneKeywords:                  []string{"osb", "organize sanayi"},
	}
}

// Effective is the outcome of the effective-region step.
type Effective struct {
	Region               int
	PriorityFloorApplied bool
	ZoneBonusApplied     bool
}

// EffectiveRegion adjusts the physical region in the investor's favor.
//
// Description:
//
//	Starts at physical. A priority investment is raised to at least
//	PriorityFloor; the floor never lowers a region. A zone mention then adds
//	ZoneBonus, capped at MaxRegion. Both triggers fire at most once, so the
//	result never exceeds MaxRegion. An invalid physical region is returned
//	unchanged.
func EffectiveRegion(physical int, classification analysis.InvestmentType, query string, p Policy) Effective {
	out := Effective{Region: physical}
	if physical < MinRegion || physical > MaxRegion {
		return out
	}
	q := cases.Lower(language.Turkish).String(query)

	if priorityApplies(classification, q, p) && out.Region < p.PriorityFloor {
		out.Region = min(p.PriorityFloor, MaxRegion)
		out.PriorityFloorApplied = true
	}
	if p.ZoneBonus > 0 && containsAny(q, p.ZoneKeywords) && out.Region < MaxRegion {
		out.Region = min(out.Region+p.ZoneBonus, MaxRegion)
		out.ZoneBonusApplied = true
	}
	return out
}

func priorityApplies(c analysis.InvestmentType, lowerQuery string, p Policy) bool {
	if c == analysis.TypePriority {
		return true
	}
	if p.RequirePriorityClassification {
		return false
	}
	return containsAny(lowerQuery, p.PriorityKeywords)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n = strings.TrimSpace(n); n != "" && strings.Contains(s, cases.Lower(language.Turkish).String(n)) {
			return true
		}
	}
	return false
}

// Final picks whichever region benefits the investor most.
func Final(physical, effective int) int {
	return max(physical, effective)
}

// Resolve runs all three steps for a city.
func (t *Table) Resolve(city string, classification analysis.InvestmentType, query string, p Policy) analysis.RegionResolution {
	res := analysis.RegionResolution{City: t.CanonicalName(city)}
	physical, ok := t.Physical(city)
	if !ok {
		return res
	}
	eff := EffectiveRegion(physical, classification, query, p)
	final := Final(physical, eff.Region)
	res.Physical = &physical
	res.Effective = &eff.Region
	res.Final = &final
	res.PriorityFloorApplied = eff.PriorityFloorApplied
	res.ZoneBonusApplied = eff.ZoneBonusApplied
	return res
}
