// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package temporal

import (
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/tesvik/services/incentive/analysis"
)

// Directive sentinels.
const (
	NoDirective = "Tarihsel analize göre uygulanacak özel bir direktif bulunamadı. " +
		"Mevcut mevzuat kurallarını standart olarak uygula."
	MissingLogDirective = "UYARI: Annotations dosyası bulunamadı veya bozuk. " +
		"Analiz sadece güncel mevzuata göre yapılacaktır."
)

// PriorityRuleIDs are change IDs that make an investment a priority
// investment for the sectors they list.
var PriorityRuleIDs = []string{
	"ONCELIKLI_YATIRIM_OTOMOTIV_GENISLEMESI",
	"ONCELIKLI_YATIRIM_YERLI_MADEN_ENERJI_GENISLEMESI",
	"ONCELIKLI_YATIRIM_TURIZM_DARALTILMASI",
	"ONCELIKLI_YATIRIM_EGITIM_GENISLETILMESI",
	"ONCELIKLI_YATIRIM_ENERJI_VERIMLILIGI_EKLENMESI",
	"ONCELIKLI_YATIRIM_ATIK_ISI_EKLENMESI",
	"ONCELIKLI_YATIRIM_LNG_DEPOLAMA_EKLENMESI",
	"EK4_SAGLIK_TESVIK_KAPSAM_DEGISIKLIGI",
}

// Directives is the resolved annotation set for a reference date.
type Directives struct {
	Date      time.Time
	Text      string
	ChangeIDs []string
	Entries   []Annotation
}

// FoldVersions reconstructs the rule tables in force on date.
//
// Description:
//
//	Applies every version dated on or before date in ascending order onto
//	empty tables. A later version only replaces the keys it names; support
//	tables merge at region, kind and attribute depth. A zero date means
//	today. A date before every version yields empty tables.
//
// Outputs:
//
//	analysis.RuleSnapshot - Fresh maps owned by the caller.
func (s *Store) FoldVersions(date time.Time) analysis.RuleSnapshot {
	date = s.orToday(date)
	snap := analysis.RuleSnapshot{
		AsOf:     date,
		Regions:  make(map[string]int),
		Supports: make(map[int]map[string]map[string]string),
	}
	for _, v := range s.versions {
		if v.EffectiveDate.After(date) {
			break
		}
		for city, region := range v.Regions {
			snap.Regions[city] = region
		}
		for region, kinds := range v.Supports {
			table, ok := snap.Supports[region]
			if !ok {
				table = make(map[string]map[string]string)
				snap.Supports[region] = table
			}
			for kind, attrs := range kinds {
				row, ok := table[kind]
				if !ok {
					row = make(map[string]string)
					table[kind] = row
				}
				for attr, val := range attrs {
					row[attr] = val
				}
			}
		}
	}
	return snap
}

// ResolveDirectives selects the annotations in force on date.
//
// Description:
//
//	Entries dated on or before date are listed in ascending date order,
//	each formatted with its legal source and change ID, under a header
//	naming the analysis date. Text is never empty: an absent log and an
//	empty selection each produce a sentinel. A zero date means today.
func (s *Store) ResolveDirectives(date time.Time) Directives {
	date = s.orToday(date)
	out := Directives{Date: date}

	// An absent log gets its own text, distinct from NoDirective, so the
	// report says the change log could not be consulted rather than that
	// nothing applies.
	if !s.haveAnnotations {
		out.Text = MissingLogDirective
		return out
	}

	var lines []string
	for _, a := range s.annotations {
		if a.EffectiveDate.After(date) {
			break
		}
		if strings.TrimSpace(a.Directive) == "" {
			continue
		}
		out.Entries = append(out.Entries, a)
		if a.ChangeID != "" {
			out.ChangeIDs = append(out.ChangeIDs, a.ChangeID)
		}
		lines = append(lines, fmt.Sprintf("- %s (Kaynak: %s, Kural ID: %s)",
			a.Directive, orNA(a.LegalSource), orNA(a.ChangeID)))
	}

	if len(lines) == 0 {
		out.Text = NoDirective
		return out
	}

	header := fmt.Sprintf("DİKKAT: Analiz, %s tarihi mevzuatına göre yapılıyor. "+
		"Aşağıdaki direktiflere kesinlikle uyulmalıdır:\n", date.Format("02.01.2006"))
	out.Text = header + strings.Join(lines, "\n")
	return out
}

// PriorityFor returns the first selected priority annotation that lists
// sectorCode.
func (d Directives) PriorityFor(sectorCode string) (Annotation, bool) {
	if sectorCode == "" {
		return Annotation{}, false
	}
	for _, a := range d.Entries {
		if !isPriorityRule(a.ChangeID) {
			continue
		}
		for _, c := range a.SectorCodes {
			if c == sectorCode {
				return a, true
			}
		}
	}
	return Annotation{}, false
}

func isPriorityRule(id string) bool {
	for _, p := range PriorityRuleIDs {
		if p == id {
			return true
		}
	}
	return false
}

func (s *Store) orToday(date time.Time) time.Time {
	if date.IsZero() {
		return s.Today()
	}
	return day(date)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
