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
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/tesvik/services/incentive/analysis"
)

const (
	noDocuments  = "İlgili mevzuat metni bulunamadı."
	noConditions = "Özel şart tespit edilmedi."
	unknownValue = "Belirsiz"
)

// formatDocuments joins documents into one prompt block, each headed by its
// source and section.
func formatDocuments(docs []analysis.Document) string {
	if len(docs) == 0 {
		return noDocuments
	}
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, fmt.Sprintf("Kaynak: %s - Detay: %s\n\n%s",
			orDefault(d.Source, "Bilinmiyor"), orDefault(d.Section, "Bilinmiyor"), d.Text))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// formatJSON renders v for a prompt. A nil value renders as unknownValue.
func formatJSON(v any) string {
	if v == nil {
		return unknownValue
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil || string(data) == "null" {
		return unknownValue
	}
	return string(data)
}

func formatFlag(b *bool) string {
	switch {
	case b == nil:
		return unknownValue
	case *b:
		return "Evet"
	default:
		return "Hayır"
	}
}

func formatConditions(c *analysis.Conditions) string {
	if c == nil || len(c.Items) == 0 {
		return noConditions
	}
	lines := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		line := "- " + item.Description
		if item.LegalBasis != "" {
			line += " (" + item.LegalBasis + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// formatSupportTable renders one region's support table with sorted kinds
// and attributes so identical tables give identical prompts.
func formatSupportTable(table map[string]map[string]string) string {
	if len(table) == 0 {
		return "Bu bölge için destek tablosu bulunamadı."
	}
	var b strings.Builder
	for _, kind := range sortedKeys(table) {
		b.WriteString("- " + kind + ":")
		attrs := table[kind]
		for _, attr := range sortedKeys(attrs) {
			fmt.Fprintf(&b, " %s=%s;", attr, attrs[attr])
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatGeneral(general map[string]string) string {
	if len(general) == 0 {
		return unknownValue
	}
	lines := make([]string, 0, len(general))
	for _, kind := range sortedKeys(general) {
		lines = append(lines, "- "+kind+": "+general[kind])
	}
	return strings.Join(lines, "\n")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
