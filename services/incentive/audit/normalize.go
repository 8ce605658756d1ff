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
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// connectives never identify a sector on their own.
var connectives = map[string]bool{
	"ve":   true,
	"ile":  true,
	"veya": true,
	"için": true,
}

// codeRefPattern matches "US-97:1511" style code references.
var codeRefPattern = regexp.MustCompile(`US-97\s*:\s*([0-9A-Za-z.]+)`)

// Words tokenizes text into a set of lowercase words using Turkish casing.
//
// Punctuation separates words. Connectives such as "ve" are dropped.
func Words(text string) map[string]bool {
	lower := cases.Lower(language.Turkish).String(text)
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	words := make(map[string]bool, len(fields))
	for _, f := range fields {
		if connectives[f] {
			continue
		}
		words[f] = true
	}
	return words
}

// NormalizePlace canonicalizes a province name for table lookups.
//
// Description:
//
//	Trims, upper-cases with Turkish rules and collapses the dotted and
//	dotless capital I into a single "I", so "izmir", "İzmir" and "IZMIR"
//	compare equal.
func NormalizePlace(name string) string {
	upper := cases.Upper(language.Turkish).String(strings.TrimSpace(name))
	return strings.ReplaceAll(upper, "İ", "I")
}

// normalizeRowName is NormalizePlace after dropping any parenthesized
// qualifier, e.g. "GAZİANTEP (Merkez)".
func normalizeRowName(name string) string {
	if i := strings.Index(name, "("); i >= 0 {
		name = name[:i]
	}
	return NormalizePlace(name)
}

// codeRefs returns the sector codes referenced in text. A text without any
// "US-97:" marker is treated as a bare code.
func codeRefs(text string) []string {
	matches := codeRefPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		if bare := strings.TrimSpace(text); bare != "" && !strings.ContainsAny(bare, " \t") {
			return []string{bare}
		}
		return nil
	}
	refs := make([]string, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, strings.TrimRight(m[1], "."))
	}
	return refs
}

// referencesCode reports whether text references code exactly.
func referencesCode(text, code string) bool {
	for _, ref := range codeRefs(text) {
		if ref == code {
			return true
		}
	}
	return false
}
