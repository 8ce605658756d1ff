// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/AleutianAI/tesvik/services/incentive/analysis"
)

var trPrinter = message.NewPrinter(language.Turkish)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// formatTL renders an amount with Turkish digit grouping.
func formatTL(v float64) string {
	return trPrinter.Sprintf("%.0f TL", v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b *bool) string {
	switch {
	case b == nil:
		return "-"
	case *b:
		return "evet"
	default:
		return "hayır"
	}
}

func regionNumber(n *int) string {
	if n == nil {
		return "-"
	}
	return strconv.Itoa(*n)
}

// regionLine summarizes a resolution as "physical → effective → final".
func regionLine(r analysis.RegionResolution) string {
	line := fmt.Sprintf("%s: %s → %s → %s", orDash(r.City),
		regionNumber(r.Physical), regionNumber(r.Effective), regionNumber(r.Final))
	if r.PriorityFloorApplied {
		line += " (öncelikli yatırım tabanı)"
	}
	if r.ZoneBonusApplied {
		line += " (OSB/EB bonusu)"
	}
	return line
}
