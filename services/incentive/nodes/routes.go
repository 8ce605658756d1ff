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
	"github.com/AleutianAI/tesvik/services/incentive/analysis"
)

// Route labels.
const (
	LabelContinue     = "continue"
	LabelInsufficient = "insufficient"
	LabelFocus        = "focus"
	LabelSkip         = "skip"
)

// Sufficiency continues to retrieval when both topic and region are known
// and otherwise jumps to the report.
func Sufficiency(s analysis.State) string {
	if s.Entities.HasTopicAndRegion() {
		return LabelContinue
	}
	return LabelInsufficient
}

// Focus runs the focused retrieval unless the investment is general or out
// of scope, where no type-specific texts exist.
func Focus(s analysis.State) string {
	if s.Classification == nil || s.Classification.Type.SkipsFocusedSearch() {
		return LabelSkip
	}
	return LabelFocus
}
