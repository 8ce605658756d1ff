// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"strings"
	"testing"
)

func TestRenderReport_Machine(t *testing.T) {
	p, buf := newTestPrinter(PersonalityMachine)
	p.RenderReport(Report{
		Title:   "Teşvik Raporu",
		Summary: "Bölgesel teşvik kapsamındadır.",
		Sections: []Section{
			{Heading: "Gerekçe", Body: "Otel yatırımı 3. bölgede desteklenir."},
			{Heading: "Boş", Body: "  "},
		},
		Warning:    "2012 öncesi belge",
		References: []string{"2012/3305 md. 11"},
		Footer:     "süre 1.2s",
	})
	out := buf.String()

	for _, want := range []string{
		"Teşvik Raporu\n",
		"Özet: Bölgesel teşvik kapsamındadır.\n",
		"## Gerekçe\nOtel yatırımı 3. bölgede desteklenir.\n",
		"Müktesep Hak Uyarısı: 2012 öncesi belge\n",
		"## Yasal Dayanaklar\n- 2012/3305 md. 11\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Boş") {
		t.Error("empty section should be skipped")
	}
	if strings.Contains(out, "süre") {
		t.Error("machine output omits the muted footer")
	}
}

func TestRenderReport_Empty(t *testing.T) {
	p, buf := newTestPrinter(PersonalityFull)
	p.RenderReport(Report{})
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}
