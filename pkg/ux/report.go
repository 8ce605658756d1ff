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
	"fmt"
	"strings"
)

// Section is one headed block of a report.
type Section struct {
	Heading string
	Body    string
}

// Report is a document for terminal display.
type Report struct {
	Title      string
	Summary    string
	Sections   []Section
	Warning    string
	References []string
	Footer     string
}

// RenderReport prints r. Empty sections are skipped.
func (p *Printer) RenderReport(r Report) {
	if r.Title != "" {
		p.Title(r.Title)
	}
	if s := strings.TrimSpace(r.Summary); s != "" {
		p.Box("Özet", s)
	}
	for _, sec := range r.Sections {
		body := strings.TrimSpace(sec.Body)
		if body == "" {
			continue
		}
		p.Heading(sec.Heading)
		p.Text(body)
	}
	if w := strings.TrimSpace(r.Warning); w != "" {
		fmt.Fprintln(p.w)
		p.WarningBox("Müktesep Hak Uyarısı", w)
	}
	if len(r.References) > 0 {
		p.Heading("Yasal Dayanaklar")
		p.Bullets(r.References)
	}
	if r.Footer != "" {
		fmt.Fprintln(p.w)
		p.Muted(r.Footer)
	}
}
