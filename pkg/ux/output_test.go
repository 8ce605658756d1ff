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
	"bytes"
	"strings"
	"testing"
)

func newTestPrinter(level PersonalityLevel) (*Printer, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewPrinter(&buf, level, 60), &buf
}

// =============================================================================
// Icon Tests
// =============================================================================

func TestIcon_Render(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError, IconBullet, IconArrow} {
		if !strings.Contains(icon.Render(), string(icon)) {
			t.Errorf("Render(%q) lost the glyph", icon)
		}
	}
}

// =============================================================================
// Printer Tests
// =============================================================================

func TestNewPrinter_DefaultWidth(t *testing.T) {
	p := NewPrinter(&bytes.Buffer{}, PersonalityFull, 0)
	if p.width != 80 {
		t.Errorf("expected width 80, got %d", p.width)
	}
	if p.Level() != PersonalityFull {
		t.Errorf("unexpected level %q", p.Level())
	}
}

func TestPrinter_StatusLines(t *testing.T) {
	tests := []struct {
		level PersonalityLevel
		want  []string
	}{
		{PersonalityMachine, []string{"OK: saved\n", "WARN: slow\n", "ERROR: failed\n"}},
		{PersonalityMinimal, []string{"✓ saved\n", "⚠ slow\n", "✗ failed\n"}},
		{PersonalityFull, []string{"saved", "slow", "failed"}},
	}
	for _, tt := range tests {
		p, buf := newTestPrinter(tt.level)
		p.Success("saved")
		p.Warning("slow")
		p.Error("failed")
		for _, w := range tt.want {
			if !strings.Contains(buf.String(), w) {
				t.Errorf("%s: output %q missing %q", tt.level, buf.String(), w)
			}
		}
	}
}

func TestPrinter_MachineIsPlain(t *testing.T) {
	p, buf := newTestPrinter(PersonalityMachine)
	p.Title("Rapor")
	p.Heading("Destekler")
	p.Muted("hidden")
	p.Field("Bölge", "3")
	p.Bullets([]string{"a", "b"})
	p.Box("Özet", "metin")

	want := "Rapor\n\n## Destekler\nBölge\t3\n- a\n- b\nÖzet: metin\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestPrinter_FullBox(t *testing.T) {
	p, buf := newTestPrinter(PersonalityFull)
	p.Box("Özet", "Gaziantep 3. bölgededir.")
	out := buf.String()
	if !strings.Contains(out, "Gaziantep 3. bölgededir.") {
		t.Errorf("box lost content: %q", out)
	}
	if !strings.Contains(out, "╭") {
		t.Errorf("expected rounded border: %q", out)
	}
}

func TestPrinter_Table(t *testing.T) {
	p, buf := newTestPrinter(PersonalityMachine)
	p.Table([]string{"Bölge", "Oran"}, [][]string{{"1", "%15"}, {"6", "%50"}})
	want := "Bölge\tOran\n1\t%15\n6\t%50\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}

	p, buf = newTestPrinter(PersonalityMinimal)
	p.Table([]string{"A", "B"}, [][]string{{"uzun değer", "x"}, {"k"}})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[1], "uzun değer  x") {
		t.Errorf("columns not aligned: %q", lines[1])
	}
}
