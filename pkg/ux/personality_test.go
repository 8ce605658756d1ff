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
	"os"
	"testing"
)

// =============================================================================
// ParsePersonalityLevel Tests
// =============================================================================

func TestParsePersonalityLevel(t *testing.T) {
	tests := []struct {
		in   string
		want PersonalityLevel
	}{
		{"full", PersonalityFull},
		{"", PersonalityFull},
		{"unknown", PersonalityFull},
		{"MINIMAL", PersonalityMinimal},
		{" m ", PersonalityMinimal},
		{"machine", PersonalityMachine},
		{"plain", PersonalityMachine},
		{"q", PersonalityMachine},
	}
	for _, tt := range tests {
		if got := ParsePersonalityLevel(tt.in); got != tt.want {
			t.Errorf("ParsePersonalityLevel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// =============================================================================
// DetectPersonality Tests
// =============================================================================

func TestDetectPersonality_EnvOverride(t *testing.T) {
	t.Setenv(PersonalityEnv, "minimal")
	if got := DetectPersonality(os.Stdout); got != PersonalityMinimal {
		t.Errorf("expected minimal, got %q", got)
	}
}

func TestDetectPersonality_PipeIsMachine(t *testing.T) {
	t.Setenv(PersonalityEnv, "")
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()

	if got := DetectPersonality(w); got != PersonalityMachine {
		t.Errorf("expected machine for a pipe, got %q", got)
	}
}

func TestIsTerminal_Nil(t *testing.T) {
	if IsTerminal(nil) {
		t.Error("nil file is not a terminal")
	}
}
