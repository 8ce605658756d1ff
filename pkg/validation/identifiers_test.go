// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateSectorCode(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantErr bool
	}{
		{"four digits", "1531", false},
		{"one subdivision", "2710.1", false},
		{"two subdivisions", "1711.0.01", false},

		{"empty", "", true},
		{"three digits", "153", true},
		{"five digits", "15311", true},
		{"prefix kept", "US-97:1531", true},
		{"letters", "15A1", true},
		{"trailing dot", "1531.", true},
		{"too deep", "1531.1.1.1", true},
		{"injection", "1531\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSectorCode(tt.code)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSectorCode(%q) error = %v, wantErr %v", tt.code, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalid) {
				t.Errorf("error %v does not wrap ErrInvalid", err)
			}
		})
	}
}

func TestSanitizeSectorCode(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"1531", "1531", false},
		{" US-97:1531 ", "1531", false},
		{"us-97 : 5510", "5510", false},
		{"US-97:2710.1", "2710.1", false},
		{"US-97", "", true},
		{"kod yok", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := SanitizeSectorCode(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SanitizeSectorCode(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("SanitizeSectorCode(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestValidateSessionID(t *testing.T) {
	valid := []string{"abc123", "a-b_c", strings.Repeat("x", MaxSessionIDLength)}
	for _, id := range valid {
		if err := ValidateSessionID(id); err != nil {
			t.Errorf("ValidateSessionID(%q) = %v", id, err)
		}
	}
	invalid := []string{"", "../etc", "a b", "a/b", strings.Repeat("x", MaxSessionIDLength+1)}
	for _, id := range invalid {
		if err := ValidateSessionID(id); err == nil {
			t.Errorf("ValidateSessionID(%q) succeeded", id)
		}
	}
}
