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
	"strings"

	"github.com/mattn/go-isatty"
)

// PersonalityEnv overrides the detected output level.
const PersonalityEnv = "TESVIK_OUTPUT"

// PersonalityLevel defines how rich terminal output is.
type PersonalityLevel string

const (
	// PersonalityFull enables colors, icons and boxes.
	PersonalityFull PersonalityLevel = "full"

	// PersonalityMinimal uses icons and plain text.
	PersonalityMinimal PersonalityLevel = "minimal"

	// PersonalityMachine emits plain, line-oriented text for scripts.
	PersonalityMachine PersonalityLevel = "machine"
)

// ParsePersonalityLevel converts a string to a level. Unknown values map to
// PersonalityFull.
func ParsePersonalityLevel(s string) PersonalityLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minimal", "min", "m":
		return PersonalityMinimal
	case "machine", "plain", "quiet", "q":
		return PersonalityMachine
	default:
		return PersonalityFull
	}
}

// DetectPersonality picks the level for f: $TESVIK_OUTPUT when set,
// otherwise full on a terminal and machine when piped.
func DetectPersonality(f *os.File) PersonalityLevel {
	if env := os.Getenv(PersonalityEnv); env != "" {
		return ParsePersonalityLevel(env)
	}
	if IsTerminal(f) {
		return PersonalityFull
	}
	return PersonalityMachine
}

// IsTerminal reports whether f is a terminal, including Cygwin ptys.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
