// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation checks identifiers that arrive from users or from a
// reasoning backend before they are used as storage keys or table lookups.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid identifier")

// MaxSessionIDLength caps a session ID.
const MaxSessionIDLength = 128

// sectorCodePattern matches a US-97 code: four digits with up to two
// dotted subdivisions (1531, 2710.1, 1711.0.01).
var sectorCodePattern = regexp.MustCompile(`^[0-9]{4}(\.[0-9]{1,2}){0,2}$`)

// sessionIDPattern is what the run store accepts as a key suffix.
var sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateSectorCode checks a bare US-97 code.
//
// Example:
//
//	if err := validation.ValidateSectorCode("1531"); err != nil {
//	    return err
//	}
func ValidateSectorCode(code string) error {
	if code == "" {
		return fmt.Errorf("%w: empty sector code", ErrInvalid)
	}
	if !sectorCodePattern.MatchString(code) {
		return fmt.Errorf("%w: sector code %q", ErrInvalid, code)
	}
	return nil
}

// SanitizeSectorCode accepts the forms found in decisions and model
// output ("US-97:1531", "US-97 : 1531", " 1531 ") and returns the bare
// code.
func SanitizeSectorCode(raw string) (string, error) {
	code := strings.TrimSpace(raw)
	if rest, ok := cutPrefixFold(code, "US-97"); ok {
		code = strings.TrimSpace(rest)
		code = strings.TrimSpace(strings.TrimPrefix(code, ":"))
	}
	if err := ValidateSectorCode(code); err != nil {
		return "", err
	}
	return code, nil
}

// ValidateSessionID checks a run identifier.
func ValidateSessionID(id string) error {
	if id == "" || len(id) > MaxSessionIDLength || !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("%w: session id %q", ErrInvalid, id)
	}
	return nil
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}
