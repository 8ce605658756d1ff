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
	"context"
	"errors"
	"fmt"

	"github.com/AleutianAI/tesvik/services/incentive/llm"
)

// ErrMissingDependency is returned when Deps lacks a required collaborator.
var ErrMissingDependency = errors.New("missing node dependency")

func missing(what string) error {
	return fmt.Errorf("%w: %s", ErrMissingDependency, what)
}

// Fallback reasons reported to metrics and logs.
const (
	ReasonTimeout     = "timeout"
	ReasonCanceled    = "canceled"
	ReasonRateLimited = "rate_limited"
	ReasonSchema      = "schema"
	ReasonEmpty       = "empty"
	ReasonPrompt      = "prompt"
	ReasonBackend     = "backend"
	ReasonOffline     = "offline"
)

// errPrompt marks a template rendering failure.
var errPrompt = errors.New("render prompt")

// fallbackReason maps a reasoning failure to a low-cardinality label.
func fallbackReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case errors.Is(err, llm.ErrRateLimited):
		return ReasonRateLimited
	case errors.Is(err, llm.ErrSchemaViolation):
		return ReasonSchema
	case errors.Is(err, llm.ErrEmptyResponse):
		return ReasonEmpty
	case errors.Is(err, errPrompt):
		return ReasonPrompt
	case errors.Is(err, llm.ErrOffline):
		return ReasonOffline
	default:
		return ReasonBackend
	}
}
