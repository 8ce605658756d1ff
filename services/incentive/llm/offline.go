// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import "context"

// Offline is a Client with no backend. Every call fails with ErrOffline,
// so each reasoning step takes its deterministic fallback.
type Offline struct{}

// Complete implements Client.
func (Offline) Complete(ctx context.Context, request *Request) (*Response, error) {
	if request == nil {
		return nil, ErrNilRequest
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrOffline
}

// Name implements Client.
func (Offline) Name() string { return "offline" }

// Model implements Client.
func (Offline) Model() string { return "none" }
