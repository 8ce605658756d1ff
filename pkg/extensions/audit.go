// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import (
	"context"
	"time"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
)

// AuditEvent is one recorded API action.
//
// Example:
//
//	event := AuditEvent{
//	    EventType:    "analysis.create",
//	    UserID:       info.UserID,
//	    Action:       "create",
//	    ResourceType: "analysis",
//	    ResourceID:   sessionID,
//	    Outcome:      OutcomeSuccess,
//	}
type AuditEvent struct {
	ID        string    `json:"id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id"`
	Action    string    `json:"action"`

	ResourceType string `json:"resource_type,omitempty"`
	ResourceID   string `json:"resource_id,omitempty"`
	Outcome      string `json:"outcome"`
	Status       int    `json:"status,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
}

// AuditFilter selects events. Zero fields do not filter.
type AuditFilter struct {
	EventTypes []string
	UserID     string
	StartTime  time.Time
	EndTime    time.Time
	Limit      int
}

// Matches reports whether e passes f.
func (f AuditFilter) Matches(e AuditEvent) bool {
	if len(f.EventTypes) > 0 {
		ok := false
		for _, t := range f.EventTypes {
			if t == e.EventType {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.UserID != "" && f.UserID != e.UserID {
		return false
	}
	if !f.StartTime.IsZero() && e.Timestamp.Before(f.StartTime) {
		return false
	}
	if !f.EndTime.IsZero() && !e.Timestamp.Before(f.EndTime) {
		return false
	}
	return true
}

// AuditLogger records and queries API events.
type AuditLogger interface {
	// Log records event. Implementations set Timestamp and ID when empty.
	Log(ctx context.Context, event AuditEvent) error

	// Query returns matching events, newest first.
	Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)
}

// NopAuditLogger discards every event.
type NopAuditLogger struct{}

// Log discards the event.
func (l *NopAuditLogger) Log(context.Context, AuditEvent) error { return nil }

// Query returns no events.
func (l *NopAuditLogger) Query(context.Context, AuditFilter) ([]AuditEvent, error) {
	return []AuditEvent{}, nil
}

var _ AuditLogger = (*NopAuditLogger)(nil)
