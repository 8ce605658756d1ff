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
	"errors"
	"testing"
	"time"
)

// =============================================================================
// ServiceOptions
// =============================================================================

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.AuthProvider == nil || opts.AuditLogger == nil {
		t.Fatal("defaults must be non-nil")
	}
	if opts.AuthProvider.Required() {
		t.Error("default auth must not require a token")
	}
}

func TestOptions_WithAndNormalize(t *testing.T) {
	tokens := NewTokenAuthProvider(nil)
	opts := ServiceOptions{}.WithAuth(tokens).Normalize()
	if opts.AuthProvider != tokens {
		t.Error("WithAuth not applied")
	}
	if _, ok := opts.AuditLogger.(*NopAuditLogger); !ok {
		t.Errorf("AuditLogger = %T, want *NopAuditLogger", opts.AuditLogger)
	}

	logger := &NopAuditLogger{}
	if got := DefaultOptions().WithAudit(logger).AuditLogger; got != logger {
		t.Error("WithAudit not applied")
	}
}

// =============================================================================
// Auth
// =============================================================================

func TestNopAuthProvider(t *testing.T) {
	info, err := (&NopAuthProvider{}).Validate(context.Background(), "")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if info.UserID != LocalUserID || !info.HasRole(RoleAuditor) {
		t.Errorf("info = %+v, want local admin", info)
	}
}

func TestTokenAuthProvider(t *testing.T) {
	p := NewTokenAuthProvider([]TokenUser{
		{Token: "s3cret", UserID: "ayse"},
		{Token: "audit-token", UserID: "denetci", Roles: []string{RoleAuditor}},
		{Token: "", UserID: "skipped"},
		{Token: "orphan"},
	})
	if !p.Required() {
		t.Error("token auth must be required")
	}

	tests := []struct {
		name    string
		token   string
		user    string
		role    string
		wantErr bool
	}{
		{"analyst token", "s3cret", "ayse", RoleAnalyst, false},
		{"auditor token", "audit-token", "denetci", RoleAuditor, false},
		{"empty token", "", "", "", true},
		{"unknown token", "guess", "", "", true},
		{"orphan token skipped", "orphan", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := p.Validate(context.Background(), tt.token)
			if tt.wantErr {
				if !errors.Is(err, ErrUnauthorized) {
					t.Fatalf("err = %v, want ErrUnauthorized", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if info.UserID != tt.user || !info.HasRole(tt.role) {
				t.Errorf("info = %+v", info)
			}
		})
	}
}

func TestAuthInfo_HasRole(t *testing.T) {
	var nilInfo *AuthInfo
	if nilInfo.HasRole(RoleAnalyst) {
		t.Error("nil info has no roles")
	}
	analyst := &AuthInfo{UserID: "u", Roles: []string{RoleAnalyst}}
	if analyst.HasRole(RoleAuditor) {
		t.Error("analyst is not an auditor")
	}
	admin := &AuthInfo{UserID: "a", Roles: []string{RoleAdmin}}
	if !admin.HasRole(RoleAuditor) {
		t.Error("admin has every role")
	}
}

// =============================================================================
// Audit
// =============================================================================

func TestAuditFilter_Matches(t *testing.T) {
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	e := AuditEvent{EventType: "analysis.create", UserID: "ayse", Timestamp: at}

	tests := []struct {
		name   string
		filter AuditFilter
		want   bool
	}{
		{"empty", AuditFilter{}, true},
		{"type match", AuditFilter{EventTypes: []string{"rules.read", "analysis.create"}}, true},
		{"type miss", AuditFilter{EventTypes: []string{"rules.read"}}, false},
		{"user miss", AuditFilter{UserID: "mehmet"}, false},
		{"start inclusive", AuditFilter{StartTime: at}, true},
		{"end exclusive", AuditFilter{EndTime: at}, false},
		{"before start", AuditFilter{StartTime: at.Add(time.Second)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(e); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNopAuditLogger(t *testing.T) {
	l := &NopAuditLogger{}
	if err := l.Log(context.Background(), AuditEvent{EventType: "x"}); err != nil {
		t.Fatalf("Log: %v", err)
	}
	events, err := l.Query(context.Background(), AuditFilter{})
	if err != nil || len(events) != 0 {
		t.Errorf("Query = %v, %v", events, err)
	}
}
