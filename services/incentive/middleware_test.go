// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package incentive

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/tesvik/pkg/extensions"
)

func doAs(router http.Handler, token, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type eventsBody struct {
	Events []extensions.AuditEvent `json:"events"`
}

func tokenRouter(t *testing.T) (http.Handler, *Service) {
	t.Helper()
	cfg := testConfig()
	cfg.Auth.Tokens = []extensions.TokenUser{
		{Token: "analyst-token", UserID: "ayse"},
		{Token: "auditor-token", UserID: "denetci", Roles: []string{extensions.RoleAuditor}},
	}
	svc := newTestService(t, cfg)
	return NewRouter(svc), svc
}

func TestAuth_OpenByDefault(t *testing.T) {
	router, _ := testRouter(t)

	w := do(router, http.MethodGet, "/v1/rules?date=2024-01-01", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(router, http.MethodGet, "/v1/events", "")
	require.Equal(t, http.StatusOK, w.Code, "local user is admin")
	events := decode[eventsBody](t, w).Events
	require.NotEmpty(t, events)
	assert.Equal(t, "rules.read", events[0].EventType)
	assert.Equal(t, extensions.LocalUserID, events[0].UserID)
	assert.Equal(t, extensions.OutcomeSuccess, events[0].Outcome)
}

func TestAuth_TokensRequired(t *testing.T) {
	router, _ := tokenRouter(t)

	tests := []struct {
		name   string
		token  string
		target string
		want   int
	}{
		{"no token", "", "/v1/rules", http.StatusUnauthorized},
		{"unknown token", "guess", "/v1/rules", http.StatusUnauthorized},
		{"analyst reads rules", "analyst-token", "/v1/rules", http.StatusOK},
		{"analyst cannot read events", "analyst-token", "/v1/events", http.StatusForbidden},
		{"auditor reads events", "auditor-token", "/v1/events", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doAs(router, tt.token, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			if tt.want == http.StatusUnauthorized {
				assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
			}
		})
	}

	w := do(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code, "health stays open")
}

func TestAudit_RecordsOutcomes(t *testing.T) {
	router, _ := tokenRouter(t)

	w := doAs(router, "analyst-token", http.MethodPost, "/v1/analyze", `{
		"query": "Gaziantep'te otel yatırımı",
		"entities": {"investment_topic": "otel", "investment_region": "Gaziantep", "investment_amount": 30000000}
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sessionID := decode[AnalyzeResponse](t, w).SessionID

	doAs(router, "", http.MethodGet, "/v1/rules", "")
	doAs(router, "analyst-token", http.MethodGet, "/v1/regions/Atlantis", "")

	w = doAs(router, "auditor-token", http.MethodGet, "/v1/events?type=analysis.create,region.read,rules.read", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	events := decode[eventsBody](t, w).Events
	require.Len(t, events, 3)

	byType := map[string]extensions.AuditEvent{}
	for _, e := range events {
		byType[e.EventType] = e
	}
	created := byType["analysis.create"]
	assert.Equal(t, "ayse", created.UserID)
	assert.Equal(t, sessionID, created.ResourceID)
	assert.Equal(t, extensions.OutcomeSuccess, created.Outcome)
	assert.NotEmpty(t, created.RequestID)

	assert.Equal(t, extensions.OutcomeDenied, byType["rules.read"].Outcome)
	assert.Empty(t, byType["rules.read"].UserID)

	region := byType["region.read"]
	assert.Equal(t, extensions.OutcomeFailure, region.Outcome)
	assert.Equal(t, http.StatusNotFound, region.Status)
	assert.Equal(t, "Atlantis", region.ResourceID)

	w = doAs(router, "auditor-token", http.MethodGet, "/v1/events?user=ayse&limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[eventsBody](t, w).Events, 1)
}

func TestHandleEvents_BadParams(t *testing.T) {
	router, _ := testRouter(t)
	for _, target := range []string{"/v1/events?limit=0", "/v1/events?since=yesterday", "/v1/events?until=2024-01-01"} {
		w := do(router, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
}

func TestAudit_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = false
	svc := newTestService(t, cfg)
	router := NewRouter(svc)

	do(router, http.MethodGet, "/v1/rules", "")
	w := do(router, http.MethodGet, "/v1/events", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[eventsBody](t, w).Events)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer  abc "))
	assert.Empty(t, bearerToken("Basic abc"))
	assert.Empty(t, bearerToken("abc"))
}
