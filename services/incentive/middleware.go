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
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/tesvik/pkg/extensions"
)

// Context keys set by the middleware and the handlers.
const (
	authInfoKey   = "tesvik.auth"
	resourceIDKey = "tesvik.resource_id"
)

// auditedRoute names the event recorded for one route.
type auditedRoute struct {
	eventType    string
	action       string
	resourceType string
}

// auditedRoutes maps "METHOD /path" (gin's FullPath) to its audit event.
// Unlisted routes are not audited.
var auditedRoutes = map[string]auditedRoute{
	"POST /v1/analyze":       {"analysis.create", "create", "analysis"},
	"GET /v1/analyze/stream": {"analysis.stream", "create", "analysis"},
	"GET /v1/analyses":       {"analysis.list", "list", "analysis"},
	"GET /v1/analyses/:id":   {"analysis.read", "read", "analysis"},
	"POST /v1/audit":         {"rules.audit", "check", "annex"},
	"GET /v1/regions/:city":  {"region.read", "read", "region"},
	"GET /v1/directives":     {"directives.read", "read", "directive"},
	"GET /v1/rules":          {"rules.read", "read", "rule_table"},
	"GET /v1/events":         {"events.read", "read", "audit_event"},
}

// authMiddleware resolves the caller from the Authorization header.
//
// When the provider requires a token, a missing or unknown one is answered
// with 401 and the request stops here.
func authMiddleware(provider extensions.AuthProvider, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" && !provider.Required() {
			token = extensions.LocalUserID
		}
		info, err := provider.Validate(c.Request.Context(), token)
		if err != nil {
			logger.Warn("rejected API request",
				slog.String("path", c.FullPath()),
				slog.String("error", err.Error()),
			)
			c.Header("WWW-Authenticate", `Bearer realm="tesvik"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: extensions.ErrUnauthorized.Error(), Code: "UNAUTHORIZED"})
			return
		}
		c.Set(authInfoKey, info)
		c.Next()
	}
}

// requireRole stops callers without role with 403.
func requireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authInfo(c).HasRole(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: extensions.ErrForbidden.Error(), Code: "FORBIDDEN"})
			return
		}
		c.Next()
	}
}

// auditMiddleware records one event per audited request once the handler
// has written its response. A failed write is logged, never returned.
func auditMiddleware(auditLog extensions.AuditLogger, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route, ok := auditedRoutes[c.Request.Method+" "+c.FullPath()]
		if !ok {
			return
		}
		event := extensions.AuditEvent{
			EventType:    route.eventType,
			Action:       route.action,
			ResourceType: route.resourceType,
			ResourceID:   c.GetString(resourceIDKey),
			Outcome:      outcome(c.Writer.Status()),
			Status:       c.Writer.Status(),
			RequestID:    c.Writer.Header().Get("X-Request-ID"),
		}
		if info := authInfo(c); info != nil {
			event.UserID = info.UserID
		}
		// The request context may already be cancelled by a disconnect.
		ctx := context.WithoutCancel(c.Request.Context())
		if err := auditLog.Log(ctx, event); err != nil {
			logger.Warn("audit event not recorded",
				slog.String("event_type", event.EventType),
				slog.String("error", err.Error()),
			)
		}
	}
}

func outcome(status int) string {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return extensions.OutcomeDenied
	case status >= 400:
		return extensions.OutcomeFailure
	default:
		return extensions.OutcomeSuccess
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func authInfo(c *gin.Context) *extensions.AuthInfo {
	v, ok := c.Get(authInfoKey)
	if !ok {
		return nil
	}
	info, _ := v.(*extensions.AuthInfo)
	return info
}
