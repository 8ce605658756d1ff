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
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/tesvik/pkg/extensions"
	"github.com/AleutianAI/tesvik/services/incentive/analysis"
	"github.com/AleutianAI/tesvik/services/incentive/dag"
	"github.com/AleutianAI/tesvik/services/incentive/storage"
	"github.com/AleutianAI/tesvik/services/incentive/telemetry"
)

// maxListLimit caps GET /v1/analyses.
const maxListLimit = 100

// Handlers serves the HTTP API over a Service.
type Handlers struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandlers creates handlers for svc.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc, logger: svc.logger}
}

// HandleAnalyze handles POST /v1/analyze.
//
// Description:
//
//	Runs one analysis. Node failures never fail the request; they appear
//	in node_errors and the report uses fallbacks.
//
// Response:
//
//	200 OK: AnalyzeResponse
//	400 Bad Request: Missing or oversized query
//	500 Internal Server Error: The run ended without a report
func (h *Handlers) HandleAnalyze(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	ctx := c.Request.Context()
	logger := telemetry.LoggerWithTrace(ctx, h.logger).With(
		slog.String("request_id", requestID),
		slog.String("handler", "HandleAnalyze"),
	)

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	resp, err := h.svc.Analyze(ctx, req)
	if err != nil {
		status, code := analyzeErrorStatus(ctx, err)
		logger.Error("analysis failed", slog.String("error", err.Error()))
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	c.Set(resourceIDKey, resp.SessionID)
	logger.Info("analysis completed",
		slog.String("session_id", resp.SessionID),
		slog.Int("steps", len(resp.Path)),
		slog.Int("absorbed_failures", len(resp.NodeErrors)),
	)
	c.JSON(http.StatusOK, resp)
}

// analyzeErrorStatus maps an Analyze error to an HTTP status and code.
func analyzeErrorStatus(ctx context.Context, err error) (int, string) {
	switch {
	case errors.Is(err, ErrEmptyQuery), errors.Is(err, ErrQueryTooLong):
		return http.StatusBadRequest, "INVALID_QUERY"
	case errors.Is(err, ErrSensitiveQuery):
		return http.StatusUnprocessableEntity, "SENSITIVE_QUERY"
	case errors.Is(err, dag.ErrPipelineExhausted):
		return http.StatusInternalServerError, "PIPELINE_EXHAUSTED"
	case errors.Is(err, ErrIncompleteReport):
		return http.StatusInternalServerError, "INCOMPLETE_REPORT"
	case ctx.Err() != nil:
		return http.StatusServiceUnavailable, "CANCELLED"
	}
	return http.StatusInternalServerError, "ANALYSIS_FAILED"
}

// HandleGetAnalysis handles GET /v1/analyses/:id.
func (h *Handlers) HandleGetAnalysis(c *gin.Context) {
	c.Set(resourceIDKey, c.Param("id"))
	rec, err := h.svc.Run(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, storage.ErrInvalidSessionID):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_SESSION_ID"})
	case errors.Is(err, ErrRunNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "NOT_FOUND"})
	case err != nil:
		h.logger.Error("load analysis failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "STORAGE_ERROR"})
	default:
		c.JSON(http.StatusOK, rec)
	}
}

// HandleListAnalyses handles GET /v1/analyses?limit=N.
func (h *Handlers) HandleListAnalyses(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer", Code: "INVALID_LIMIT"})
			return
		}
		limit = min(n, maxListLimit)
	}
	runs, err := h.svc.Runs(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "STORAGE_ERROR"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"analyses": runs})
}

// HandleAudit handles POST /v1/audit.
func (h *Handlers) HandleAudit(c *gin.Context) {
	var req AuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}
	resp, err := h.svc.Audit(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleRegion handles GET /v1/regions/:city?type=...&query=...
func (h *Handlers) HandleRegion(c *gin.Context) {
	c.Set(resourceIDKey, c.Param("city"))
	resp, err := h.svc.Region(RegionRequest{
		City:  c.Param("city"),
		Type:  analysis.InvestmentType(c.Query("type")),
		Query: c.Query("query"),
	})
	switch {
	case errors.Is(err, ErrUnknownCity):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "UNKNOWN_CITY"})
	case err != nil:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_TYPE"})
	default:
		c.JSON(http.StatusOK, resp)
	}
}

// HandleDirectives handles GET /v1/directives?date=YYYY-MM-DD.
func (h *Handlers) HandleDirectives(c *gin.Context) {
	resp, err := h.svc.Directives(c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_DATE"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleRules handles GET /v1/rules?date=YYYY-MM-DD.
func (h *Handlers) HandleRules(c *gin.Context) {
	resp, err := h.svc.Rules(c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_DATE"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleEvents handles GET /v1/events?user=&type=a,b&since=&until=&limit=N.
//
// Times are RFC 3339. Requires the auditor role.
func (h *Handlers) HandleEvents(c *gin.Context) {
	filter := extensions.AuditFilter{UserID: c.Query("user"), Limit: 50}
	if raw := c.Query("type"); raw != "" {
		filter.EventTypes = strings.Split(raw, ",")
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer", Code: "INVALID_LIMIT"})
			return
		}
		filter.Limit = min(n, maxListLimit)
	}
	for param, dst := range map[string]*time.Time{"since": &filter.StartTime, "until": &filter.EndTime} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: param + " must be an RFC 3339 time", Code: "INVALID_TIME"})
			return
		}
		*dst = t
	}

	events, err := h.svc.Events(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("query audit events failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "STORAGE_ERROR"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Health())
}

func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
