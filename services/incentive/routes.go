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
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/tesvik/pkg/extensions"
)

const defaultShutdownTimeout = 30 * time.Second

// RegisterRoutes registers the API on router.
//
// Endpoints:
//
//	POST /v1/analyze - Run an analysis
//	GET  /v1/analyze/stream - Run an analysis over a websocket with progress
//	GET  /v1/analyses - List stored analyses
//	GET  /v1/analyses/:id - Load a stored analysis
//	POST /v1/audit - Annex checks for one investment
//	GET  /v1/regions/:city - Region resolution for a city
//	GET  /v1/directives - Annotations in force on a date
//	GET  /v1/rules - Rule tables in force on a date
//	GET  /v1/events - Audit trail (auditor role)
//	GET  /health - Liveness and active backends
//	GET  /metrics - Prometheus exposition
//
// Every /v1 request is audited and then authenticated.
func RegisterRoutes(router *gin.Engine, h *Handlers) {
	ext := h.svc.Extensions()
	router.GET("/health", h.HandleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.svc.Registry(), promhttp.HandlerOpts{})))

	v1 := router.Group("/v1",
		auditMiddleware(ext.AuditLogger, h.logger),
		authMiddleware(ext.AuthProvider, h.logger),
	)
	{
		v1.POST("/analyze", h.HandleAnalyze)
		v1.GET("/analyze/stream", h.HandleAnalyzeStream)
		v1.GET("/analyses", h.HandleListAnalyses)
		v1.GET("/analyses/:id", h.HandleGetAnalysis)
		v1.POST("/audit", h.HandleAudit)
		v1.GET("/regions/:city", h.HandleRegion)
		v1.GET("/directives", h.HandleDirectives)
		v1.GET("/rules", h.HandleRules)
		v1.GET("/events", requireRole(extensions.RoleAuditor), h.HandleEvents)
	}
}

// NewRouter builds a gin engine with recovery, tracing and every route.
func NewRouter(svc *Service) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(svc.cfg.Telemetry.ServiceName))
	RegisterRoutes(router, NewHandlers(svc))
	return router
}

// Serve runs the HTTP API until ctx is cancelled, then shuts down
// gracefully within the configured timeout.
func Serve(ctx context.Context, svc *Service) error {
	sc := svc.cfg.Server
	srv := &http.Server{
		Addr:         sc.Addr,
		Handler:      NewRouter(svc),
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		svc.logger.Info("starting tesvik server", slog.String("address", sc.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	svc.logger.Info("shutting down tesvik server")
	timeout := sc.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
