// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus collectors for incentive
// analysis runs.
//
// # Description
//
// Metrics cover:
//   - Pipeline runs (by outcome) and their duration
//   - Per-node latency and isolated failures
//   - Node fallbacks (by node and reason)
//   - Reasoning service calls, latency, tokens and cache lookups
//   - Final classifications (by type and source)
//
// Metrics implements dag.Observer so the executor can feed it directly.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
// Every Record method is a no-op on a nil *Metrics.
package observability

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "tesvik"

const (
	pipelineSubsystem  = "pipeline"
	reasoningSubsystem = "reasoning"
)

// Run outcomes used as the "status" label.
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusExhausted = "exhausted"
)

// Classification sources used as the "source" label.
const (
	SourceReasoned     = "reasoned"
	SourceShortCircuit = "short_circuit"
	SourceFallback     = "fallback"
)

// ErrorClassifier maps a run error to a status label. Set by the caller so
// this package stays independent of the executor's error types.
type ErrorClassifier func(err error) string

// Metrics holds all Prometheus collectors for the analysis service.
//
// # Fields
//
//   - RunsTotal: Counter of pipeline runs by status
//   - RunDurationSeconds: Histogram of pipeline run duration
//   - NodeDurationSeconds: Histogram of node latency by node
//   - NodeErrorsTotal: Counter of isolated node failures by node
//   - FallbacksTotal: Counter of node fallbacks by node and reason
//   - ReasoningCallsTotal: Counter of backend calls by backend and status
//   - ReasoningDurationSeconds: Histogram of backend latency
//   - ReasoningTokensTotal: Counter of tokens by backend and direction
//   - CacheLookupsTotal: Counter of reasoning cache lookups by result
//   - DocumentsRetrieved: Histogram of documents returned per retrieval
//   - ClassificationsTotal: Counter of final classifications
//   - SensitiveQueriesTotal: Counter of queries carrying personal data
type Metrics struct {
	// Labels: status (success, error, exhausted)
	RunsTotal *prometheus.CounterVec

	// Labels: status
	RunDurationSeconds *prometheus.HistogramVec

	// Labels: node
	NodeDurationSeconds *prometheus.HistogramVec

	// Labels: node
	NodeErrorsTotal *prometheus.CounterVec

	// Labels: node, reason (service_error, schema_violation, timeout, ...)
	FallbacksTotal *prometheus.CounterVec

	// Labels: backend, status (success, error, rate_limited)
	ReasoningCallsTotal *prometheus.CounterVec

	// Labels: backend
	ReasoningDurationSeconds *prometheus.HistogramVec

	// Labels: backend, direction (input, output)
	ReasoningTokensTotal *prometheus.CounterVec

	// Labels: result (hit, miss)
	CacheLookupsTotal *prometheus.CounterVec

	// Labels: node
	DocumentsRetrieved *prometheus.HistogramVec

	// Labels: type, source (reasoned, short_circuit, fallback)
	ClassificationsTotal *prometheus.CounterVec

	// Labels: classification, action (redacted, blocked, allowed)
	SensitiveQueriesTotal *prometheus.CounterVec

	classify ErrorClassifier
}

// NewMetrics creates and registers all collectors on reg.
//
// # Description
//
// Pass prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests to avoid duplicate registration.
//
// # Limitations
//
//   - Panics if the same registry receives a second set of collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "runs_total",
				Help:      "Total number of analysis runs by outcome",
			},
			[]string{"status"},
		),
		RunDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "run_duration_seconds",
				Help:      "Analysis run duration in seconds",
				Buckets:   []float64{0.05, 0.25, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"status"},
		),
		NodeDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "node_duration_seconds",
				Help:      "Node execution duration in seconds",
				Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"node"},
		),
		NodeErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "node_errors_total",
				Help:      "Node failures absorbed by the executor",
			},
			[]string{"node"},
		),
		FallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "fallbacks_total",
				Help:      "Node fallbacks by node and reason",
			},
			[]string{"node", "reason"},
		),
		ReasoningCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: reasoningSubsystem,
				Name:      "calls_total",
				Help:      "Reasoning service calls by backend and status",
			},
			[]string{"backend", "status"},
		),
		ReasoningDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: reasoningSubsystem,
				Name:      "call_duration_seconds",
				Help:      "Reasoning service call duration in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"backend"},
		),
		ReasoningTokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: reasoningSubsystem,
				Name:      "tokens_total",
				Help:      "Tokens consumed by backend and direction",
			},
			[]string{"backend", "direction"},
		),
		CacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: reasoningSubsystem,
				Name:      "cache_lookups_total",
				Help:      "Reasoning cache lookups by result",
			},
			[]string{"result"},
		),
		DocumentsRetrieved: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "documents_retrieved",
				Help:      "Documents returned per retrieval",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
			},
			[]string{"node"},
		),
		ClassificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "classifications_total",
				Help:      "Investment classifications by type and source",
			},
			[]string{"type", "source"},
		),
		SensitiveQueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "privacy",
				Name:      "sensitive_queries_total",
				Help:      "Queries with personal data by classification and action taken",
			},
			[]string{"classification", "action"},
		),
	}
}

// WithErrorClassifier sets the mapping used by RunFinished.
func (m *Metrics) WithErrorClassifier(fn ErrorClassifier) *Metrics {
	if m != nil {
		m.classify = fn
	}
	return m
}

// =============================================================================
// Pipeline
// =============================================================================

// NodeFinished records one node outcome. Implements dag.Observer.
func (m *Metrics) NodeFinished(_ string, node string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.NodeDurationSeconds.WithLabelValues(node).Observe(duration.Seconds())
	if err != nil {
		m.NodeErrorsTotal.WithLabelValues(node).Inc()
	}
}

// RunFinished records one pipeline run. Implements dag.Observer.
func (m *Metrics) RunFinished(_ string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
		if m.classify != nil {
			status = m.classify(err)
		}
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDurationSeconds.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordFallback records a node substituting its documented fallback.
func (m *Metrics) RecordFallback(node, reason string) {
	if m == nil {
		return
	}
	m.FallbacksTotal.WithLabelValues(node, reason).Inc()
}

// RecordDocuments records how many documents a retrieval returned.
func (m *Metrics) RecordDocuments(node string, n int) {
	if m == nil {
		return
	}
	m.DocumentsRetrieved.WithLabelValues(node).Observe(float64(n))
}

// RecordClassification records the final investment type and how it was
// reached.
func (m *Metrics) RecordClassification(investmentType, source string) {
	if m == nil {
		return
	}
	m.ClassificationsTotal.WithLabelValues(investmentType, source).Inc()
}

// RecordSensitiveQuery records a query whose scan found personal data.
func (m *Metrics) RecordSensitiveQuery(classification, action string) {
	if m == nil {
		return
	}
	m.SensitiveQueriesTotal.WithLabelValues(classification, action).Inc()
}

// =============================================================================
// Reasoning
// =============================================================================

// RecordReasoningCall records one backend call.
//
// # Inputs
//
//   - backend: The client name (openai, mock, ...).
//   - duration: Wall time of the call.
//   - err: The call error, nil on success. Errors matching rateLimited are
//     labelled "rate_limited".
func (m *Metrics) RecordReasoningCall(backend string, duration time.Duration, err error, rateLimited error) {
	if m == nil {
		return
	}
	status := StatusSuccess
	switch {
	case err == nil:
	case rateLimited != nil && errors.Is(err, rateLimited):
		status = "rate_limited"
	default:
		status = StatusError
	}
	m.ReasoningCallsTotal.WithLabelValues(backend, status).Inc()
	m.ReasoningDurationSeconds.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordTokens records token usage.
func (m *Metrics) RecordTokens(backend string, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.ReasoningTokensTotal.WithLabelValues(backend, "input").Add(float64(inputTokens))
	m.ReasoningTokensTotal.WithLabelValues(backend, "output").Add(float64(outputTokens))
}

// RecordCacheLookup records a reasoning cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}
