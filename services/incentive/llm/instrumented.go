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

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/tesvik/services/incentive/observability"
)

var tracer = otel.Tracer("tesvik.llm")

// Instrumented records a span and Prometheus metrics for every call.
type Instrumented struct {
	next    Client
	metrics *observability.Metrics
}

// NewInstrumented wraps next.
func NewInstrumented(next Client, metrics *observability.Metrics) *Instrumented {
	return &Instrumented{next: next, metrics: metrics}
}

// Name implements Client.
func (i *Instrumented) Name() string { return i.next.Name() }

// Model implements Client.
func (i *Instrumented) Model() string { return i.next.Model() }

// Complete implements Client.
func (i *Instrumented) Complete(ctx context.Context, request *Request) (*Response, error) {
	ctx, span := tracer.Start(ctx, "llm.Complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.backend", i.next.Name()),
		attribute.String("llm.model", i.next.Model()),
	)

	start := time.Now()
	resp, err := i.next.Complete(ctx, request)
	i.metrics.RecordReasoningCall(i.next.Name(), time.Since(start), err, ErrRateLimited)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("llm.tokens", resp.TokensUsed),
		attribute.Bool("llm.cached", resp.Cached),
	)
	if !resp.Cached {
		i.metrics.RecordTokens(i.next.Name(), resp.InputTokens, resp.OutputTokens)
	}
	return resp, nil
}
