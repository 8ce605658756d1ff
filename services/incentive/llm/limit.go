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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// LimitConfig configures Limited.
type LimitConfig struct {
	// RequestsPerSecond is the sustained call rate. Zero or less disables
	// limiting.
	RequestsPerSecond float64

	// Burst is the token bucket size. Values below 1 are treated as 1.
	Burst int

	// MaxRetries is how many times a failed call is retried.
	MaxRetries int

	// RetryBackoff is the first retry delay; it doubles per attempt.
	RetryBackoff time.Duration
}

// DefaultLimitConfig returns conservative settings for a hosted backend.
func DefaultLimitConfig() LimitConfig {
	return LimitConfig{
		RequestsPerSecond: 5,
		Burst:             5,
		MaxRetries:        2,
		RetryBackoff:      500 * time.Millisecond,
	}
}

// Limited bounds calls to a backend with a token bucket and retries failed
// calls with exponential backoff.
//
// Context cancellation and deadline errors are never retried. Schema
// violations are not retried either: the same prompt yields the same shape.
type Limited struct {
	next    Client
	limiter *rate.Limiter
	cfg     LimitConfig
	logger  *slog.Logger
}

// NewLimited wraps next.
func NewLimited(next Client, cfg LimitConfig, logger *slog.Logger) *Limited {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Limited{
		next:    next,
		limiter: rate.NewLimiter(limit, max(cfg.Burst, 1)),
		cfg:     cfg,
		logger:  logger,
	}
}

// Name implements Client.
func (l *Limited) Name() string { return l.next.Name() }

// Model implements Client.
func (l *Limited) Model() string { return l.next.Model() }

// Complete implements Client.
func (l *Limited) Complete(ctx context.Context, request *Request) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := l.cfg.RetryBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		if err := l.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}

		resp, err := l.next.Complete(ctx, request)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !retryable(err) {
			return nil, err
		}
		l.logger.Debug("reasoning call failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Int("max_retries", l.cfg.MaxRetries),
			slog.String("error", err.Error()),
		)
	}
	return nil, fmt.Errorf("reasoning call failed after %d attempts: %w", l.cfg.MaxRetries+1, lastErr)
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, ErrNilRequest), errors.Is(err, ErrSchemaViolation), errors.Is(err, ErrMissingAPIKey), errors.Is(err, ErrOffline):
		return false
	}
	return true
}
