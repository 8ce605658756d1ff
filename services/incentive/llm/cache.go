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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/tesvik/services/incentive/observability"
	"github.com/AleutianAI/tesvik/services/incentive/storage"
)

const cachePrefix = "llm/"

// Cached serves repeated prompts from the embedded store and coalesces
// identical in-flight prompts into one backend call.
//
// Only successful, non-empty responses are stored. Store failures are
// logged and never fail the call.
type Cached struct {
	next     Client
	db       *storage.DB
	ttl      time.Duration
	inflight singleflight.Group
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewCached wraps next. A positive ttl expires cached entries.
func NewCached(next Client, db *storage.DB, ttl time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{next: next, db: db, ttl: ttl, metrics: metrics, logger: logger}
}

// Name implements Client.
func (c *Cached) Name() string { return c.next.Name() }

// Model implements Client.
func (c *Cached) Model() string { return c.next.Model() }

// Complete implements Client.
func (c *Cached) Complete(ctx context.Context, request *Request) (*Response, error) {
	if request == nil {
		return nil, ErrNilRequest
	}
	key := c.cacheKey(request)

	if resp, ok := c.lookup(key); ok {
		c.metrics.RecordCacheLookup(true)
		return resp, nil
	}
	c.metrics.RecordCacheLookup(false)

	v, err, _ := c.inflight.Do(key, func() (any, error) {
		resp, err := c.next.Complete(ctx, request)
		if err != nil {
			return nil, err
		}
		c.store(key, resp)
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	resp := *v.(*Response)
	return &resp, nil
}

func (c *Cached) lookup(key string) (*Response, bool) {
	data, err := c.db.Get([]byte(key))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.logger.Warn("reasoning cache read failed", slog.String("error", err.Error()))
		}
		return nil, false
	}
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		c.logger.Warn("dropping corrupt reasoning cache entry", slog.String("error", err.Error()))
		_ = c.db.Delete([]byte(key))
		return nil, false
	}
	resp.Cached = true
	return &resp, true
}

func (c *Cached) store(key string, resp *Response) {
	if resp == nil || resp.Content == "" {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := c.db.Set([]byte(key), data, c.ttl); err != nil {
		c.logger.Warn("reasoning cache write failed", slog.String("error", err.Error()))
	}
}

// cacheKey hashes everything that can change the answer.
func (c *Cached) cacheKey(r *Request) string {
	model := r.ModelOverride
	if model == "" {
		model = c.next.Model()
	}
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	write(c.next.Name())
	write(model)
	write(r.SystemPrompt)
	for _, m := range r.Messages {
		write(m.Role)
		write(m.Content)
	}
	write(strconv.FormatBool(r.JSONMode))
	write(strconv.FormatFloat(r.Temperature, 'f', -1, 64))
	write(strconv.Itoa(r.MaxTokens))
	return cachePrefix + hex.EncodeToString(h.Sum(nil))
}
