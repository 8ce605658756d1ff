// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package nodes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"text/template"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/tesvik/services/incentive/analysis"
	"github.com/AleutianAI/tesvik/services/incentive/llm"
	"github.com/AleutianAI/tesvik/services/incentive/observability"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("investment_type", func(fl validator.FieldLevel) bool {
		return analysis.InvestmentType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("support_kind", func(fl validator.FieldLevel) bool {
		return analysis.SupportKind(fl.Field().String()).Valid()
	})
	return v
}

// ReasonedConfig describes one reasoning step.
type ReasonedConfig struct {
	// Name labels logs and metrics. Usually the node name.
	Name string

	// System is the fixed system prompt.
	System string

	// Prompt is a text/template rendered with the step's input.
	Prompt string

	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Reasoned calls a reasoning backend and decodes its answer into T.
//
// Description:
//
//	Call renders the prompt, sends it in JSON mode under its own timeout,
//	decodes the reply with unknown fields rejected and validates T's
//	`validate` tags. Every failure is returned as an error; a decoding or
//	validation failure wraps llm.ErrSchemaViolation. Callers pair Call with
//	Absorb to log the failure and count the fallback.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Reasoned[T any] struct {
	cfg     ReasonedConfig
	client  llm.Client
	prompt  *template.Template
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewReasoned compiles cfg.Prompt.
func NewReasoned[T any](cfg ReasonedConfig, client llm.Client, metrics *observability.Metrics, logger *slog.Logger) (*Reasoned[T], error) {
	if client == nil {
		return nil, missing("reasoning client")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCallTimeout
	}
	tmpl, err := template.New(cfg.Name).Option("missingkey=error").Parse(cfg.Prompt)
	if err != nil {
		return nil, fmt.Errorf("compile %s prompt: %w", cfg.Name, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reasoned[T]{
		cfg:     cfg,
		client:  client,
		prompt:  tmpl,
		metrics: metrics,
		logger:  logger.With(slog.String("node", cfg.Name)),
	}, nil
}

// Name returns the step name.
func (r *Reasoned[T]) Name() string {
	return r.cfg.Name
}

// NodeTimeout is the timeout a node wrapping r should declare.
func (r *Reasoned[T]) NodeTimeout() time.Duration {
	return r.cfg.Timeout + nodeGrace
}

// Call renders input into the prompt and returns the decoded reply.
func (r *Reasoned[T]) Call(ctx context.Context, input any) (T, error) {
	var zero T

	var buf bytes.Buffer
	if err := r.prompt.Execute(&buf, input); err != nil {
		return zero, fmt.Errorf("%w: %v", errPrompt, err)
	}

	req := llm.NewJSONRequest(r.cfg.System, buf.String())
	req.Temperature = r.cfg.Temperature
	req.MaxTokens = r.cfg.MaxTokens

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	resp, err := r.client.Complete(callCtx, req)
	if err != nil {
		return zero, err
	}
	return Decode[T](resp.Content)
}

// Absorb logs a failed call and counts the fallback. It returns nothing so
// the node goes on to build its default output.
func (r *Reasoned[T]) Absorb(err error) {
	reason := fallbackReason(err)
	r.logger.Warn("reasoning step failed, using fallback",
		slog.String("reason", reason),
		slog.String("error", err.Error()),
	)
	r.metrics.RecordFallback(r.cfg.Name, reason)
}

// Decode parses content as a single JSON object of type T and validates it.
//
// Markdown code fences around the object are tolerated. Unknown fields,
// trailing data and failed `validate` tags are schema violations.
func Decode[T any](content string) (T, error) {
	var out T
	body := stripFences(content)
	if body == "" {
		return out, llm.ErrEmptyResponse
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, fmt.Errorf("%w: %v", llm.ErrSchemaViolation, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return out, fmt.Errorf("%w: trailing data after object", llm.ErrSchemaViolation)
	}
	if err := validate.Struct(out); err != nil {
		return out, fmt.Errorf("%w: %v", llm.ErrSchemaViolation, err)
	}
	return out, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
