// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides the reasoning service client used by the analysis
// nodes.
//
// Backends implement Client. Decorators add rate limiting with retries
// (Limited), response caching with in-flight coalescing (Cached) and
// metrics (Instrumented). Nodes only see the Client interface.
//
// Thread Safety:
//
//	All types in this package are designed for concurrent use.
package llm

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrEmptyResponse indicates the backend returned no content.
	ErrEmptyResponse = errors.New("reasoning service returned an empty response")

	// ErrSchemaViolation indicates the content did not match the requested
	// output schema.
	ErrSchemaViolation = errors.New("reasoning service response violates schema")

	// ErrRateLimited indicates the backend refused the call for quota reasons.
	ErrRateLimited = errors.New("reasoning service rate limited")

	// ErrNilRequest is returned when Complete receives a nil request.
	ErrNilRequest = errors.New("nil completion request")

	// ErrMissingAPIKey indicates no credential was found for a backend.
	ErrMissingAPIKey = errors.New("reasoning service api key not configured")

	// ErrOffline is returned by the Offline client for every call.
	ErrOffline = errors.New("reasoning service disabled")
)

// Client defines the interface for reasoning service interactions.
//
// Implementations must be safe for concurrent use.
type Client interface {
	// Complete sends a prompt and returns the response.
	//
	// Inputs:
	//   ctx - Context for cancellation and timeout
	//   request - The completion request
	//
	// Outputs:
	//   *Response - The backend response
	//   error - Non-nil if the request failed
	Complete(ctx context.Context, request *Request) (*Response, error)

	// Name returns the provider name (e.g., "openai", "mock").
	Name() string

	// Model returns the model being used.
	Model() string
}

// Request represents a completion request.
type Request struct {
	// SystemPrompt is the system message.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Messages is the conversation history.
	Messages []Message `json:"messages"`

	// MaxTokens limits the response length.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0-1.0).
	Temperature float64 `json:"temperature,omitempty"`

	// JSONMode asks the backend for a single JSON object.
	JSONMode bool `json:"json_mode,omitempty"`

	// ModelOverride allows using a different model for this request.
	// Empty string means use the client's default model.
	ModelOverride string `json:"model_override,omitempty"`
}

// Message represents a conversation message.
type Message struct {
	// Role is "user", "assistant", or "system".
	Role string `json:"role"`

	// Content is the text content.
	Content string `json:"content"`
}

// Response represents a backend response.
type Response struct {
	// Content is the text response.
	Content string `json:"content"`

	// StopReason indicates why generation stopped.
	StopReason string `json:"stop_reason"`

	// TokensUsed is the total tokens consumed (input + output).
	TokensUsed int `json:"tokens_used"`

	// InputTokens is the input token count.
	InputTokens int `json:"input_tokens"`

	// OutputTokens is the output token count.
	OutputTokens int `json:"output_tokens"`

	// Duration is how long the request took.
	Duration time.Duration `json:"duration"`

	// Model is the model that generated this response.
	Model string `json:"model,omitempty"`

	// Cached is true when the response was served from the cache.
	Cached bool `json:"-"`
}

// NewJSONRequest builds a single-turn request in JSON mode.
func NewJSONRequest(system, user string) *Request {
	return &Request{
		SystemPrompt: system,
		Messages:     []Message{{Role: "user", Content: user}},
		JSONMode:     true,
	}
}
