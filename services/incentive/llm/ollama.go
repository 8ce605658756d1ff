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
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// Ollama defaults.
const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "gpt-oss"
)

// OllamaConfig configures a local Ollama backend.
type OllamaConfig struct {
	// BaseURL is the Ollama server. Empty uses DefaultOllamaURL.
	BaseURL string

	// Model is the pulled model name. Empty uses DefaultOllamaModel.
	Model string

	// Timeout bounds each HTTP request. Zero means no client-side limit.
	Timeout time.Duration
}

// OllamaClient runs completions on a local Ollama server. JSON mode maps
// to Ollama's "json" output format.
type OllamaClient struct {
	plain  *ollama.LLM
	json   *ollama.LLM
	model  string
	logger *slog.Logger
}

// NewOllamaClient creates the backend. No request is made until Complete.
func NewOllamaClient(cfg OllamaConfig, logger *slog.Logger) (*OllamaClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
		logger.Warn("ollama model not set, defaulting", slog.String("model", cfg.Model))
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	base := []ollama.Option{
		ollama.WithServerURL(strings.TrimSuffix(cfg.BaseURL, "/")),
		ollama.WithModel(cfg.Model),
		ollama.WithHTTPClient(httpClient),
	}

	plain, err := ollama.New(base...)
	if err != nil {
		return nil, fmt.Errorf("ollama client: %w", err)
	}
	jsonLLM, err := ollama.New(append(base, ollama.WithFormat("json"))...)
	if err != nil {
		return nil, fmt.Errorf("ollama client: %w", err)
	}

	logger.Info("initializing Ollama client",
		slog.String("base_url", cfg.BaseURL),
		slog.String("model", cfg.Model),
	)
	return &OllamaClient{plain: plain, json: jsonLLM, model: cfg.Model, logger: logger}, nil
}

// Name implements Client.
func (o *OllamaClient) Name() string { return "ollama" }

// Model implements Client.
func (o *OllamaClient) Model() string { return o.model }

// Complete implements Client.
func (o *OllamaClient) Complete(ctx context.Context, request *Request) (*Response, error) {
	if request == nil {
		return nil, ErrNilRequest
	}
	model := o.model
	if request.ModelOverride != "" {
		model = request.ModelOverride
	}
	target := o.plain
	if request.JSONMode {
		target = o.json
	}

	opts := []llms.CallOption{
		llms.WithModel(model),
		llms.WithTemperature(request.Temperature),
	}
	if request.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(request.MaxTokens))
	}

	start := time.Now()
	resp, err := target.GenerateContent(ctx, toOllamaMessages(request), opts...)
	if err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return nil, ErrEmptyResponse
	}

	choice := resp.Choices[0]
	in, out := tokenCount(choice.GenerationInfo, "PromptTokens"), tokenCount(choice.GenerationInfo, "CompletionTokens")
	o.logger.Debug("received response from Ollama",
		slog.String("stop_reason", choice.StopReason),
		slog.Int("tokens", in+out),
	)
	return &Response{
		Content:      choice.Content,
		StopReason:   choice.StopReason,
		TokensUsed:   in + out,
		InputTokens:  in,
		OutputTokens: out,
		Duration:     time.Since(start),
		Model:        model,
	}, nil
}

func toOllamaMessages(request *Request) []llms.MessageContent {
	msgs := make([]llms.MessageContent, 0, len(request.Messages)+1)
	if request.SystemPrompt != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, request.SystemPrompt))
	}
	for _, m := range request.Messages {
		role := llms.ChatMessageTypeHuman
		switch m.Role {
		case "assistant":
			role = llms.ChatMessageTypeAI
		case "system":
			role = llms.ChatMessageTypeSystem
		}
		msgs = append(msgs, llms.TextParts(role, m.Content))
	}
	return msgs
}

func tokenCount(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
