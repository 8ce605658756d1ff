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
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"github.com/sashabaranov/go-openai"
)

// Credential sources.
const (
	APIKeyEnv        = "OPENAI_API_KEY"
	ModelEnv         = "OPENAI_MODEL"
	APIKeySecretPath = "/run/secrets/openai_api_key"
	DefaultModel     = "gpt-4o-mini"
)

// OpenAIConfig configures the OpenAI backend.
type OpenAIConfig struct {
	// Model is the chat model. Empty uses OPENAI_MODEL, then DefaultModel.
	Model string

	// BaseURL overrides the API endpoint (proxies, compatible servers).
	BaseURL string

	// SecretPath is read when OPENAI_API_KEY is unset.
	SecretPath string

	// Timeout bounds each HTTP request. Zero means no client-side limit.
	Timeout time.Duration
}

// LoadAPIKey reads the API key from the environment or a mounted secret
// file and seals it in an encrypted enclave.
//
// Outputs:
//
//	*memguard.Enclave - The sealed key.
//	error - ErrMissingAPIKey when neither source has a key.
func LoadAPIKey(secretPath string, logger *slog.Logger) (*memguard.Enclave, error) {
	if logger == nil {
		logger = slog.Default()
	}
	key := strings.TrimSpace(os.Getenv(APIKeyEnv))
	if key == "" {
		if secretPath == "" {
			secretPath = APIKeySecretPath
		}
		data, err := os.ReadFile(secretPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %s not set and %s unreadable", ErrMissingAPIKey, APIKeyEnv, secretPath)
		}
		key = strings.TrimSpace(string(data))
		logger.Info("read the OpenAI API key from a secret file", slog.String("path", secretPath))
	}
	if key == "" {
		return nil, ErrMissingAPIKey
	}
	return memguard.NewEnclave([]byte(key)), nil
}

// bearerTransport adds the Authorization header, unsealing the key only
// for the duration of each request.
type bearerTransport struct {
	key  *memguard.Enclave
	base http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	buf, err := t.key.Open()
	if err != nil {
		return nil, fmt.Errorf("open api key: %w", err)
	}
	header := "Bearer " + string(buf.Bytes())
	buf.Destroy()

	r := req.Clone(req.Context())
	r.Header.Set("Authorization", header)
	return t.base.RoundTrip(r)
}

// OpenAIClient is the OpenAI chat completion backend.
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAIClient creates a client using the key from LoadAPIKey.
func NewOpenAIClient(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIClient, error) {
	key, err := LoadAPIKey(cfg.SecretPath, logger)
	if err != nil {
		return nil, err
	}
	return NewOpenAIClientWithKey(cfg, key, logger), nil
}

// NewOpenAIClientWithKey creates a client with an already sealed key.
func NewOpenAIClientWithKey(cfg OpenAIConfig, key *memguard.Enclave, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	model := cfg.Model
	if model == "" {
		model = os.Getenv(ModelEnv)
	}
	if model == "" {
		model = DefaultModel
		logger.Warn("OPENAI_MODEL not set, defaulting", slog.String("model", model))
	}

	oc := openai.DefaultConfig("")
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &bearerTransport{key: key, base: http.DefaultTransport},
	}

	logger.Info("initializing OpenAI client", slog.String("model", model))
	return &OpenAIClient{
		client: openai.NewClientWithConfig(oc),
		model:  model,
		logger: logger,
	}
}

// Name implements Client.
func (o *OpenAIClient) Name() string { return "openai" }

// Model implements Client.
func (o *OpenAIClient) Model() string { return o.model }

// Complete implements Client.
func (o *OpenAIClient) Complete(ctx context.Context, request *Request) (*Response, error) {
	if request == nil {
		return nil, ErrNilRequest
	}
	model := o.model
	if request.ModelOverride != "" {
		model = request.ModelOverride
	}

	req := openai.ChatCompletionRequest{
		Model:               model,
		Messages:            toOpenAIMessages(request),
		Temperature:         float32(request.Temperature),
		MaxCompletionTokens: request.MaxTokens,
	}
	if request.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, ErrEmptyResponse
	}

	o.logger.Debug("received response from OpenAI",
		slog.String("finish_reason", string(resp.Choices[0].FinishReason)),
		slog.Int("tokens", resp.Usage.TotalTokens),
	)
	return &Response{
		Content:      resp.Choices[0].Message.Content,
		StopReason:   string(resp.Choices[0].FinishReason),
		TokensUsed:   resp.Usage.TotalTokens,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Duration:     time.Since(start),
		Model:        resp.Model,
	}, nil
}

func toOpenAIMessages(request *Request) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(request.Messages)+1)
	if request.SystemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: request.SystemPrompt,
		})
	}
	for _, m := range request.Messages {
		role := m.Role
		if role == "" {
			role = openai.ChatMessageRoleUser
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return msgs
}
