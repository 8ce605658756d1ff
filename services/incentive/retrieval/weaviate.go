// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/AleutianAI/tesvik/services/incentive/analysis"
)

// NewWeaviateClient creates a client for a URL such as
// "http://localhost:8080". A URL without scheme defaults to http.
func NewWeaviateClient(url string) (*weaviate.Client, error) {
	cfg := weaviate.Config{Host: url, Scheme: "http"}
	switch {
	case strings.HasPrefix(url, "https://"):
		cfg.Scheme = "https"
		cfg.Host = strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		cfg.Host = strings.TrimPrefix(url, "http://")
	}
	cfg.Host = strings.TrimSuffix(cfg.Host, "/")
	if cfg.Host == "" {
		return nil, fmt.Errorf("weaviate url is empty")
	}
	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	return client, nil
}

// WeaviateRetriever runs nearText searches against the indexed corpus.
type WeaviateRetriever struct {
	client    *weaviate.Client
	className string
	logger    *slog.Logger
}

// NewWeaviateRetriever creates a retriever. Empty className uses ClassName.
func NewWeaviateRetriever(client *weaviate.Client, className string, logger *slog.Logger) *WeaviateRetriever {
	if className == "" {
		className = ClassName
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WeaviateRetriever{client: client, className: className, logger: logger}
}

// Retrieve implements Retriever.
func (r *WeaviateRetriever) Retrieve(ctx context.Context, query string, limit int) ([]analysis.Document, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		return nil, nil
	}

	nearText := r.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "source"},
		{Name: "section"},
		{Name: "_additional { distance }"},
	}

	result, err := r.client.GraphQL().Get().
		WithClassName(r.className).
		WithFields(fields...).
		WithNearText(nearText).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("search error: %s", result.Errors[0].Message)
	}

	docs := parseDocuments(result, r.className)
	r.logger.Debug("retrieved documents",
		slog.String("query", query),
		slog.Int("count", len(docs)),
	)
	if len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

// parseDocuments extracts passages from a GraphQL Get response, skipping
// malformed objects and empty passages.
func parseDocuments(result *models.GraphQLResponse, className string) []analysis.Document {
	if result == nil {
		return nil
	}
	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	objects, ok := data[className].([]interface{})
	if !ok {
		return nil
	}

	docs := make([]analysis.Document, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		text := getString(m, "content")
		if text == "" {
			continue
		}
		docs = append(docs, analysis.Document{
			Text:    text,
			Source:  getString(m, "source"),
			Section: getString(m, "section"),
		})
	}
	return docs
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
