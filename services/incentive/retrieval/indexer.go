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

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/AleutianAI/tesvik/services/incentive/analysis"
)

// Chunking defaults. Articles are usually shorter than ChunkSize and stay
// whole; long annexes are split on paragraph and line boundaries first.
const (
	ChunkSize    = 1500
	ChunkOverlap = 150
	BatchSize    = 100
)

// DefaultVectorizer is the Weaviate module used for nearText.
const DefaultVectorizer = "text2vec-openai"

var legalSeparators = []string{"\n\n", "\nMadde", "\n", ". ", " ", ""}

// chunkNamespace seeds deterministic object IDs.
var chunkNamespace = uuid.MustParse("8f4b9a52-3c1e-4d7a-9b0f-2e6c5d1a7f30")

// IndexerConfig configures an Indexer.
type IndexerConfig struct {
	ClassName    string
	Vectorizer   string
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
}

func (c *IndexerConfig) applyDefaults() {
	if c.ClassName == "" {
		c.ClassName = ClassName
	}
	if c.Vectorizer == "" {
		c.Vectorizer = DefaultVectorizer
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = ChunkSize
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = ChunkOverlap
	}
	if c.BatchSize <= 0 {
		c.BatchSize = BatchSize
	}
}

// Indexer splits documents into chunks and writes them to Weaviate.
type Indexer struct {
	client   *weaviate.Client
	splitter textsplitter.TextSplitter
	cfg      IndexerConfig
	logger   *slog.Logger
}

// NewIndexer creates an indexer.
func NewIndexer(client *weaviate.Client, cfg IndexerConfig, logger *slog.Logger) *Indexer {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		client: client,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
			textsplitter.WithSeparators(legalSeparators),
		),
		cfg:    cfg,
		logger: logger,
	}
}

// Schema returns the class definition for indexed passages.
func (ix *Indexer) Schema() *models.Class {
	filterable := new(bool)
	*filterable = true
	return &models.Class{
		Class:       ix.cfg.ClassName,
		Description: "Passages of investment incentive legislation",
		Vectorizer:  ix.cfg.Vectorizer,
		Properties: []*models.Property{
			{
				Name:         "content",
				DataType:     []string{"text"},
				Description:  "Passage text",
				Tokenization: "word",
			},
			{
				Name:            "source",
				DataType:        []string{"text"},
				Description:     "Source file of the passage",
				IndexFilterable: filterable,
				Tokenization:    "field",
			},
			{
				Name:            "section",
				DataType:        []string{"text"},
				Description:     "Article or annex the passage belongs to",
				IndexFilterable: filterable,
				Tokenization:    "field",
			},
			{
				Name:        "chunk",
				DataType:    []string{"int"},
				Description: "Chunk number within the section",
			},
		},
	}
}

// EnsureSchema creates the class if it does not exist. Idempotent.
func (ix *Indexer) EnsureSchema(ctx context.Context) error {
	if _, err := ix.client.Schema().ClassGetter().WithClassName(ix.cfg.ClassName).Do(ctx); err == nil {
		return nil
	}
	ix.logger.Info("creating weaviate class", slog.String("class", ix.cfg.ClassName))
	if err := ix.client.Schema().ClassCreator().WithClass(ix.Schema()).Do(ctx); err != nil {
		return fmt.Errorf("creating %s schema: %w", ix.cfg.ClassName, err)
	}
	return nil
}

// Chunk splits documents into indexable objects with deterministic IDs,
// so re-indexing the same corpus overwrites rather than duplicates.
func (ix *Indexer) Chunk(docs []analysis.Document) ([]*models.Object, error) {
	var objects []*models.Object
	for _, d := range docs {
		chunks, err := ix.splitter.SplitText(d.Text)
		if err != nil {
			return nil, fmt.Errorf("splitting %s %s: %w", d.Source, d.Section, err)
		}
		for i, chunk := range chunks {
			key := fmt.Sprintf("%s\x00%s\x00%d\x00%s", d.Source, d.Section, i, chunk)
			id := uuid.NewSHA1(chunkNamespace, []byte(key))
			objects = append(objects, &models.Object{
				Class: ix.cfg.ClassName,
				ID:    strfmt.UUID(id.String()),
				Properties: map[string]interface{}{
					"content": chunk,
					"source":  d.Source,
					"section": d.Section,
					"chunk":   i + 1,
				},
			})
		}
	}
	return objects, nil
}

// Index chunks docs and batch-writes them.
//
// Outputs:
//
//	int - Number of chunks written successfully.
//	error - Non-nil if splitting or a batch request fails.
func (ix *Indexer) Index(ctx context.Context, docs []analysis.Document) (int, error) {
	objects, err := ix.Chunk(docs)
	if err != nil {
		return 0, err
	}

	indexed := 0
	for i := 0; i < len(objects); i += ix.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		end := min(i+ix.cfg.BatchSize, len(objects))

		resp, err := ix.client.Batch().ObjectsBatcher().WithObjects(objects[i:end]...).Do(ctx)
		if err != nil {
			return indexed, fmt.Errorf("batch import failed: %w", err)
		}
		for _, item := range resp {
			if item.Result != nil && item.Result.Errors != nil && len(item.Result.Errors.Error) > 0 {
				for _, e := range item.Result.Errors.Error {
					ix.logger.Warn("weaviate batch item failed", slog.String("error", e.Message))
				}
				continue
			}
			indexed++
		}
		ix.logger.Info("indexed batch", slog.Int("count", end-i), slog.Int("total_indexed", indexed))
	}
	return indexed, nil
}
