// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retrieval finds legal text passages relevant to an investment.
//
// Two Retriever implementations exist: Weaviate semantic search for
// deployments with an indexed corpus, and an in-memory keyword scorer that
// works offline over the embedded decision text. Indexer loads a corpus
// into Weaviate.
package retrieval

import (
	"context"
	"errors"

	"github.com/AleutianAI/tesvik/services/incentive/analysis"
)

// ClassName is the Weaviate class holding indexed passages.
const ClassName = "IncentiveDocument"

// ErrEmptyQuery is returned for blank queries.
var ErrEmptyQuery = errors.New("retrieval: empty query")

// Retriever returns documents ordered by relevance, best first.
//
// Implementations must be safe for concurrent use and must return at most
// limit documents.
type Retriever interface {
	Retrieve(ctx context.Context, query string, limit int) ([]analysis.Document, error)
}
