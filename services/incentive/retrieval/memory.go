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
	"sort"
	"strings"
	"sync"

	"github.com/AleutianAI/tesvik/services/incentive/analysis"
	"github.com/AleutianAI/tesvik/services/incentive/audit"
)

// stemLength is the rune prefix compared between query and document words.
// Turkish suffixes attach to the stem ("Gaziantep'te", "otelcilik"), so
// comparing prefixes matches inflected forms.
const stemLength = 5

// minQueryWord drops very short query words such as suffix fragments.
const minQueryWord = 3

// InMemory is a keyword retriever over a fixed document set.
//
// Thread Safety:
//
//	Safe for concurrent use. Add may run concurrently with Retrieve.
type InMemory struct {
	mu    sync.RWMutex
	docs  []analysis.Document
	stems []map[string]bool
}

// NewInMemory creates a retriever over docs.
func NewInMemory(docs ...analysis.Document) *InMemory {
	r := &InMemory{}
	r.Add(docs...)
	return r
}

// NewDefaultInMemory creates a retriever over the embedded decision text.
func NewDefaultInMemory() *InMemory {
	return NewInMemory(DefaultCorpus()...)
}

// Add appends documents to the set.
func (r *InMemory) Add(docs ...analysis.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range docs {
		r.docs = append(r.docs, d)
		r.stems = append(r.stems, stemsOf(d.Text))
	}
}

// Len returns the number of documents.
func (r *InMemory) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// Retrieve scores every document by the number of distinct query words it
// contains and returns the best limit documents. Ties keep insertion order.
// Documents matching no query word are never returned.
func (r *InMemory) Retrieve(ctx context.Context, query string, limit int) ([]analysis.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		return nil, nil
	}

	var terms []string
	for w := range audit.Words(query) {
		if len([]rune(w)) >= minQueryWord {
			terms = append(terms, stem(w))
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	type scored struct {
		idx   int
		score int
	}
	var hits []scored
	for i, stems := range r.stems {
		score := 0
		for _, t := range terms {
			if stems[t] {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{i, score})
		}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })

	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]analysis.Document, len(hits))
	for i, h := range hits {
		out[i] = r.docs[h.idx]
	}
	return out, nil
}

// stemsOf indexes every prefix of every word from minQueryWord up to
// stemLength runes, so a short query word matches longer inflections.
func stemsOf(text string) map[string]bool {
	words := audit.Words(text)
	stems := make(map[string]bool, len(words)*2)
	for w := range words {
		r := []rune(w)
		stems[stem(w)] = true
		for n := minQueryWord; n < len(r) && n < stemLength; n++ {
			stems[string(r[:n])] = true
		}
	}
	return stems
}

func stem(word string) string {
	r := []rune(word)
	if len(r) > stemLength {
		r = r[:stemLength]
	}
	return string(r)
}
