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
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AleutianAI/tesvik/services/incentive/analysis"
)

//go:embed data/*.json
var defaultCorpus embed.FS

// DefaultCorpusFile is the embedded decision text.
const DefaultCorpusFile = "data/karar_2012_3305.json"

// decision is the published shape of a decision text: numbered articles
// and annexes. Annex bodies are free-form.
type decision struct {
	Articles []article `json:"maddeler"`
	Annexes  []annex   `json:"ekler"`
}

type article struct {
	Number  string `json:"maddeNo"`
	Title   string `json:"başlık"`
	Clauses any    `json:"fıkralar"`
}

type annex struct {
	Number  string `json:"ekNo"`
	Title   string `json:"baslik"`
	Content any    `json:"icerik"`
}

// DefaultCorpus returns the documents of the embedded decision text.
func DefaultCorpus() []analysis.Document {
	data, err := fs.ReadFile(defaultCorpus, DefaultCorpusFile)
	if err != nil {
		panic(err)
	}
	docs, err := ParseDecision(data, filepath.Base(DefaultCorpusFile))
	if err != nil {
		panic(err)
	}
	return docs
}

// ParseDecision turns a decision JSON into one document per article and
// one per annex. Articles without text are dropped.
func ParseDecision(data []byte, source string) ([]analysis.Document, error) {
	var d decision
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing decision %s: %w", source, err)
	}

	var docs []analysis.Document
	for _, a := range d.Articles {
		parts := flatten(a.Clauses)
		if len(parts) == 0 {
			continue
		}
		title := a.Title
		if title == "" {
			title = "Başlıksız Madde"
		}
		docs = append(docs, analysis.Document{
			Text:    fmt.Sprintf("Madde No: %s - Başlık: %s\n\n%s", a.Number, title, strings.Join(parts, "\n")),
			Source:  source,
			Section: "Madde " + a.Number,
		})
	}
	for _, e := range d.Annexes {
		parts := flatten(e.Content)
		if len(parts) == 0 {
			continue
		}
		title := e.Title
		if title == "" {
			title = "Başlıksız Ek"
		}
		docs = append(docs, analysis.Document{
			Text:    fmt.Sprintf("Ek No: %s - Başlık: %s\n\n%s", e.Number, title, strings.Join(parts, "\n")),
			Source:  source,
			Section: "Ek " + e.Number,
		})
	}
	return docs, nil
}

// LoadCorpus reads a decision JSON file or a plain text file. Directories
// are walked and every .json, .txt and .md file is loaded.
func LoadCorpus(path string) ([]analysis.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading corpus: %w", err)
	}
	if !info.IsDir() {
		return loadCorpusFile(path)
	}

	var docs []analysis.Document
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".json", ".txt", ".md":
		default:
			return nil
		}
		fileDocs, err := loadCorpusFile(p)
		if err != nil {
			return err
		}
		docs = append(docs, fileDocs...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func loadCorpusFile(path string) ([]analysis.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading corpus file: %w", err)
	}
	source := filepath.Base(path)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ParseDecision(data, source)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, nil
	}
	return []analysis.Document{{Text: text, Source: source}}, nil
}

// flatten renders nested clause structures as lines of text. Maps whose
// values are all scalars become "Key: value" lines in key order.
func flatten(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
		return nil
	case []any:
		var out []string
		for _, item := range t {
			out = append(out, flatten(item)...)
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(t))
		scalar := true
		for k, val := range t {
			keys = append(keys, k)
			switch val.(type) {
			case map[string]any, []any:
				scalar = false
			}
		}
		sort.Strings(keys)
		var out []string
		for _, k := range keys {
			for _, s := range flatten(t[k]) {
				if scalar {
					s = labelOf(k) + ": " + s
				}
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{strings.TrimSpace(fmt.Sprint(t))}
	}
}

func labelOf(key string) string {
	return strings.NewReplacer("_", " ", "-", " ").Replace(key)
}
