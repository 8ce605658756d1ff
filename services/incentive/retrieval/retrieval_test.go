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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/AleutianAI/tesvik/services/incentive/analysis"
)

func TestDefaultCorpus(t *testing.T) {
	docs := DefaultCorpus()
	require.NotEmpty(t, docs)

	sections := map[string]bool{}
	for _, d := range docs {
		assert.NotEmpty(t, d.Text)
		assert.Equal(t, "karar_2012_3305.json", d.Source)
		sections[d.Section] = true
	}
	assert.True(t, sections["Madde 17"])
	assert.True(t, sections["Ek 4"])
}

func TestParseDecision(t *testing.T) {
	data := []byte(`{
		"maddeler": [
			{"maddeNo": "1", "başlık": "Amaç", "fıkralar": ["Birinci fıkra.", ["a) bent", "b) bent"]]},
			{"maddeNo": "2", "fıkralar": []}
		],
		"ekler": [
			{"ekNo": "5", "icerik": [{"bolge": "3", "vergi_indirim_orani": "%70"}]}
		]
	}`)
	docs, err := ParseDecision(data, "karar.json")
	require.NoError(t, err)
	require.Len(t, docs, 2, "article without text is dropped")

	assert.Equal(t, "Madde 1", docs[0].Section)
	assert.True(t, strings.HasPrefix(docs[0].Text, "Madde No: 1 - Başlık: Amaç"))
	assert.Contains(t, docs[0].Text, "b) bent")

	assert.Equal(t, "Ek 5", docs[1].Section)
	assert.Contains(t, docs[1].Text, "Başlıksız Ek")
	assert.Contains(t, docs[1].Text, "bolge: 3")
	assert.Contains(t, docs[1].Text, "vergi indirim orani: %70")

	_, err = ParseDecision([]byte("{"), "bad.json")
	assert.Error(t, err)
}

func TestLoadCorpus(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "karar.json"),
		[]byte(`{"maddeler":[{"maddeNo":"1","başlık":"Amaç","fıkralar":["Metin."]}]}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "not.txt"), []byte("Serbest metin."), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bos.md"), []byte("  "), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "resim.png"), []byte{0x89}, 0o600))

	docs, err := LoadCorpus(dir)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	single, err := LoadCorpus(filepath.Join(dir, "not.txt"))
	require.NoError(t, err)
	require.Len(t, single, 1)
	assert.Equal(t, "not.txt", single[0].Source)

	_, err = LoadCorpus(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestInMemory_Retrieve(t *testing.T) {
	r := NewInMemory(
		analysis.Document{Text: "Konaklama tesisleri (otel) yatırımları", Source: "a"},
		analysis.Document{Text: "Gaziantep üçüncü bölgededir", Source: "b"},
		analysis.Document{Text: "Gaziantep'te otelcilik yatırımı", Source: "c"},
		analysis.Document{Text: "Madencilik yatırımları", Source: "d"},
	)
	ctx := context.Background()

	docs, err := r.Retrieve(ctx, "otel Gaziantep", 5)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "c", docs[0].Source, "matches both words")
	assert.Equal(t, "a", docs[1].Source, "ties keep insertion order")
	assert.Equal(t, "b", docs[2].Source)

	docs, err = r.Retrieve(ctx, "otel Gaziantep", 1)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	docs, err = r.Retrieve(ctx, "uzay", 5)
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, err = r.Retrieve(ctx, "  ", 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = r.Retrieve(cancelled, "otel", 5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewDefaultInMemory(t *testing.T) {
	r := NewDefaultInMemory()
	assert.Equal(t, len(DefaultCorpus()), r.Len())

	docs, err := r.Retrieve(context.Background(), "otel Gaziantep", 5)
	require.NoError(t, err)
	require.NotEmpty(t, docs)
	assert.LessOrEqual(t, len(docs), 5)
}

func TestParseDocuments(t *testing.T) {
	result := &models.GraphQLResponse{
		Data: map[string]models.JSONObject{
			"Get": map[string]interface{}{
				ClassName: []interface{}{
					map[string]interface{}{"content": "Madde 17 metni", "source": "karar.json", "section": "Madde 17"},
					"garbage",
					map[string]interface{}{"content": "", "source": "x"},
					map[string]interface{}{"content": "Ek 4 metni"},
				},
			},
		},
	}
	docs := parseDocuments(result, ClassName)
	require.Len(t, docs, 2)
	assert.Equal(t, analysis.Document{Text: "Madde 17 metni", Source: "karar.json", Section: "Madde 17"}, docs[0])
	assert.Equal(t, "Ek 4 metni", docs[1].Text)

	assert.Empty(t, parseDocuments(nil, ClassName))
	assert.Empty(t, parseDocuments(&models.GraphQLResponse{}, ClassName))
}

func TestNewWeaviateClient(t *testing.T) {
	_, err := NewWeaviateClient("")
	assert.Error(t, err)

	c, err := NewWeaviateClient("http://localhost:8080/")
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestIndexer_Chunk(t *testing.T) {
	ix := NewIndexer(nil, IndexerConfig{ChunkSize: 60, ChunkOverlap: 10}, nil)
	docs := []analysis.Document{
		{Text: "Kısa madde.", Source: "k.json", Section: "Madde 1"},
		{Text: strings.Repeat("Uzun bir ek metni burada yer alır. ", 10), Source: "k.json", Section: "Ek 5"},
	}

	objects, err := ix.Chunk(docs)
	require.NoError(t, err)
	require.Greater(t, len(objects), 2)
	assert.Equal(t, "Madde 1", objects[0].Properties.(map[string]interface{})["section"])

	ids := map[string]bool{}
	for _, o := range objects {
		assert.Equal(t, ClassName, o.Class)
		ids[o.ID.String()] = true
	}
	assert.Len(t, ids, len(objects), "ids are unique")

	again, err := ix.Chunk(docs)
	require.NoError(t, err)
	assert.Equal(t, objects[0].ID, again[0].ID, "ids are deterministic")
}

func TestIndexer_Schema(t *testing.T) {
	ix := NewIndexer(nil, IndexerConfig{}, nil)
	class := ix.Schema()
	assert.Equal(t, ClassName, class.Class)
	assert.Equal(t, DefaultVectorizer, class.Vectorizer)
	names := make([]string, 0, len(class.Properties))
	for _, p := range class.Properties {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"content", "source", "section", "chunk"}, names)
}
