// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package audit

import (
	"io"
	"log/slog"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func defaultIndex(t *testing.T) *Index {
	t.Helper()
	idx, stats := LoadDefault(quietLogger())
	require.NotNil(t, idx)
	require.Empty(t, stats.MissingTables)
	require.Zero(t, stats.SkippedRecords)
	return idx
}

func TestWords(t *testing.T) {
	t.Run("turkish lowercase", func(t *testing.T) {
		words := Words("İLAÇ Üretimi")
		assert.True(t, words["ilaç"])
		assert.True(t, words["üretimi"])
	})

	t.Run("drops connectives and punctuation", func(t *testing.T) {
		words := Words("Otel ve Konaklama, Tesisleri")
		assert.Equal(t, map[string]bool{"otel": true, "konaklama": true, "tesisleri": true}, words)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, Words("  ,. "))
	})
}

func TestNormalizePlace(t *testing.T) {
	for _, in := range []string{"izmir", "İzmir", "IZMIR", " İZMİR "} {
		assert.Equal(t, "IZMIR", NormalizePlace(in), in)
	}
	assert.Equal(t, NormalizePlace("Şanlıurfa"), NormalizePlace("ŞANLIURFA"))
	assert.Equal(t, "GAZIANTEP", normalizeRowName("GAZİANTEP (Merkez ve İlçeler)"))
}

func TestCodeRefs(t *testing.T) {
	assert.Equal(t, []string{"3410"}, codeRefs("Ana Sanayi (US-97:3410)"))
	assert.Equal(t, []string{"3410", "3430"}, codeRefs("US-97: 3410 ve US-97 :3430."))
	assert.Equal(t, []string{"1531"}, codeRefs("1531"))
	assert.Nil(t, codeRefs("İmalat Sanayi"))

	assert.True(t, referencesCode("Un (US-97:1531)", "1531"))
	assert.False(t, referencesCode("Un (US-97:15311)", "1531"))
	assert.False(t, referencesCode("Un (US-97:1531)", "153"))
}

func TestResolveSectorCode(t *testing.T) {
	idx := defaultIndex(t)

	tests := []struct {
		topic string
		want  string
	}{
		{"otel", "5510"},
		{"OTEL yatırımı", "5510"},
		{"ilaç fabrikası", "2423"},
		{"yazılım", "7220"},
		{"kripto para borsası", Unresolved},
		{"", Unresolved},
		{"ve ile", Unresolved},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			assert.Equal(t, tt.want, idx.ResolveSectorCode(tt.topic))
		})
	}

	t.Run("first match wins", func(t *testing.T) {
		// "ürünleri" appears first in the aquaculture entry.
		assert.Equal(t, "0500", idx.ResolveSectorCode("süt ürünleri"))
	})
}

func TestIsRegionallyEligible(t *testing.T) {
	idx := defaultIndex(t)

	assert.True(t, idx.IsRegionallyEligible("5510", "Gaziantep"))
	assert.True(t, idx.IsRegionallyEligible("5510", "gaziantep "))
	assert.True(t, idx.IsRegionallyEligible("5510", "İzmir"))
	assert.True(t, idx.IsRegionallyEligible("5510", "IZMIR"))
	assert.True(t, idx.IsRegionallyEligible("1810", "şanlıurfa"))

	assert.False(t, idx.IsRegionallyEligible("3410", "Gaziantep"), "code not in row")
	assert.False(t, idx.IsRegionallyEligible("551", "Gaziantep"), "partial code")
	assert.False(t, idx.IsRegionallyEligible("5510", "Atlantis"), "unknown row")
	assert.False(t, idx.IsRegionallyEligible(Unresolved, "Gaziantep"))
	assert.False(t, idx.IsRegionallyEligible("5510", ""))
}

func TestIsLargeScale(t *testing.T) {
	idx := defaultIndex(t)

	tests := []struct {
		name   string
		code   string
		amount float64
		want   bool
	}{
		{"at threshold", "2710", 500_000_000, true},
		{"below threshold", "2710", 499_999_999, false},
		{"string threshold", "2423", 100_000_000, true},
		{"decimal comma threshold", "2101", 100_000_000, false},
		{"decimal comma met", "2101", 100_500_000, true},
		{"nested parent sub", "3410", 200_000_000, true},
		{"nested sibling sub", "3430", 60_000_000, true},
		{"nested below", "3430", 40_000_000, false},
		{"no entry", "5510", 30_000_000, false},
		{"unresolved", Unresolved, 1e12, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, idx.IsLargeScale(tt.code, tt.amount))
		})
	}
}

func TestIsProhibited(t *testing.T) {
	idx := defaultIndex(t)

	assert.True(t, idx.IsProhibited("1531"), "plain string leaf")
	assert.True(t, idx.IsProhibited("1542"))
	assert.True(t, idx.IsProhibited("2694"), "konu record")
	assert.True(t, idx.IsProhibited("2320"), "code record")
	assert.True(t, idx.IsProhibited("9271"), "second category")

	assert.False(t, idx.IsProhibited("5510"), "listed outside the prohibited section")
	assert.False(t, idx.IsProhibited("153"))
	assert.False(t, idx.IsProhibited(Unresolved))
}

func TestAudit_Deterministic(t *testing.T) {
	idx := defaultIndex(t)

	first := idx.Audit("otel", "Gaziantep", 30_000_000)
	second := idx.Audit("otel", "Gaziantep", 30_000_000)

	assert.Equal(t, first, second)
	assert.Equal(t, Findings{
		SectorCode:         "5510",
		SectorName:         "Otel ve Konaklama Tesisleri",
		RegionallyEligible: true,
	}, first)
}

func TestAudit_Unresolved(t *testing.T) {
	idx := defaultIndex(t)

	f := idx.Audit("kripto para borsası", "Gaziantep", 30_000_000)
	assert.Equal(t, Findings{SectorCode: Unresolved}, f)
}

func TestLoad_AbsentTables(t *testing.T) {
	idx, stats := Load(fstest.MapFS{}, quietLogger())

	assert.Len(t, stats.MissingTables, 4)
	assert.Equal(t, Unresolved, idx.ResolveSectorCode("otel"))
	assert.False(t, idx.IsRegionallyEligible("5510", "Gaziantep"))
	assert.False(t, idx.IsLargeScale("2710", 1e12))
	assert.False(t, idx.IsProhibited("1531"))
}

func TestLoad_MalformedFiles(t *testing.T) {
	fsys := fstest.MapFS{
		SectorCatalogueFile: {Data: []byte(`{"sektörler": [`)},
		EligibilityFile:     {Data: []byte(`[]`)},
		ThresholdFile:       {Data: []byte(`not json`)},
		ProhibitionFile:     {Data: []byte(`{"bölümler": `)},
	}
	idx, stats := Load(fsys, quietLogger())

	assert.Len(t, stats.MissingTables, 4)
	assert.False(t, stats.Prohibition)
	assert.Equal(t, Unresolved, idx.ResolveSectorCode("otel"))
	assert.False(t, idx.IsProhibited("1531"))
}

func TestLoad_SkipsMalformedRecords(t *testing.T) {
	fsys := fstest.MapFS{
		SectorCatalogueFile: {Data: []byte(`{"sektörler": [
			{"SEKTÖR ADI": 12, "US-97 Kodu": "0001"},
			{"SEKTÖR ADI": "Boş Kod"},
			{"SEKTÖR ADI": "Otel", "US-97 Kodu": "5510"}
		]}`)},
		ThresholdFile: {Data: []byte(`{"yatırımlar": [
			{"Yatırım Konusu": "Bozuk (US-97:2710)", "Asgari Sabit Yatırım Tutarı (Milyon TL)": "çok"},
			{"Yatırım Konusu": "Metal (US-97:2710)", "Asgari Sabit Yatırım Tutarı (Milyon TL)": 1}
		]}`)},
	}
	idx, stats := Load(fsys, quietLogger())

	assert.Equal(t, 3, stats.SkippedRecords)
	assert.Equal(t, 1, stats.Sectors)
	assert.Equal(t, 1, stats.Thresholds)
	assert.Equal(t, "5510", idx.ResolveSectorCode("otel"))
	assert.True(t, idx.IsLargeScale("2710", 1_000_000))
}

func TestIsProhibited_FailsOpen(t *testing.T) {
	idx := &Index{prohibition: map[string]any{
		"başlık":  ProhibitedSectionTitle,
		"konular": []any{struct{}{}},
	}}
	assert.False(t, idx.IsProhibited("1531"))
}

func TestNilIndex(t *testing.T) {
	var idx *Index
	assert.Equal(t, Findings{SectorCode: Unresolved}, idx.Audit("otel", "Gaziantep", 1))
}
