// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/tesvik/services/incentive"
	"github.com/AleutianAI/tesvik/services/incentive/config"
	"github.com/AleutianAI/tesvik/services/incentive/llm"
)

type cliResult struct {
	code   int
	stdout string
	stderr string
}

// testEnv points configuration at a throwaway store and the offline backend.
func testEnv(t *testing.T) {
	t.Helper()
	t.Setenv(config.PathEnv, "")
	t.Setenv("TESVIK_STORAGE_PATH", t.TempDir())
	t.Setenv("TESVIK_STORAGE_IN_MEMORY", "false")
	t.Setenv("TESVIK_REASONING_BACKEND", "offline")
	t.Setenv("TESVIK_CACHE_ENABLED", "false")
	t.Setenv("TESVIK_RETRIEVAL_BACKEND", "memory")
	t.Setenv("TESVIK_LOG_LEVEL", "error")
	t.Setenv("TESVIK_LOG_DIR", "")
}

func runCLI(t *testing.T, a *app, args ...string) cliResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	a.stdout, a.stderr = &stdout, &stderr
	code := a.run(args)
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func run(t *testing.T, args ...string) cliResult {
	t.Helper()
	return runCLI(t, newApp(nil, nil), args...)
}

func decodeJSON[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(s), &v), s)
	return v
}

// =============================================================================
// Root
// =============================================================================

func TestCLI_Help(t *testing.T) {
	testEnv(t)
	res := run(t, "--help")
	assert.Equal(t, exitOK, res.code)
	for _, sub := range []string{"analyze", "audit", "region", "rules", "directives", "list", "show", "events", "backup", "restore", "index", "serve"} {
		assert.Contains(t, res.stdout, sub)
	}
}

func TestCLI_UsageErrors(t *testing.T) {
	testEnv(t)
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"audit", "otel", "--bogus"}},
		{"missing argument", []string{"region"}},
		{"bad log level", []string{"--log-level", "loud", "rules"}},
		{"bad date", []string{"rules", "--date", "01.01.2014"}},
		{"unknown city", []string{"region", "Atlantis"}},
		{"invalid type", []string{"region", "Bursa", "--type", "Süper Teşvik"}},
		{"negative limit", []string{"list", "--limit", "-1"}},
		{"bad session id", []string{"show", "../etc"}},
		{"index without weaviate", []string{"index"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, tt.args...)
			assert.Equal(t, exitUsage, res.code, res.stderr)
			assert.Contains(t, res.stderr, "error:")
		})
	}
}

func TestCLI_BadConfigFile(t *testing.T) {
	testEnv(t)
	res := run(t, "--config", "/", "rules")
	assert.Equal(t, exitError, res.code)
	assert.NotEmpty(t, res.stderr)
}

// =============================================================================
// Lookups
// =============================================================================

func TestCLI_Audit(t *testing.T) {
	testEnv(t)

	res := run(t, "--json", "audit", "otel", "--region", "Gaziantep", "--amount", "50000000")
	require.Equal(t, exitOK, res.code, res.stderr)
	got := decodeJSON[incentive.AuditResponse](t, res.stdout)
	assert.Equal(t, "5510", got.SectorCode)
	assert.True(t, got.RegionallyEligible)
	assert.Equal(t, "Gaziantep", got.Region)

	res = run(t, "--output", "machine", "audit", "otel", "--region", "Gaziantep", "--amount", "50000000")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Sektör kodu\t5510")
	assert.Contains(t, res.stdout, "Tutar\t50.000.000 TL")
	assert.Contains(t, res.stdout, "Bölgesel uygunluk\tevet")
}

func TestCLI_Region(t *testing.T) {
	testEnv(t)

	res := run(t, "--json", "region", "Bursa", "--type", "Öncelikli Yatırım", "--query", "OSB içinde")
	require.Equal(t, exitOK, res.code, res.stderr)
	got := decodeJSON[incentive.RegionResponse](t, res.stdout)
	require.NotNil(t, got.Final)
	assert.Equal(t, 6, *got.Final)
	assert.True(t, got.PriorityFloorApplied)

	res = run(t, "--output", "machine", "region", "Gaziantep")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Bölge\tGaziantep: 3 → 3 → 3")
}

func TestCLI_Rules(t *testing.T) {
	testEnv(t)

	res := run(t, "--output", "machine", "rules", "--date", "2024-06-01")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Gaziantep\t3")
	assert.Contains(t, res.stdout, "Genel Teşvik Destekleri")

	res = run(t, "--output", "machine", "rules", "--date", "2001-01-01")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "WARN: bu tarihte yürürlükte kural sürümü yok")
}

func TestCLI_Directives(t *testing.T) {
	testEnv(t)

	res := run(t, "--json", "directives", "--date", "2014-01-01")
	require.Equal(t, exitOK, res.code, res.stderr)
	got := decodeJSON[incentive.DirectivesResponse](t, res.stdout)
	assert.Equal(t, "2014-01-01", got.Date)
	assert.Contains(t, got.ChangeIDs, "ONCELIKLI_YATIRIM_OTOMOTIV_GENISLEMESI")

	res = run(t, "--output", "machine", "directives", "--date", "2014-01-01")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Tarih\tDeğişiklik\tKaynak\tDüzenleme")
}

// =============================================================================
// Analysis and history
// =============================================================================

func TestCLI_AnalyzeThenShow(t *testing.T) {
	testEnv(t)

	res := run(t, "--json", "analyze", "--offline",
		"--topic", "otel", "--region", "Gaziantep", "--amount", "30000000",
		"Gaziantep'te", "otel", "yatırımı")
	require.Equal(t, exitOK, res.code, res.stderr)
	got := decodeJSON[incentive.AnalyzeResponse](t, res.stdout)
	assert.Equal(t, "Gaziantep'te otel yatırımı", got.State.Query)
	require.NotNil(t, got.Report)
	assert.True(t, got.Saved)

	res = run(t, "--output", "machine", "list")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, got.SessionID)
	assert.Contains(t, res.stdout, "Bölgesel Teşvik")

	res = run(t, "--output", "machine", "show", got.SessionID)
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, got.Report.Title)
	assert.Contains(t, res.stdout, "## Analiz Ayrıntıları")
	assert.Contains(t, res.stdout, "Bölge\tGaziantep: 3 → 3 → 3")

	res = run(t, "show", "missing")
	assert.Equal(t, exitError, res.code)
	assert.Contains(t, res.stderr, "no stored analysis")
}

func TestCLI_AnalyzeMachineOutput(t *testing.T) {
	testEnv(t)

	res := run(t, "--output", "machine", "analyze", "--offline", "--topic", "otel", "--region", "Gaziantep", "otel yatırımı")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Gaziantep - otel Yatırımı Teşvik Analizi")
	assert.Contains(t, res.stdout, "Sınıflandırma\tBölgesel Teşvik")
	assert.Contains(t, res.stderr, "PROGRESS: analiz ediliyor")
	assert.Contains(t, res.stderr, "PROGRESS: rule_auditor done")
}

func TestCLI_AnalyzeRedacts(t *testing.T) {
	testEnv(t)

	res := run(t, "--output", "machine", "analyze", "--offline", "--topic", "otel", "--region", "Gaziantep",
		"kimlik no 10000000146 ile otel yatırımı")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "WARN: sorudan kişisel veri çıkarıldı: TC_KIMLIK_NO")
	assert.NotContains(t, res.stdout, "10000000146")

	t.Setenv("TESVIK_PRIVACY_MODE", "block")
	res = run(t, "analyze", "--offline", "kimlik no 10000000146")
	assert.Equal(t, exitError, res.code)
	assert.Contains(t, res.stderr, "personal data")
}

func TestCLI_AnalyzeWithScriptedBackend(t *testing.T) {
	testEnv(t)
	t.Setenv("TESVIK_STORAGE_IN_MEMORY", "true")

	mock := llm.NewMockClient().WithError(errors.New("backend down"))
	a := newApp(nil, nil)
	a.newService = func(cfg config.Config, logger *slog.Logger, opts ...incentive.Option) (*incentive.Service, error) {
		return incentive.New(cfg, logger, append(opts, incentive.WithClient(mock))...)
	}

	res := runCLI(t, a, "--output", "machine", "analyze", "bir yatırım sorusu")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Positive(t, mock.CallCount())
	assert.Contains(t, res.stdout, "WARN: konu veya il belirlenemedi")
}

func TestCLI_AnalyzeExhausted(t *testing.T) {
	testEnv(t)
	t.Setenv("TESVIK_MAX_STEPS", "2")

	res := run(t, "--output", "machine", "analyze", "--offline", "--topic", "otel", "--region", "Gaziantep", "otel yatırımı")
	assert.Equal(t, exitPartial, res.code)
	assert.Contains(t, res.stderr, "WARN:")

	res = run(t, "--json", "list")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Empty(t, decodeJSON[[]incentive.RunSummary](t, res.stdout))
}

func TestEvents(t *testing.T) {
	testEnv(t)

	res := run(t, "events", "--json")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.JSONEq(t, "[]", res.stdout)

	res = run(t, "events", "--output", "minimal")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "kayıtlı olay yok")

	res = run(t, "events", "--since", "-1h")
	assert.Equal(t, exitUsage, res.code)
}

func TestBackupRestore(t *testing.T) {
	testEnv(t)
	res := run(t, "analyze", "--json", "--offline", "--topic", "otel", "--region", "Van", "--amount", "10000000", "Van'da otel")
	require.Equal(t, exitOK, res.code, res.stderr)
	sessionID := decodeJSON[incentive.AnalyzeResponse](t, res.stdout).SessionID

	path := filepath.Join(t.TempDir(), "yedek", "tesvik.bak")
	res = run(t, "backup", "--output", "machine", path)
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "OK:")

	t.Setenv("TESVIK_STORAGE_PATH", t.TempDir())
	res = run(t, "show", sessionID)
	assert.Equal(t, exitError, res.code)

	res = run(t, "restore", "--json", path)
	require.Equal(t, exitOK, res.code, res.stderr)
	res = run(t, "show", "--json", sessionID)
	assert.Equal(t, exitOK, res.code, res.stderr)

	res = run(t, "backup", "gs://bucket-only")
	assert.Equal(t, exitUsage, res.code)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "kısa", truncate("kısa", 10))
	assert.Equal(t, "yatı…", truncate("yatırım", 5))
	assert.Equal(t, 60, len([]rune(truncate(strings.Repeat("ş", 80), 60))))
}

func TestFormatTL(t *testing.T) {
	assert.Equal(t, "1.500.000 TL", formatTL(1_500_000))
	assert.Equal(t, "0 TL", formatTL(0))
}
