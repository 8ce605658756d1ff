// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/tesvik/pkg/extensions"
	"github.com/AleutianAI/tesvik/services/incentive/dag"
	"github.com/AleutianAI/tesvik/services/incentive/privacy"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, dag.DefaultMaxSteps, cfg.Pipeline.MaxSteps)
	assert.Equal(t, BackendOpenAI, cfg.Reasoning.Backend)
	assert.Equal(t, RetrievalMemory, cfg.Retrieval.Backend)
	assert.Equal(t, 5, cfg.Region.PriorityFloor)
	assert.True(t, cfg.Cache.Enabled)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "tesvik.yaml", `
logging:
  level: debug
pipeline:
  max_steps: 20
  call_timeout: 45s
reasoning:
  backend: offline
storage:
  in_memory: true
  path: ""
region:
  priority_floor: 4
  zone_bonus: 0
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 20, cfg.Pipeline.MaxSteps)
	assert.Equal(t, 45*time.Second, cfg.Pipeline.CallTimeout)
	assert.Equal(t, BackendOffline, cfg.Reasoning.Backend)
	assert.True(t, cfg.Storage.InMemory)
	assert.Equal(t, 4, cfg.Region.PriorityFloor)
	assert.Equal(t, 0, cfg.Region.ZoneBonus)
	// untouched sections keep their defaults
	assert.Equal(t, 4000, cfg.Server.MaxQueryLength)
}

func TestLoad_JSONFallback(t *testing.T) {
	path := writeFile(t, "tesvik.json", `{"server": {"addr": ":9090"}, "retrieval": {"backend": "weaviate", "weaviate_url": "http://localhost:8081"}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, RetrievalWeaviate, cfg.Retrieval.Backend)
}

func TestLoad_PathFromEnv(t *testing.T) {
	path := writeFile(t, "c.yaml", "server:\n  addr: \":7070\"\n")
	t.Setenv(PathEnv, path)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestLoad_Malformed(t *testing.T) {
	path := writeFile(t, "bad.yaml", "pipeline: [unclosed")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_TooLarge(t *testing.T) {
	big := make([]byte, MaxFileSize+10)
	for i := range big {
		big[i] = '#'
	}
	path := writeFile(t, "big.yaml", string(big))
	_, err := Load(path)
	assert.ErrorContains(t, err, "exceeds")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "c.yaml", "pipeline:\n  max_steps: 20\n")
	t.Setenv("TESVIK_MAX_STEPS", "30")
	t.Setenv("TESVIK_LOG_LEVEL", "WARN")
	t.Setenv("TESVIK_CACHE_TTL", "1h")
	t.Setenv("TESVIK_REASONING_BACKEND", "Offline")
	t.Setenv("OTEL_TRACES_EXPORTER", "stdout")
	t.Setenv("TESVIK_PRIVACY_MODE", "BLOCK")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Pipeline.MaxSteps)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, BackendOffline, cfg.Reasoning.Backend)
	assert.Equal(t, "stdout", cfg.Telemetry.TraceExporter)
	assert.Equal(t, privacy.ModeBlock, cfg.Privacy.Mode)
}

func TestLoad_AuthAndAudit(t *testing.T) {
	path := writeFile(t, "auth.yaml", `
auth:
  tokens:
    - token: s3cret
      user: ayse
      roles: [analyst]
audit:
  enabled: false
`)
	t.Setenv("TESVIK_API_TOKEN", "env-token")
	t.Setenv("TESVIK_AUDIT_RETENTION", "24h")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Auth.Tokens, 2)
	assert.Equal(t, "ayse", cfg.Auth.Tokens[0].UserID)
	assert.Equal(t, EnvTokenUser, cfg.Auth.Tokens[1].UserID)
	assert.False(t, cfg.Audit.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Audit.Retention)

	provider := cfg.Auth.Provider()
	assert.True(t, provider.Required())
	info, err := provider.Validate(context.Background(), "env-token")
	require.NoError(t, err)
	assert.True(t, info.HasRole(extensions.RoleAuditor))

	assert.False(t, Default().Auth.Provider().Required())
}

func TestApplyEnv_BadValues(t *testing.T) {
	for key, val := range map[string]string{
		"TESVIK_MAX_STEPS":      "many",
		"TESVIK_CALL_TIMEOUT":   "soon",
		"TESVIK_LOG_JSON":       "maybe",
		"TESVIK_RATE_LIMIT":     "fast",
		"TESVIK_PRIORITY_FLOOR": "x",
	} {
		t.Run(key, func(t *testing.T) {
			cfg := Default()
			env := map[string]string{key: val}
			err := applyEnv(&cfg, func(k string) (string, bool) {
				v, ok := env[k]
				return v, ok
			})
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestApplyEnv_EmptyIgnored(t *testing.T) {
	cfg := Default()
	err := applyEnv(&cfg, func(k string) (string, bool) { return "  ", true })
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Addr, cfg.Server.Addr)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max steps", func(c *Config) { c.Pipeline.MaxSteps = 0 }},
		{"unknown backend", func(c *Config) { c.Reasoning.Backend = "gemini" }},
		{"unknown retrieval", func(c *Config) { c.Retrieval.Backend = "solr" }},
		{"weaviate without url", func(c *Config) { c.Retrieval.Backend = RetrievalWeaviate }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"priority floor out of range", func(c *Config) { c.Region.PriorityFloor = 7 }},
		{"disk storage without path", func(c *Config) { c.Storage.Path = "" }},
		{"discard ratio", func(c *Config) { c.Storage.GCDiscardRatio = 1.5 }},
		{"bad trace exporter", func(c *Config) { c.Telemetry.TraceExporter = "jaeger" }},
		{"bad base url", func(c *Config) { c.Reasoning.BaseURL = "not a url" }},
		{"unknown privacy mode", func(c *Config) { c.Privacy.Mode = "mask" }},
		{"export without bucket", func(c *Config) { c.Export.URL = "http://influx:8086"; c.Export.Org = "o" }},
		{"unknown backend", func(c *Config) { c.Reasoning.Backend = "gemini" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}

	t.Run("in memory needs no path", func(t *testing.T) {
		cfg := Default()
		cfg.Storage.Path = ""
		cfg.Storage.InMemory = true
		assert.NoError(t, cfg.Validate())
	})
}

func TestConversions(t *testing.T) {
	cfg := Default()
	opts := cfg.Pipeline.NodeOptions()
	assert.Equal(t, cfg.Pipeline.CallTimeout, opts.CallTimeout)
	assert.Equal(t, cfg.Pipeline.ReportTemperature, opts.ReportTemperature)

	db := cfg.Storage.DB()
	assert.Equal(t, cfg.Storage.Path, db.Path)
	assert.Equal(t, cfg.Storage.GCDiscardRatio, db.GCDiscardRatio)
}
