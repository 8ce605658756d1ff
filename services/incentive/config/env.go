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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/tesvik/pkg/extensions"
	"github.com/AleutianAI/tesvik/services/incentive/privacy"
)

// EnvTokenUser is the user behind TESVIK_API_TOKEN.
const EnvTokenUser = "api"

// lookupFunc matches os.LookupEnv so tests can supply a fixed environment.
type lookupFunc func(key string) (string, bool)

// envSetter applies one environment variable to a Config.
type envSetter struct {
	key   string
	apply func(c *Config, v string) error
}

var envSetters = []envSetter{
	{"TESVIK_LOG_LEVEL", func(c *Config, v string) error { c.Logging.Level = strings.ToLower(v); return nil }},
	{"TESVIK_LOG_JSON", boolInto(func(c *Config) *bool { return &c.Logging.JSON })},
	{"TESVIK_LOG_DIR", stringInto(func(c *Config) *string { return &c.Logging.Dir })},

	{"TESVIK_MAX_STEPS", intInto(func(c *Config) *int { return &c.Pipeline.MaxSteps })},
	{"TESVIK_CALL_TIMEOUT", durationInto(func(c *Config) *time.Duration { return &c.Pipeline.CallTimeout })},
	{"TESVIK_DOCUMENT_LIMIT", intInto(func(c *Config) *int { return &c.Pipeline.DocumentLimit })},

	{"TESVIK_REASONING_BACKEND", func(c *Config, v string) error { c.Reasoning.Backend = strings.ToLower(v); return nil }},
	{"OPENAI_MODEL", stringInto(func(c *Config) *string { return &c.Reasoning.Model })},
	{"OPENAI_BASE_URL", stringInto(func(c *Config) *string { return &c.Reasoning.BaseURL })},
	{"OLLAMA_BASE_URL", stringInto(func(c *Config) *string { return &c.Reasoning.OllamaURL })},
	{"OLLAMA_MODEL", stringInto(func(c *Config) *string { return &c.Reasoning.Model })},
	{"TESVIK_RATE_LIMIT", floatInto(func(c *Config) *float64 { return &c.Reasoning.RequestsPerSecond })},
	{"TESVIK_MAX_RETRIES", intInto(func(c *Config) *int { return &c.Reasoning.MaxRetries })},

	{"TESVIK_CACHE_ENABLED", boolInto(func(c *Config) *bool { return &c.Cache.Enabled })},
	{"TESVIK_CACHE_TTL", durationInto(func(c *Config) *time.Duration { return &c.Cache.TTL })},

	{"TESVIK_STORAGE_PATH", stringInto(func(c *Config) *string { return &c.Storage.Path })},
	{"TESVIK_STORAGE_IN_MEMORY", boolInto(func(c *Config) *bool { return &c.Storage.InMemory })},
	{"TESVIK_RUN_TTL", durationInto(func(c *Config) *time.Duration { return &c.Storage.RunTTL })},

	{"TESVIK_RETRIEVAL_BACKEND", func(c *Config, v string) error { c.Retrieval.Backend = strings.ToLower(v); return nil }},
	{"WEAVIATE_URL", stringInto(func(c *Config) *string { return &c.Retrieval.WeaviateURL })},
	{"TESVIK_CORPUS_PATH", stringInto(func(c *Config) *string { return &c.Retrieval.CorpusPath })},

	{"TESVIK_ANNEX_DIR", stringInto(func(c *Config) *string { return &c.Data.AnnexDir })},
	{"TESVIK_KNOWLEDGE_DIR", stringInto(func(c *Config) *string { return &c.Data.KnowledgeDir })},
	{"TESVIK_REGION_TABLE", stringInto(func(c *Config) *string { return &c.Data.RegionTable })},

	{"TESVIK_PRIORITY_FLOOR", intInto(func(c *Config) *int { return &c.Region.PriorityFloor })},
	{"TESVIK_ZONE_BONUS", intInto(func(c *Config) *int { return &c.Region.ZoneBonus })},
	{"TESVIK_REQUIRE_PRIORITY_CLASSIFICATION", boolInto(func(c *Config) *bool { return &c.Region.RequirePriorityClassification })},

	{"TESVIK_PRIVACY_MODE", func(c *Config, v string) error { c.Privacy.Mode = privacy.Mode(strings.ToLower(v)); return nil }},

	{"TESVIK_API_TOKEN", func(c *Config, v string) error {
		c.Auth.Tokens = append(c.Auth.Tokens, extensions.TokenUser{
			Token:  v,
			UserID: EnvTokenUser,
			Roles:  []string{extensions.RoleAdmin},
		})
		return nil
	}},
	{"TESVIK_AUDIT_ENABLED", boolInto(func(c *Config) *bool { return &c.Audit.Enabled })},
	{"TESVIK_AUDIT_RETENTION", durationInto(func(c *Config) *time.Duration { return &c.Audit.Retention })},

	{"INFLUXDB_URL", stringInto(func(c *Config) *string { return &c.Export.URL })},
	{"INFLUXDB_TOKEN", stringInto(func(c *Config) *string { return &c.Export.Token })},
	{"INFLUXDB_ORG", stringInto(func(c *Config) *string { return &c.Export.Org })},
	{"INFLUXDB_BUCKET", stringInto(func(c *Config) *string { return &c.Export.Bucket })},

	{"TESVIK_SERVER_ADDR", stringInto(func(c *Config) *string { return &c.Server.Addr })},

	{"OTEL_TRACES_EXPORTER", stringInto(func(c *Config) *string { return &c.Telemetry.TraceExporter })},
	{"OTEL_METRICS_EXPORTER", stringInto(func(c *Config) *string { return &c.Telemetry.MetricExporter })},
	{"OTEL_EXPORTER_OTLP_ENDPOINT", stringInto(func(c *Config) *string { return &c.Telemetry.OTLPEndpoint })},
}

// applyEnv overrides cfg from the environment. Empty values are ignored.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	for _, s := range envSetters {
		v, ok := lookup(s.key)
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if err := s.apply(cfg, v); err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, s.key, v, err)
		}
	}
	return nil
}

func stringInto(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

func intInto(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func floatInto(field func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*field(c) = f
		return nil
	}
}

func boolInto(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

func durationInto(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}
