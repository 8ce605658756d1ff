// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the incentive service configuration.
//
// Values are layered: built-in defaults, then an optional YAML or JSON
// file, then environment variables. The merged result is validated before
// it is returned.
//
// # Environment Variables
//
//   - TESVIK_LOG_LEVEL, TESVIK_LOG_JSON, TESVIK_LOG_DIR
//   - TESVIK_MAX_STEPS, TESVIK_CALL_TIMEOUT, TESVIK_DOCUMENT_LIMIT
//   - TESVIK_REASONING_BACKEND (openai, ollama, offline), OPENAI_MODEL, OPENAI_BASE_URL
//   - OLLAMA_BASE_URL, OLLAMA_MODEL
//   - TESVIK_RATE_LIMIT, TESVIK_MAX_RETRIES
//   - TESVIK_CACHE_ENABLED, TESVIK_CACHE_TTL
//   - TESVIK_STORAGE_PATH, TESVIK_STORAGE_IN_MEMORY, TESVIK_RUN_TTL
//   - TESVIK_RETRIEVAL_BACKEND (memory, weaviate), WEAVIATE_URL, TESVIK_CORPUS_PATH
//   - TESVIK_ANNEX_DIR, TESVIK_KNOWLEDGE_DIR, TESVIK_REGION_TABLE
//   - TESVIK_PRIORITY_FLOOR, TESVIK_ZONE_BONUS, TESVIK_REQUIRE_PRIORITY_CLASSIFICATION
//   - TESVIK_PRIVACY_MODE (off, redact, block)
//   - TESVIK_API_TOKEN, TESVIK_AUDIT_ENABLED, TESVIK_AUDIT_RETENTION
//   - INFLUXDB_URL, INFLUXDB_TOKEN, INFLUXDB_ORG, INFLUXDB_BUCKET
//   - TESVIK_SERVER_ADDR
//   - OTEL_TRACES_EXPORTER, OTEL_METRICS_EXPORTER, OTEL_EXPORTER_OTLP_ENDPOINT
//
// OPENAI_API_KEY is read by the reasoning client itself and never stored
// in Config.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/tesvik/pkg/extensions"
	"github.com/AleutianAI/tesvik/services/incentive/dag"
	"github.com/AleutianAI/tesvik/services/incentive/nodes"
	"github.com/AleutianAI/tesvik/services/incentive/observability"
	"github.com/AleutianAI/tesvik/services/incentive/privacy"
	"github.com/AleutianAI/tesvik/services/incentive/region"
	"github.com/AleutianAI/tesvik/services/incentive/storage"
	"github.com/AleutianAI/tesvik/services/incentive/telemetry"
)

// PathEnv names the config file when no path is given explicitly.
const PathEnv = "TESVIK_CONFIG"

// MaxFileSize caps the config file read.
const MaxFileSize = 1 << 20

// Reasoning backends.
const (
	BackendOpenAI  = "openai"
	BackendOllama  = "ollama"
	BackendOffline = "offline"
)

// Retrieval backends.
const (
	RetrievalMemory   = "memory"
	RetrievalWeaviate = "weaviate"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete service configuration.
type Config struct {
	Logging   LoggingConfig              `yaml:"logging" json:"logging"`
	Pipeline  PipelineConfig             `yaml:"pipeline" json:"pipeline"`
	Reasoning ReasoningConfig            `yaml:"reasoning" json:"reasoning"`
	Cache     CacheConfig                `yaml:"cache" json:"cache"`
	Storage   StorageConfig              `yaml:"storage" json:"storage"`
	Retrieval RetrievalConfig            `yaml:"retrieval" json:"retrieval"`
	Data      DataConfig                 `yaml:"data" json:"data"`
	Region    region.Policy              `yaml:"region" json:"region"`
	Privacy   PrivacyConfig              `yaml:"privacy" json:"privacy"`
	Auth      AuthConfig                 `yaml:"auth" json:"auth"`
	Audit     AuditConfig                `yaml:"audit" json:"audit"`
	Export    observability.InfluxConfig `yaml:"export" json:"export"`
	Server    ServerConfig               `yaml:"server" json:"server"`
	Telemetry telemetry.Config           `yaml:"telemetry" json:"telemetry"`
}

// LoggingConfig selects the log level, format and optional file directory.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json" json:"json"`
	Dir   string `yaml:"dir" json:"dir"`
}

// PipelineConfig bounds a run and its reasoning steps.
type PipelineConfig struct {
	MaxSteps          int           `yaml:"max_steps" json:"max_steps" validate:"gte=1"`
	CallTimeout       time.Duration `yaml:"call_timeout" json:"call_timeout" validate:"gt=0"`
	MaxTokens         int           `yaml:"max_tokens" json:"max_tokens" validate:"gte=1"`
	DocumentLimit     int           `yaml:"document_limit" json:"document_limit" validate:"gte=1"`
	FocusedLimit      int           `yaml:"focused_limit" json:"focused_limit" validate:"gte=1"`
	RetrievalTimeout  time.Duration `yaml:"retrieval_timeout" json:"retrieval_timeout" validate:"gt=0"`
	ReportTemperature float64       `yaml:"report_temperature" json:"report_temperature" validate:"gte=0,lte=2"`
}

// NodeOptions converts the pipeline section for the node constructors.
func (p PipelineConfig) NodeOptions() nodes.Options {
	return nodes.Options{
		CallTimeout:       p.CallTimeout,
		MaxTokens:         p.MaxTokens,
		DocumentLimit:     p.DocumentLimit,
		FocusedLimit:      p.FocusedLimit,
		RetrievalTimeout:  p.RetrievalTimeout,
		ReportTemperature: p.ReportTemperature,
	}
}

// ReasoningConfig selects and tunes the reasoning backend.
type ReasoningConfig struct {
	Backend           string        `yaml:"backend" json:"backend" validate:"oneof=openai ollama offline"`
	Model             string        `yaml:"model" json:"model"`
	BaseURL           string        `yaml:"base_url" json:"base_url" validate:"omitempty,url"`
	OllamaURL         string        `yaml:"ollama_url" json:"ollama_url" validate:"omitempty,url"`
	SecretPath        string        `yaml:"secret_path" json:"secret_path"`
	RequestTimeout    time.Duration `yaml:"request_timeout" json:"request_timeout" validate:"gte=0"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second" validate:"gte=0"`
	Burst             int           `yaml:"burst" json:"burst" validate:"gte=0"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries" validate:"gte=0,lte=10"`
	RetryBackoff      time.Duration `yaml:"retry_backoff" json:"retry_backoff" validate:"gte=0"`
}

// CacheConfig controls the persistent reasoning response cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	TTL     time.Duration `yaml:"ttl" json:"ttl" validate:"gte=0"`
}

// StorageConfig locates the embedded database behind the cache and the
// run history.
type StorageConfig struct {
	Path           string        `yaml:"path" json:"path" validate:"required_without=InMemory"`
	InMemory       bool          `yaml:"in_memory" json:"in_memory"`
	SyncWrites     bool          `yaml:"sync_writes" json:"sync_writes"`
	GCInterval     time.Duration `yaml:"gc_interval" json:"gc_interval" validate:"gte=0"`
	GCDiscardRatio float64       `yaml:"gc_discard_ratio" json:"gc_discard_ratio" validate:"gte=0,lte=1"`
	RunTTL         time.Duration `yaml:"run_ttl" json:"run_ttl" validate:"gte=0"`
}

// DB converts the section for storage.Open.
func (s StorageConfig) DB() storage.Config {
	return storage.Config{
		Path:           s.Path,
		InMemory:       s.InMemory,
		SyncWrites:     s.SyncWrites,
		GCInterval:     s.GCInterval,
		GCDiscardRatio: s.GCDiscardRatio,
	}
}

// RetrievalConfig selects where legal texts are searched.
type RetrievalConfig struct {
	Backend     string `yaml:"backend" json:"backend" validate:"oneof=memory weaviate"`
	WeaviateURL string `yaml:"weaviate_url" json:"weaviate_url" validate:"required_if=Backend weaviate"`
	ClassName   string `yaml:"class_name" json:"class_name"`

	// CorpusPath replaces the embedded decision text for the memory
	// backend. A file or a directory.
	CorpusPath string `yaml:"corpus_path" json:"corpus_path"`
}

// DataConfig overrides the embedded rule data. Empty fields use the
// embedded copies.
type DataConfig struct {
	AnnexDir     string `yaml:"annex_dir" json:"annex_dir"`
	KnowledgeDir string `yaml:"knowledge_dir" json:"knowledge_dir"`
	RegionTable  string `yaml:"region_table" json:"region_table"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr" json:"addr" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" validate:"gte=0"`

	// MaxQueryLength rejects longer queries at the API boundary.
	MaxQueryLength int `yaml:"max_query_length" json:"max_query_length" validate:"gte=1"`
}

// PrivacyConfig controls personal data screening of queries.
type PrivacyConfig struct {
	Mode privacy.Mode `yaml:"mode" json:"mode" validate:"oneof=off redact block"`
}

// AuthConfig lists the API bearer tokens. No tokens leaves the API open
// to the local user.
type AuthConfig struct {
	Tokens []extensions.TokenUser `yaml:"tokens" json:"tokens" validate:"dive"`
}

// Provider builds the auth provider for the HTTP API.
func (a AuthConfig) Provider() extensions.AuthProvider {
	if len(a.Tokens) == 0 {
		return &extensions.NopAuthProvider{}
	}
	return extensions.NewTokenAuthProvider(a.Tokens)
}

// AuditConfig controls the API audit trail.
type AuditConfig struct {
	Enabled   bool          `yaml:"enabled" json:"enabled"`
	Retention time.Duration `yaml:"retention" json:"retention" validate:"gte=0"`
}

// Default returns the built-in configuration.
func Default() Config {
	opts := nodes.DefaultOptions()
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	db := storage.DefaultConfig(home + "/.tesvik/data")
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Pipeline: PipelineConfig{
			MaxSteps:          dag.DefaultMaxSteps,
			CallTimeout:       opts.CallTimeout,
			MaxTokens:         opts.MaxTokens,
			DocumentLimit:     opts.DocumentLimit,
			FocusedLimit:      opts.FocusedLimit,
			RetrievalTimeout:  opts.RetrievalTimeout,
			ReportTemperature: opts.ReportTemperature,
		},
		Reasoning: ReasoningConfig{
			Backend:           BackendOpenAI,
			RequestTimeout:    90 * time.Second,
			RequestsPerSecond: 5,
			Burst:             5,
			MaxRetries:        2,
			RetryBackoff:      500 * time.Millisecond,
		},
		Cache: CacheConfig{Enabled: true, TTL: 7 * 24 * time.Hour},
		Storage: StorageConfig{
			Path:           db.Path,
			SyncWrites:     db.SyncWrites,
			GCInterval:     db.GCInterval,
			GCDiscardRatio: db.GCDiscardRatio,
		},
		Retrieval: RetrievalConfig{Backend: RetrievalMemory},
		Region:    region.DefaultPolicy(),
		Privacy:   PrivacyConfig{Mode: privacy.ModeRedact},
		Audit:     AuditConfig{Enabled: true, Retention: 90 * 24 * time.Hour},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
			MaxQueryLength:  4000,
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Load builds the configuration.
//
// Description:
//
//	Starts from Default, applies the file at path (or at $TESVIK_CONFIG
//	when path is empty), then the environment, then validates. A missing
//	file is not an error; an unreadable or malformed one is.
//
// Outputs:
//
//	Config - The merged configuration.
//	error - Non-nil on a bad file or a validation failure (wraps ErrInvalid).
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return err
	}
	if len(data) > MaxFileSize {
		return fmt.Errorf("%s exceeds %d bytes", path, MaxFileSize)
	}

	// YAML first; JSON is tried only when YAML rejects the document.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %q", ErrInvalid, verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}
