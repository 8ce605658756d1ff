// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package temporal reconstructs the incentive rules and legislative
// directives in force on a given date.
package temporal

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed data/knowledge.yaml data/annotations.json
var defaultData embed.FS

// Data file names.
const (
	KnowledgeFile   = "knowledge.yaml"
	AnnotationsFile = "annotations.json"
)

// DateLayout is the on-disk date format.
const DateLayout = "2006-01-02"

var (
	// ErrUnknownDecision indicates a version declared by a decision number
	// missing from the decision calendar.
	ErrUnknownDecision = errors.New("unknown decision number")

	// ErrInvalidDate indicates an unparsable or missing date.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidRegion indicates a region number outside 1..6.
	ErrInvalidRegion = errors.New("region out of range")

	// ErrEmptyDirective indicates an annotation without directive text.
	ErrEmptyDirective = errors.New("empty directive")
)

// RuleVersion is a dated partial override of the region and support tables.
type RuleVersion struct {
	EffectiveDate time.Time
	Decision      string
	Regions       map[string]int
	Supports      map[int]map[string]map[string]string
}

// Annotation is one entry of the legislative change log.
type Annotation struct {
	EffectiveDate time.Time `json:"-"`
	Date          string    `json:"effective_date"`
	Directive     string    `json:"directive"`
	LegalSource   string    `json:"legal_source,omitempty"`
	ChangeID      string    `json:"change_id,omitempty"`
	SectorCodes   []string  `json:"sector_codes,omitempty"`
}

type knowledgeFile struct {
	Decisions       map[string]string `yaml:"decisions"`
	GeneralSupports map[string]string `yaml:"general_supports"`
	Versions        []yaml.Node       `yaml:"versions"`
}

type versionRecord struct {
	Decision      string                            `yaml:"decision"`
	EffectiveDate string                            `yaml:"effective_date"`
	Regions       map[string]int                    `yaml:"regions"`
	Supports      map[int]map[string]map[string]any `yaml:"supports"`
}

// Store holds the version series and the annotation log.
//
// Thread Safety:
//
//	Immutable after Load. Safe for concurrent use.
type Store struct {
	decisions       map[string]time.Time
	general         map[string]string
	versions        []RuleVersion
	annotations     []Annotation
	haveAnnotations bool
	now             func() time.Time
	logger          *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock injects the source of "today".
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger that reports skipped records.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// LoadDefault loads the knowledge base and annotation log embedded in the
// binary.
func LoadDefault(logger *slog.Logger, opts ...Option) *Store {
	sub, err := fs.Sub(defaultData, "data")
	if err != nil {
		panic(err)
	}
	return Load(sub, logger, opts...)
}

// LoadDir loads both files from a directory on disk.
func LoadDir(dir string, logger *slog.Logger, opts ...Option) *Store {
	return Load(os.DirFS(dir), logger, opts...)
}

// Load builds a Store from fsys.
//
// Description:
//
//	Never fails. A missing or malformed knowledge base yields an empty
//	version series. A missing or malformed annotation log is remembered so
//	that ResolveDirectives can report it. Individual bad records are skipped
//	and logged at Warn.
func Load(fsys fs.FS, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		decisions: make(map[string]time.Time),
		general:   make(map[string]string),
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.loadKnowledge(fsys)
	s.loadAnnotations(fsys)

	logger.Info("temporal knowledge loaded",
		slog.Int("decisions", len(s.decisions)),
		slog.Int("versions", len(s.versions)),
		slog.Int("annotations", len(s.annotations)),
		slog.Bool("annotation_log", s.haveAnnotations),
	)
	return s
}

// New builds a Store from in-memory data. Used by tests and tools that
// assemble versions programmatically. Undated versions, and annotations
// that are undated or carry no directive, are skipped and logged the same
// way Load skips bad records.
func New(versions []RuleVersion, annotations []Annotation, opts ...Option) *Store {
	s := &Store{
		decisions:       make(map[string]time.Time),
		general:         make(map[string]string),
		now:             time.Now,
		logger:          slog.Default(),
		haveAnnotations: annotations != nil,
	}
	for _, opt := range opts {
		opt(s)
	}
	for i, v := range versions {
		if v.EffectiveDate.IsZero() {
			s.skip("versions", "version "+strconv.Itoa(i), fmt.Errorf("%w: empty", ErrInvalidDate))
			continue
		}
		v.EffectiveDate = day(v.EffectiveDate)
		s.versions = append(s.versions, v)
	}
	sortVersions(s.versions)
	for i, a := range annotations {
		if err := checkAnnotation(a); err != nil {
			s.skip("annotations", "entry "+strconv.Itoa(i), err)
			continue
		}
		a.EffectiveDate = day(a.EffectiveDate)
		s.annotations = append(s.annotations, a)
	}
	sortAnnotations(s.annotations)
	return s
}

func checkAnnotation(a Annotation) error {
	if a.EffectiveDate.IsZero() {
		return fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	if strings.TrimSpace(a.Directive) == "" {
		return ErrEmptyDirective
	}
	return nil
}

func (s *Store) loadKnowledge(fsys fs.FS) {
	data, err := fs.ReadFile(fsys, KnowledgeFile)
	if err != nil {
		s.logger.Warn("knowledge base unavailable", slog.String("file", KnowledgeFile), slog.String("error", err.Error()))
		return
	}
	var kf knowledgeFile
	if err := yaml.Unmarshal(data, &kf); err != nil {
		s.logger.Warn("knowledge base malformed", slog.String("file", KnowledgeFile), slog.String("error", err.Error()))
		return
	}

	for decision, date := range kf.Decisions {
		t, err := parseDate(date)
		if err != nil {
			s.skip(KnowledgeFile, "decision "+decision, err)
			continue
		}
		s.decisions[decision] = t
	}
	for k, v := range kf.GeneralSupports {
		s.general[k] = v
	}

	for i := range kf.Versions {
		var rec versionRecord
		if err := kf.Versions[i].Decode(&rec); err != nil {
			s.skip(KnowledgeFile, "version "+strconv.Itoa(i), err)
			continue
		}
		v, err := s.buildVersion(rec)
		if err != nil {
			s.skip(KnowledgeFile, "version "+strconv.Itoa(i), err)
			continue
		}
		s.versions = append(s.versions, v)
	}
	sortVersions(s.versions)
}

func (s *Store) buildVersion(rec versionRecord) (RuleVersion, error) {
	v := RuleVersion{Decision: rec.Decision}
	switch {
	case rec.EffectiveDate != "":
		t, err := parseDate(rec.EffectiveDate)
		if err != nil {
			return v, err
		}
		v.EffectiveDate = t
	case rec.Decision != "":
		t, ok := s.decisions[rec.Decision]
		if !ok {
			return v, fmt.Errorf("%w: %s", ErrUnknownDecision, rec.Decision)
		}
		v.EffectiveDate = t
	default:
		return v, fmt.Errorf("%w: version has neither decision nor date", ErrInvalidDate)
	}

	v.Regions = make(map[string]int, len(rec.Regions))
	for city, region := range rec.Regions {
		if region < 1 || region > 6 {
			return v, fmt.Errorf("%w: %s=%d", ErrInvalidRegion, city, region)
		}
		v.Regions[city] = region
	}

	v.Supports = make(map[int]map[string]map[string]string, len(rec.Supports))
	for region, kinds := range rec.Supports {
		if region < 1 || region > 6 {
			return v, fmt.Errorf("%w: support table %d", ErrInvalidRegion, region)
		}
		table := make(map[string]map[string]string, len(kinds))
		for kind, attrs := range kinds {
			row := make(map[string]string, len(attrs))
			for attr, val := range attrs {
				row[attr] = fmt.Sprint(val)
			}
			table[kind] = row
		}
		v.Supports[region] = table
	}
	return v, nil
}

func (s *Store) loadAnnotations(fsys fs.FS) {
	data, err := fs.ReadFile(fsys, AnnotationsFile)
	if err != nil {
		s.logger.Warn("annotation log unavailable", slog.String("file", AnnotationsFile), slog.String("error", err.Error()))
		return
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("annotation log malformed", slog.String("file", AnnotationsFile), slog.String("error", err.Error()))
		return
	}
	s.haveAnnotations = true

	for i, r := range raw {
		var a Annotation
		if err := json.Unmarshal(r, &a); err != nil {
			s.skip(AnnotationsFile, "entry "+strconv.Itoa(i), err)
			continue
		}
		t, err := parseDate(a.Date)
		if err != nil {
			s.skip(AnnotationsFile, "entry "+strconv.Itoa(i), err)
			continue
		}
		a.EffectiveDate = t
		if err := checkAnnotation(a); err != nil {
			s.skip(AnnotationsFile, "entry "+strconv.Itoa(i), err)
			continue
		}
		s.annotations = append(s.annotations, a)
	}
	sortAnnotations(s.annotations)
}

func (s *Store) skip(file, record string, err error) {
	s.logger.Warn("skipping malformed record",
		slog.String("file", file),
		slog.String("record", record),
		slog.String("error", err.Error()),
	)
}

// Today returns the current date from the injected clock.
func (s *Store) Today() time.Time {
	return day(s.now())
}

// GeneralSupports returns the region-independent supports.
func (s *Store) GeneralSupports() map[string]string {
	out := make(map[string]string, len(s.general))
	for k, v := range s.general {
		out[k] = v
	}
	return out
}

// DecisionDate returns the effective date of a decision number.
func (s *Store) DecisionDate(decision string) (time.Time, bool) {
	t, ok := s.decisions[decision]
	return t, ok
}

// Versions returns the version series in effective order.
func (s *Store) Versions() []RuleVersion {
	out := make([]RuleVersion, len(s.versions))
	copy(out, s.versions)
	return out
}

func sortVersions(vs []RuleVersion) {
	sort.SliceStable(vs, func(i, j int) bool {
		return vs[i].EffectiveDate.Before(vs[j].EffectiveDate)
	})
}

func sortAnnotations(as []Annotation) {
	sort.SliceStable(as, func(i, j int) bool {
		return as[i].EffectiveDate.Before(as[j].EffectiveDate)
	})
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// day truncates t to its calendar date in UTC.
func day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
