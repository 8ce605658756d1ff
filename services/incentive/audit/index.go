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
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

//go:embed data/*.json
var defaultData embed.FS

// Annex file names inside a data directory.
const (
	SectorCatalogueFile = "ek-2a.json"
	EligibilityFile     = "ek-2b.json"
	ThresholdFile       = "ek-3.json"
	ProhibitionFile     = "ek-4.json"
)

// ProhibitedSectionTitle is the heading of the prohibition section in EK-4.
const ProhibitedSectionTitle = "TEŞVİK EDİLMEYECEK YATIRIMLAR"

// MaxAnnexFileSize bounds a single annex file.
const MaxAnnexFileSize = 10 * 1024 * 1024

// =============================================================================
// Annex Records
// =============================================================================

// Sector is one catalogue entry.
type Sector struct {
	Name string `json:"SEKTÖR ADI"`
	Code string `json:"US-97 Kodu"`

	words map[string]bool
}

type sectorFile struct {
	Sectors []json.RawMessage `json:"sektörler"`
}

type eligibilityRow struct {
	Province string `json:"İL ADI"`
	Codes    string `json:"SEKTÖR NUMARALARI"`

	normalized string
	codes      map[string]bool
}

type eligibilityFile struct {
	Table struct {
		Rows []json.RawMessage `json:"satirlar"`
	} `json:"tablo"`
}

// amount accepts JSON numbers and numeric strings ("12,5" included).
type amount float64

func (a *amount) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*a = amount(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
	if err != nil {
		return fmt.Errorf("amount %q: %w", s, err)
	}
	*a = amount(f)
	return nil
}

// Threshold is a large-scale minimum for a code reference. Nested
// sub-investments are flattened after their parent.
type Threshold struct {
	Topic      string
	MinimumTL  float64
	HasMinimum bool
	Sub        []Threshold
}

type thresholdRecord struct {
	Topic   string         `json:"Yatırım Konusu"`
	Minimum *amount        `json:"Asgari Sabit Yatırım Tutarı (Milyon TL)"`
	Subs    []subThreshold `json:"Alt Yatırımlar"`
}

type subThreshold struct {
	Topic   string `json:"Konu"`
	Minimum amount `json:"Tutar (Milyon TL)"`
}

type thresholdFile struct {
	Investments []json.RawMessage `json:"yatırımlar"`
}

// =============================================================================
// Index
// =============================================================================

// Index is the immutable set of legal annex tables.
//
// Description:
//
//	Each table may be absent when its file is missing or malformed. Every
//	audit over an absent table answers false. Individual malformed records
//	are skipped at load time.
//
// Thread Safety:
//
//	Index is read-only after Load and safe for concurrent use.
type Index struct {
	sectors     []Sector
	eligibility []eligibilityRow
	thresholds  []Threshold
	prohibition any

	hasSectors     bool
	hasEligibility bool
	hasThresholds  bool
}

// LoadStats summarizes what Load accepted and skipped.
type LoadStats struct {
	Sectors        int
	Eligibility    int
	Thresholds     int
	Prohibition    bool
	SkippedRecords int
	MissingTables  []string
}

// LoadDefault loads the annex tables embedded in the binary.
func LoadDefault(logger *slog.Logger) (*Index, LoadStats) {
	sub, err := fs.Sub(defaultData, "data")
	if err != nil {
		// embed guarantees the directory exists
		panic(err)
	}
	return Load(sub, logger)
}

// LoadDir loads annex tables from a directory on disk.
func LoadDir(dir string, logger *slog.Logger) (*Index, LoadStats) {
	return Load(os.DirFS(dir), logger)
}

// Load builds an Index from the annex files in fsys.
//
// Description:
//
//	Never fails. Missing or unparsable files leave their table absent;
//	unparsable records inside a file are skipped. Both cases are logged at
//	Warn level.
//
// Inputs:
//
//	fsys - File system holding ek-2a/2b/3/4 JSON files.
//	logger - Logger for data errors. If nil, uses slog.Default().
//
// Outputs:
//
//	*Index - The loaded index.
//	LoadStats - Counts of accepted and skipped data.
func Load(fsys fs.FS, logger *slog.Logger) (*Index, LoadStats) {
	if logger == nil {
		logger = slog.Default()
	}
	idx := &Index{}
	stats := LoadStats{}

	l := loader{fsys: fsys, logger: logger, stats: &stats}

	var sf sectorFile
	if l.readJSON(SectorCatalogueFile, &sf) {
		idx.hasSectors = true
		for i, raw := range sf.Sectors {
			var s Sector
			if err := json.Unmarshal(raw, &s); err != nil || s.Code == "" || s.Name == "" {
				l.skip(SectorCatalogueFile, i, err)
				continue
			}
			s.words = Words(s.Name)
			idx.sectors = append(idx.sectors, s)
		}
	}

	var ef eligibilityFile
	if l.readJSON(EligibilityFile, &ef) {
		idx.hasEligibility = true
		for i, raw := range ef.Table.Rows {
			var row eligibilityRow
			if err := json.Unmarshal(raw, &row); err != nil || row.Province == "" {
				l.skip(EligibilityFile, i, err)
				continue
			}
			row.normalized = normalizeRowName(row.Province)
			row.codes = make(map[string]bool)
			for _, c := range strings.Fields(row.Codes) {
				row.codes[c] = true
			}
			idx.eligibility = append(idx.eligibility, row)
		}
	}

	var tf thresholdFile
	if l.readJSON(ThresholdFile, &tf) {
		idx.hasThresholds = true
		for i, raw := range tf.Investments {
			var rec thresholdRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				l.skip(ThresholdFile, i, err)
				continue
			}
			t := Threshold{Topic: rec.Topic}
			if rec.Minimum != nil {
				t.MinimumTL = float64(*rec.Minimum) * 1_000_000
				t.HasMinimum = true
			}
			for _, sub := range rec.Subs {
				t.Sub = append(t.Sub, Threshold{
					Topic:      sub.Topic,
					MinimumTL:  float64(sub.Minimum) * 1_000_000,
					HasMinimum: true,
				})
			}
			idx.thresholds = append(idx.thresholds, t)
		}
	}

	var prohibition any
	if l.readJSON(ProhibitionFile, &prohibition) {
		idx.prohibition = prohibition
		stats.Prohibition = true
	}

	stats.Sectors = len(idx.sectors)
	stats.Eligibility = len(idx.eligibility)
	stats.Thresholds = len(idx.thresholds)

	logger.Info("legal annex index loaded",
		slog.Int("sectors", stats.Sectors),
		slog.Int("eligibility_rows", stats.Eligibility),
		slog.Int("thresholds", stats.Thresholds),
		slog.Bool("prohibition_tree", stats.Prohibition),
		slog.Int("skipped_records", stats.SkippedRecords),
	)
	return idx, stats
}

// Sectors returns a copy of the catalogue in declaration order.
func (idx *Index) Sectors() []Sector {
	out := make([]Sector, len(idx.sectors))
	copy(out, idx.sectors)
	return out
}

type loader struct {
	fsys   fs.FS
	logger *slog.Logger
	stats  *LoadStats
}

// readJSON decodes a whole file. Returns false when the table is absent.
func (l *loader) readJSON(name string, v any) bool {
	data, err := fs.ReadFile(l.fsys, filepath.ToSlash(name))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("annex file unreadable", slog.String("file", name), slog.String("error", err.Error()))
		}
		l.stats.MissingTables = append(l.stats.MissingTables, name)
		return false
	}
	if len(data) > MaxAnnexFileSize {
		l.logger.Warn("annex file too large", slog.String("file", name), slog.Int("bytes", len(data)))
		l.stats.MissingTables = append(l.stats.MissingTables, name)
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		l.logger.Warn("annex file malformed", slog.String("file", name), slog.String("error", err.Error()))
		l.stats.MissingTables = append(l.stats.MissingTables, name)
		return false
	}
	return true
}

func (l *loader) skip(file string, i int, err error) {
	l.stats.SkippedRecords++
	attrs := []any{slog.String("file", file), slog.Int("record", i)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.logger.Warn("skipping malformed annex record", attrs...)
}
