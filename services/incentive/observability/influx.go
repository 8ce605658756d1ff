// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/AleutianAI/tesvik/services/incentive/analysis"
)

// AnalysisMeasurement is the InfluxDB measurement holding one point per
// completed analysis.
const AnalysisMeasurement = "incentive_analyses"

// InfluxConfig locates the InfluxDB bucket analyses are exported to. An
// empty URL disables the export.
type InfluxConfig struct {
	URL    string `yaml:"url" json:"url" validate:"omitempty,url"`
	Token  string `yaml:"token" json:"-"`
	Org    string `yaml:"org" json:"org" validate:"required_with=URL"`
	Bucket string `yaml:"bucket" json:"bucket" validate:"required_with=URL"`
}

// Enabled reports whether an export target is configured.
func (c InfluxConfig) Enabled() bool { return c.URL != "" }

// AnalysisRecord is what gets exported for one analysis.
type AnalysisRecord struct {
	SessionID  string
	At         time.Time
	Duration   time.Duration
	Steps      int
	NodeErrors int
	Backend    string
	State      analysis.State
}

// InfluxExporter writes analysis outcomes to InfluxDB for dashboards over
// cities, classifications and regions.
//
// Thread Safety:
//
//	Safe for concurrent use.
type InfluxExporter struct {
	client influxdb2.Client
	writer api.WriteAPIBlocking
}

// NewInfluxExporter connects lazily; no request is made until Export.
func NewInfluxExporter(cfg InfluxConfig) (*InfluxExporter, error) {
	if !cfg.Enabled() {
		return nil, errors.New("influx export: url is required")
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPRequestTimeout(10))
	return &InfluxExporter{
		client: client,
		writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}, nil
}

// Export writes one point for rec.
func (e *InfluxExporter) Export(ctx context.Context, rec AnalysisRecord) error {
	if err := e.writer.WritePoint(ctx, AnalysisPoint(rec)); err != nil {
		return fmt.Errorf("influx export %s: %w", rec.SessionID, err)
	}
	return nil
}

// Close releases the HTTP client.
func (e *InfluxExporter) Close() {
	e.client.Close()
}

// AnalysisPoint converts rec to a line protocol point. Unresolved regions
// are left out rather than written as zero.
func AnalysisPoint(rec AnalysisRecord) *write.Point {
	s := rec.State
	city, topic, investmentType := "", "", string(analysis.TypeUndetermined)
	if s.Entities != nil {
		city, topic = s.Entities.Region, s.Entities.Topic
	}
	if s.Classification != nil && s.Classification.Type != "" {
		investmentType = string(s.Classification.Type)
	}

	p := influxdb2.NewPointWithMeasurement(AnalysisMeasurement).
		AddTag("investment_type", investmentType).
		AddTag("backend", rec.Backend).
		AddField("session_id", rec.SessionID).
		AddField("duration_ms", rec.Duration.Milliseconds()).
		AddField("steps", rec.Steps).
		AddField("node_errors", rec.NodeErrors).
		AddField("insufficient_input", s.InsufficientInput != nil && *s.InsufficientInput).
		SetTime(rec.At)
	if city != "" {
		p.AddTag("city", city)
	}
	if topic != "" {
		p.AddField("topic", topic)
	}
	if s.Entities != nil && s.Entities.Amount != nil {
		p.AddField("amount_tl", *s.Entities.Amount)
	}
	if r := s.RegionResolution; r != nil {
		for name, v := range map[string]*int{"physical_region": r.Physical, "effective_region": r.Effective, "final_region": r.Final} {
			if v != nil {
				p.AddField(name, *v)
			}
		}
		p.AddField("priority_floor_applied", r.PriorityFloorApplied)
		p.AddField("zone_bonus_applied", r.ZoneBonusApplied)
	}
	return p
}
