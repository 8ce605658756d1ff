// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package nodes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/tesvik/services/incentive/analysis"
	"github.com/AleutianAI/tesvik/services/incentive/dag"
	"github.com/AleutianAI/tesvik/services/incentive/llm"
)

func runPipeline(t *testing.T, d Deps, query string, opts ...dag.ExecutorOption) (*dag.Result[analysis.State], error) {
	t.Helper()
	p, err := NewPipeline(d)
	require.NoError(t, err)
	exec, err := dag.NewExecutor(p, quietLogger(), opts...)
	require.NoError(t, err)
	return exec.Run(ctx, analysis.NewState(query))
}

func TestPipeline_AllReasoningFailsAfterExtraction(t *testing.T) {
	d := testDeps(t, scripted(map[string]string{
		NameEntityExtractor: `{"investment_topic":"otel","investment_region":"Gaziantep","investment_amount":30000000}`,
	}))

	res, err := runPipeline(t, d, "Gaziantep'te 30 milyon TL'lik otel yatırımı")
	require.NoError(t, err)
	assert.Equal(t, []string{
		NameEntityExtractor,
		NameRuleAuditor,
		NameRetrieveDocuments,
		NameDetailExtractor,
		NameTemporalResolver,
		NameTypeAnalyzer,
		NameFocusedRetriever,
		NameConditionAnalyzer,
		NamePhysicalRegion,
		NameEffectiveRegion,
		NameFinalRegion,
		NameSupportAnalyzer,
		NameReportSynthesizer,
	}, res.Path)
	assert.Empty(t, res.NodeErrors, "reasoning failures are absorbed by the nodes")

	s := res.State
	assert.Equal(t, "5510", s.Entities.SectorCode)
	assert.True(t, analysis.Flag(s.RegionallyEligible))
	assert.NotEmpty(t, s.Documents)
	assert.True(t, testToday.Equal(*s.ReferenceDate))
	assert.Nil(t, s.AcquiredRightsWarning)
	assert.Equal(t, analysis.TypeRegional, s.Classification.Type)
	assert.Equal(t, ConditionsUnavailable, s.SpecialConditions.Reasoning)
	assert.Equal(t, 3, *s.RegionResolution.Final)
	assert.Len(t, s.SupportFindings, 5)
	assert.Nil(t, s.InsufficientInput)

	require.NotNil(t, s.FinalReport)
	assert.Contains(t, s.FinalReport.SupportsSection, string(analysis.SupportTaxReduction))
	assert.Contains(t, s.FinalReport.Summary, "3. Bölge")
	assert.NotEmpty(t, s.FinalReport.LegalReferences)
}

func TestPipeline_SeededEntitiesSurviveExtraction(t *testing.T) {
	d := testDeps(t, scripted(map[string]string{
		NameEntityExtractor: `{"investment_topic":"otel","investment_region":"Van"}`,
	}))
	p, err := NewPipeline(d)
	require.NoError(t, err)
	exec, err := dag.NewExecutor(p, quietLogger())
	require.NoError(t, err)

	initial := analysis.NewState("30 milyon TL'lik otel yatırımı")
	initial.Entities = &analysis.Entities{Region: "Gaziantep", Amount: analysis.Ptr(30_000_000.0)}
	res, err := exec.Run(ctx, initial)
	require.NoError(t, err)

	e := res.State.Entities
	require.NotNil(t, e)
	assert.Equal(t, "otel", e.Topic, "unseeded field comes from extraction")
	assert.Equal(t, "Gaziantep", e.Region, "seeded field wins over extraction")
	require.NotNil(t, e.Amount)
	assert.Equal(t, 30_000_000.0, *e.Amount)
	assert.Nil(t, res.State.InsufficientInput)
	assert.Contains(t, res.Path, NameRetrieveDocuments)
	assert.Equal(t, 3, *res.State.RegionResolution.Final)
}

func TestPipeline_UnresolvedTopicSkipsFocus(t *testing.T) {
	d := testDeps(t, scripted(map[string]string{
		NameEntityExtractor: `{"investment_topic":"kripto para borsası","investment_region":"Van"}`,
	}))

	res, err := runPipeline(t, d, "Van'da kripto para borsası")
	require.NoError(t, err)
	assert.NotContains(t, res.Path, NameFocusedRetriever)
	assert.Contains(t, res.Path, NameConditionAnalyzer)

	s := res.State
	assert.Empty(t, s.Entities.SectorCode)
	assert.Equal(t, analysis.TypeGeneral, s.Classification.Type)
	assert.Equal(t, 6, *s.RegionResolution.Final)
	assert.Len(t, s.SupportFindings, 2, "general supports only")
}

func TestPipeline_InsufficientInput(t *testing.T) {
	tests := []struct {
		name    string
		client  *llm.MockClient
		missing []string
	}{
		{
			name:    "no region",
			client:  scripted(map[string]string{NameEntityExtractor: `{"investment_topic":"otel"}`}),
			missing: []string{"yatırım yeri"},
		},
		{
			name:    "extraction failed",
			client:  scripted(nil),
			missing: []string{"yatırım konusu", "yatırım yeri"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := runPipeline(t, testDeps(t, tt.client), "bir yatırım yapmak istiyorum")
			require.NoError(t, err)
			assert.Equal(t, []string{NameEntityExtractor, NameRuleAuditor, NameReportSynthesizer}, res.Path)
			assert.True(t, *res.State.InsufficientInput)
			for _, m := range tt.missing {
				assert.Contains(t, res.State.FinalReport.Summary, m)
			}
			assert.Nil(t, res.State.Classification)
			assert.Empty(t, res.State.Documents)
		})
	}
}

func TestPipeline_PriorityDirective(t *testing.T) {
	d := testDeps(t, scripted(map[string]string{
		NameEntityExtractor: `{"investment_topic":"motorlu taşıt","investment_region":"Bursa"}`,
	}))

	res, err := runPipeline(t, d, "Bursa'da motorlu taşıt fabrikası kurmak istiyoruz")
	require.NoError(t, err)

	s := res.State
	assert.Equal(t, "3410", s.Entities.SectorCode)
	assert.Equal(t, analysis.TypePriority, s.Classification.Type)
	assert.Contains(t, res.Path, NameFocusedRetriever)

	r := s.RegionResolution
	assert.Equal(t, 1, *r.Physical)
	assert.Equal(t, 5, *r.Effective)
	assert.Equal(t, 5, *r.Final)
	assert.True(t, r.PriorityFloorApplied)

	kinds := make([]analysis.SupportKind, 0, len(s.SupportFindings))
	for _, it := range s.SupportFindings {
		kinds = append(kinds, it.Kind)
	}
	assert.Contains(t, kinds, analysis.SupportInterest)
	assert.Len(t, kinds, 6)
}

func TestPipeline_PastReferenceDate(t *testing.T) {
	d := testDeps(t, scripted(map[string]string{
		NameEntityExtractor: `{"investment_topic":"otel","investment_region":"Gaziantep"}`,
		NameDetailExtractor: `{"reference_date":"2014-05-10","reasoning":"Mayıs 2014"}`,
	}))

	res, err := runPipeline(t, d, "2014 Mayıs'ta Gaziantep'te otel yatırımı")
	require.NoError(t, err)

	s := res.State
	require.NotNil(t, s.AcquiredRightsWarning)
	assert.Contains(t, *s.AcquiredRightsWarning, "2014")
	assert.Equal(t, s.AcquiredRightsWarning, s.FinalReport.AcquiredRightsWarning)
	assert.Contains(t, *s.TemporalDirective, "EK3_ESIK_GUNCELLEMESI")
	assert.NotContains(t, *s.TemporalDirective, "ONCELIKLI_YATIRIM_EGITIM_GENISLETILMESI")
}

func TestPipeline_StepCeiling(t *testing.T) {
	d := testDeps(t, scripted(map[string]string{
		NameEntityExtractor: `{"investment_topic":"otel","investment_region":"Gaziantep"}`,
	}))

	res, err := runPipeline(t, d, "q", dag.WithMaxSteps(4))
	require.ErrorIs(t, err, dag.ErrPipelineExhausted)

	var exhausted *dag.PipelineExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, NameTemporalResolver, exhausted.Node)
	assert.Len(t, res.Path, 4)
	assert.Nil(t, res.State.FinalReport)
}

func TestPipeline_OfflineWithSeededEntities(t *testing.T) {
	d := testDeps(t, llm.Offline{})
	p, err := NewPipeline(d)
	require.NoError(t, err)
	exec, err := dag.NewExecutor(p, quietLogger())
	require.NoError(t, err)

	initial := stateWith("Gaziantep'te otel", "otel", "Gaziantep", 30_000_000)
	res, err := exec.Run(ctx, initial)
	require.NoError(t, err)

	s := res.State
	assert.Equal(t, "5510", s.Entities.SectorCode, "seeded entities survive a failed extraction")
	assert.Equal(t, analysis.TypeRegional, s.Classification.Type)
	assert.Len(t, s.SupportFindings, 5)
	require.NotNil(t, s.FinalReport)
	assert.Equal(t, 1.0, fallbacks(d, NameReportSynthesizer, ReasonOffline))
}
