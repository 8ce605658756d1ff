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
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/tesvik/pkg/ux"
	"github.com/AleutianAI/tesvik/services/incentive"
	"github.com/AleutianAI/tesvik/services/incentive/analysis"
	"github.com/AleutianAI/tesvik/services/incentive/config"
	"github.com/AleutianAI/tesvik/services/incentive/dag"
)

func (a *app) analyzeCmd() *cobra.Command {
	var (
		offline bool
		topic   string
		region  string
		amount  float64
	)
	cmd := &cobra.Command{
		Use:   "analyze [question]",
		Short: "Run the full analysis pipeline on a question",
		Long: `Run the full analysis pipeline and print the report.

With --offline no reasoning backend is called; pass --topic, --region and
--amount so the rule-based nodes have something to work with.`,
		Aliases: []string{"a"},
		Args:    checkArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if offline {
				a.cfg.Reasoning.Backend = config.BackendOffline
			}
			req := incentive.AnalyzeRequest{Query: strings.Join(args, " ")}
			if topic != "" || region != "" || amount > 0 {
				req.Entities = &analysis.Entities{Topic: topic, Region: region}
				if amount > 0 {
					req.Entities.Amount = &amount
				}
			}

			spin := ux.NewSpinner(a.status, "analiz ediliyor")
			svc, err := a.service(incentive.WithObserver(spin))
			if err != nil {
				return err
			}
			defer svc.Close()

			spin.Start()
			resp, err := svc.Analyze(cmd.Context(), req)
			spin.Stop()

			if resp == nil {
				return err
			}
			if a.jsonOut {
				if werr := writeJSON(a.stdout, resp); werr != nil {
					return werr
				}
			} else {
				a.printAnalysis(resp)
			}
			if err != nil {
				var exhausted *dag.PipelineExhaustedError
				if errors.As(err, &exhausted) {
					a.status.Warning(err.Error())
					return errPartial
				}
				return err
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.BoolVar(&offline, "offline", false, "do not call the reasoning backend")
	f.StringVar(&topic, "topic", "", "investment topic, skips extraction of the topic")
	f.StringVar(&region, "region", "", "investment city")
	f.Float64Var(&amount, "amount", 0, "fixed investment amount in TL")
	return cmd
}

func (a *app) printAnalysis(resp *incentive.AnalyzeResponse) {
	p := a.out
	st := resp.State

	if r := resp.Report; r != nil {
		p.RenderReport(reportView(r))
	} else {
		p.Warning("rapor oluşturulamadı")
	}

	p.Heading("Analiz Ayrıntıları")
	if e := st.Entities; e != nil {
		p.Field("Yatırım konusu", orDash(e.Topic))
		p.Field("İl", orDash(e.Region))
		if e.Amount != nil {
			p.Field("Tutar", formatTL(*e.Amount))
		}
	}
	if c := st.Classification; c != nil {
		p.Field("Sınıflandırma", string(c.Type))
	}
	if rr := st.RegionResolution; rr != nil {
		p.Field("Bölge", regionLine(*rr))
	}
	p.Field("Bölgesel uygunluk", yesNo(st.RegionallyEligible))
	p.Field("Büyük ölçekli", yesNo(st.LargeScale))
	p.Field("Yasaklı yatırım", yesNo(st.Prohibited))
	if analysis.Flag(st.InsufficientInput) {
		p.Warning("konu veya il belirlenemedi; belgeye dayalı analiz atlandı")
	}
	if len(resp.Redactions) > 0 {
		p.Warning("sorudan kişisel veri çıkarıldı: " + strings.Join(resp.Redactions, ", "))
	}
	for _, node := range slices.Sorted(maps.Keys(resp.NodeErrors)) {
		p.Warning(fmt.Sprintf("%s: %s", node, resp.NodeErrors[node]))
	}
	p.Muted(fmt.Sprintf("oturum %s · %s · %d adım", resp.SessionID, resp.Duration.Round(time.Millisecond), len(resp.Path)))
	if !resp.Saved {
		p.Muted("analiz kaydedilmedi")
	}
}

func reportView(r *analysis.FinalReport) ux.Report {
	view := ux.Report{
		Title:   r.Title,
		Summary: r.Summary,
		Sections: []ux.Section{
			{Heading: "Gerekçe", Body: r.Reasoning},
			{Heading: "Destek Unsurları", Body: r.SupportsSection},
			{Heading: "Özel Şartlar", Body: r.ConditionsSection},
		},
		References: r.LegalReferences,
	}
	if r.AcquiredRightsWarning != nil {
		view.Warning = *r.AcquiredRightsWarning
	}
	return view
}
