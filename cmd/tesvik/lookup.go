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
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/tesvik/services/incentive"
	"github.com/AleutianAI/tesvik/services/incentive/analysis"
	"github.com/AleutianAI/tesvik/services/incentive/config"
)

// lookupService builds a service for table lookups. Lookups never call the
// reasoning backend or touch the run history.
func (a *app) lookupService() (*incentive.Service, error) {
	cfg := a.cfg
	cfg.Reasoning.Backend = config.BackendOffline
	cfg.Cache.Enabled = false
	cfg.Storage.InMemory = true
	cfg.Retrieval.Backend = config.RetrievalMemory
	return a.newService(cfg, a.log.Slog())
}

func (a *app) auditCmd() *cobra.Command {
	var (
		region string
		amount float64
	)
	cmd := &cobra.Command{
		Use:   "audit <topic>",
		Short: "Check a topic against the eligibility, threshold and prohibition annexes",
		Args:  checkArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.lookupService()
			if err != nil {
				return err
			}
			defer svc.Close()

			resp, err := svc.Audit(incentive.AuditRequest{
				Topic:  strings.Join(args, " "),
				Region: region,
				Amount: amount,
			})
			if errors.Is(err, incentive.ErrMissingTopic) {
				return usageError{err}
			}
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.stdout, resp)
			}
			p := a.out
			p.Title("Ek Tablo Denetimi")
			p.Field("Konu", resp.Topic)
			p.Field("Sektör kodu", orDash(resp.SectorCode))
			if resp.SectorName != "" {
				p.Field("Sektör", resp.SectorName)
			}
			p.Field("İl", orDash(resp.Region))
			p.Field("Tutar", formatTL(resp.Amount))
			p.Field("Bölgesel uygunluk", yesNo(&resp.RegionallyEligible))
			p.Field("Büyük ölçekli", yesNo(&resp.LargeScale))
			p.Field("Yasaklı yatırım", yesNo(&resp.Prohibited))
			return nil
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "investment city")
	cmd.Flags().Float64Var(&amount, "amount", 0, "fixed investment amount in TL")
	return cmd
}

func (a *app) regionCmd() *cobra.Command {
	var (
		investmentType string
		query          string
	)
	cmd := &cobra.Command{
		Use:   "region <city>",
		Short: "Resolve a city's physical, effective and final incentive region",
		Args:  checkArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.lookupService()
			if err != nil {
				return err
			}
			defer svc.Close()

			resp, err := svc.Region(incentive.RegionRequest{
				City:  args[0],
				Type:  analysis.InvestmentType(investmentType),
				Query: query,
			})
			if errors.Is(err, incentive.ErrInvalidType) || errors.Is(err, incentive.ErrUnknownCity) {
				return usageError{err}
			}
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.stdout, resp)
			}
			a.out.Title("Bölge Çözümlemesi")
			a.out.Field("Sınıflandırma", string(resp.Type))
			a.out.Field("Bölge", regionLine(resp.RegionResolution))
			return nil
		},
	}
	cmd.Flags().StringVar(&investmentType, "type", "", `investment classification, e.g. "Öncelikli Yatırım"`)
	cmd.Flags().StringVar(&query, "query", "", "question text scanned for OSB/industrial zone mentions")
	return cmd
}

func (a *app) rulesCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Show the region and support tables in force on a date",
		Args:  checkArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.lookupService()
			if err != nil {
				return err
			}
			defer svc.Close()

			resp, err := svc.Rules(date)
			if errors.Is(err, incentive.ErrInvalidDate) {
				return usageError{err}
			}
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.stdout, resp)
			}
			a.printRules(resp)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "reference date YYYY-MM-DD (default: today)")
	return cmd
}

func (a *app) printRules(resp incentive.RulesResponse) {
	p := a.out
	p.Title(fmt.Sprintf("Yürürlükteki Kurallar (%s)", resp.Date))
	if len(resp.Rules.Regions) == 0 && len(resp.Rules.Supports) == 0 {
		p.Warning("bu tarihte yürürlükte kural sürümü yok")
	}

	if len(resp.Rules.Regions) > 0 {
		p.Heading("İl Bölgeleri")
		rows := make([][]string, 0, len(resp.Rules.Regions))
		for _, city := range slices.Sorted(maps.Keys(resp.Rules.Regions)) {
			rows = append(rows, []string{city, strconv.Itoa(resp.Rules.Regions[city])})
		}
		p.Table([]string{"İl", "Bölge"}, rows)
	}

	for _, region := range slices.Sorted(maps.Keys(resp.Rules.Supports)) {
		p.Heading(fmt.Sprintf("%d. Bölge Destekleri", region))
		var rows [][]string
		supports := resp.Rules.Supports[region]
		for _, name := range slices.Sorted(maps.Keys(supports)) {
			for _, key := range slices.Sorted(maps.Keys(supports[name])) {
				rows = append(rows, []string{name, key, supports[name][key]})
			}
		}
		p.Table([]string{"Destek", "Özellik", "Değer"}, rows)
	}

	if len(resp.GeneralSupports) > 0 {
		p.Heading("Genel Teşvik Destekleri")
		rows := make([][]string, 0, len(resp.GeneralSupports))
		for _, name := range slices.Sorted(maps.Keys(resp.GeneralSupports)) {
			rows = append(rows, []string{name, resp.GeneralSupports[name]})
		}
		p.Table([]string{"Destek", "Açıklama"}, rows)
	}
}

func (a *app) directivesCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "directives",
		Short: "List the rule annotations in force on a date",
		Args:  checkArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.lookupService()
			if err != nil {
				return err
			}
			defer svc.Close()

			resp, err := svc.Directives(date)
			if errors.Is(err, incentive.ErrInvalidDate) {
				return usageError{err}
			}
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.stdout, resp)
			}
			p := a.out
			p.Title(fmt.Sprintf("Yürürlükteki Düzenlemeler (%s)", resp.Date))
			if len(resp.Entries) == 0 {
				p.Muted("bu tarihte yürürlükte düzenleme yok")
				return nil
			}
			rows := make([][]string, 0, len(resp.Entries))
			for _, e := range resp.Entries {
				rows = append(rows, []string{e.Date, orDash(e.ChangeID), orDash(e.LegalSource), e.Directive})
			}
			p.Table([]string{"Tarih", "Değişiklik", "Kaynak", "Düzenleme"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "reference date YYYY-MM-DD (default: today)")
	return cmd
}
