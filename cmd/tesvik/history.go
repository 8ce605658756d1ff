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
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/tesvik/pkg/extensions"
	"github.com/AleutianAI/tesvik/services/incentive"
	"github.com/AleutianAI/tesvik/services/incentive/config"
	"github.com/AleutianAI/tesvik/services/incentive/storage"
)

// historyService opens the run store without a reasoning backend.
func (a *app) historyService() (*incentive.Service, error) {
	cfg := a.cfg
	cfg.Reasoning.Backend = config.BackendOffline
	cfg.Cache.Enabled = false
	cfg.Retrieval.Backend = config.RetrievalMemory
	return a.newService(cfg, a.log.Slog())
}

func (a *app) listCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List stored analyses, newest first",
		Aliases: []string{"ls"},
		Args:    checkArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 0 {
				return usagef("--limit must not be negative")
			}
			svc, err := a.historyService()
			if err != nil {
				return err
			}
			defer svc.Close()

			runs, err := svc.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.stdout, runs)
			}
			if len(runs) == 0 {
				a.out.Muted("kayıtlı analiz yok")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					r.SessionID,
					r.CreatedAt.Local().Format(time.DateTime),
					orDash(r.Type),
					truncate(r.Query, 60),
				})
			}
			a.out.Table([]string{"Oturum", "Tarih", "Sınıflandırma", "Soru"}, rows)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of analyses (0 for all)")
	return cmd
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a stored analysis",
		Args:  checkArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.historyService()
			if err != nil {
				return err
			}
			defer svc.Close()

			rec, err := svc.Run(cmd.Context(), args[0])
			switch {
			case errors.Is(err, storage.ErrInvalidSessionID):
				return usageError{err}
			case errors.Is(err, incentive.ErrRunNotFound):
				return fmt.Errorf("no stored analysis %q", args[0])
			case err != nil:
				return err
			}
			if a.jsonOut {
				return writeJSON(a.stdout, rec)
			}
			a.out.Muted(rec.Query)
			a.printAnalysis(&incentive.AnalyzeResponse{
				SessionID:  rec.SessionID,
				Report:     rec.State.FinalReport,
				State:      rec.State,
				Path:       rec.Path,
				Duration:   rec.Duration,
				NodeErrors: rec.NodeErrors,
				Saved:      true,
			})
			return nil
		},
	}
}

func (a *app) eventsCmd() *cobra.Command {
	var (
		filter extensions.AuditFilter
		since  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print the API audit trail, newest first",
		Args:  checkArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if filter.Limit < 0 || since < 0 {
				return usagef("--limit and --since must not be negative")
			}
			if since > 0 {
				filter.StartTime = time.Now().Add(-since)
			}
			svc, err := a.historyService()
			if err != nil {
				return err
			}
			defer svc.Close()

			events, err := svc.Events(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.stdout, events)
			}
			if len(events) == 0 {
				a.out.Muted("kayıtlı olay yok")
				return nil
			}
			rows := make([][]string, 0, len(events))
			for _, e := range events {
				rows = append(rows, []string{
					e.Timestamp.Local().Format(time.DateTime),
					orDash(e.UserID),
					e.EventType,
					orDash(e.ResourceID),
					e.Outcome,
				})
			}
			a.out.Table([]string{"Zaman", "Kullanıcı", "Olay", "Kaynak", "Sonuç"}, rows)
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVarP(&filter.Limit, "limit", "n", 50, "maximum number of events (0 for all)")
	f.StringVar(&filter.UserID, "user", "", "only events of this user")
	f.StringSliceVar(&filter.EventTypes, "type", nil, "only these event types")
	f.DurationVar(&since, "since", 0, "only events newer than this")
	return cmd
}

// truncate shortens s to n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
