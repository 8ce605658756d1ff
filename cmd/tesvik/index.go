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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/tesvik/services/incentive"
	"github.com/AleutianAI/tesvik/services/incentive/config"
)

func (a *app) indexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index [corpus]",
		Short: "Chunk a decision corpus into Weaviate (default: the embedded decision)",
		Args:  checkArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			cfg.Reasoning.Backend = config.BackendOffline
			cfg.Cache.Enabled = false
			cfg.Storage.InMemory = true
			svc, err := a.newService(cfg, a.log.Slog())
			if err != nil {
				return err
			}
			defer svc.Close()

			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			n, err := svc.Index(cmd.Context(), path)
			if errors.Is(err, incentive.ErrIndexingUnavailable) {
				return usagef("indexing needs retrieval.backend=%s", config.RetrievalWeaviate)
			}
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.stdout, map[string]int{"indexed": n})
			}
			a.out.Success(fmt.Sprintf("%d parça indekslendi", n))
			return nil
		},
	}
}
