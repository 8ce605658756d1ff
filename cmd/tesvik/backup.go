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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/tesvik/services/incentive/backup"
)

func (a *app) backupCmd() *cobra.Command {
	var opts backup.Options
	cmd := &cobra.Command{
		Use:   "backup <file | gs://bucket/object>",
		Short: "Snapshot the run history, audit trail and cache",
		Args:  checkArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := a.backupTarget(cmd, args[0], opts)
			if err != nil {
				return err
			}
			defer target.Close()

			svc, err := a.historyService()
			if err != nil {
				return err
			}
			defer svc.Close()

			version, err := svc.Backup(cmd.Context(), target)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.stdout, map[string]any{"target": target.String(), "version": version})
			}
			a.out.Success("yedek alındı: " + target.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.CredentialsFile, "credentials", "", "service account key for gs:// targets")
	return cmd
}

func (a *app) restoreCmd() *cobra.Command {
	var opts backup.Options
	cmd := &cobra.Command{
		Use:   "restore <file | gs://bucket/object>",
		Short: "Load a snapshot written by backup",
		Args:  checkArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := a.backupTarget(cmd, args[0], opts)
			if err != nil {
				return err
			}
			defer target.Close()

			svc, err := a.historyService()
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.Restore(cmd.Context(), target); err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.stdout, map[string]any{"target": target.String(), "restored": true})
			}
			a.out.Success("yedek geri yüklendi: " + target.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.CredentialsFile, "credentials", "", "service account key for gs:// targets")
	return cmd
}

func (a *app) backupTarget(cmd *cobra.Command, location string, opts backup.Options) (backup.Target, error) {
	target, err := backup.Parse(cmd.Context(), location, opts)
	if errors.Is(err, backup.ErrInvalidLocation) {
		return nil, usageError{err}
	}
	return target, err
}
