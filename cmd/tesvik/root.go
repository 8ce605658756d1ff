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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/tesvik/pkg/logging"
	"github.com/AleutianAI/tesvik/pkg/ux"
	"github.com/AleutianAI/tesvik/services/incentive"
	"github.com/AleutianAI/tesvik/services/incentive/config"
)

// Exit codes.
const (
	exitOK      = 0
	exitError   = 1
	exitUsage   = 2
	exitPartial = 3
)

// errPartial marks a command that printed a result but did not finish
// cleanly, such as an exhausted pipeline.
var errPartial = errors.New("analysis incomplete")

// app carries state shared by every subcommand.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string
	output     string
	jsonOut    bool

	cfg    config.Config
	log    *logging.Logger
	out    *ux.Printer
	status *ux.Printer

	// newService is replaced in tests.
	newService func(cfg config.Config, logger *slog.Logger, opts ...incentive.Option) (*incentive.Service, error)
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:     stdout,
		stderr:     stderr,
		newService: incentive.New,
	}
}

func execute(args []string, stdout, stderr io.Writer) int {
	return newApp(stdout, stderr).run(args)
}

// run executes one command line and maps the outcome to an exit code.
func (a *app) run(args []string) int {
	stderr := a.stderr
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(context.Background())
	if a.log != nil {
		_ = a.log.Close()
	}
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errPartial):
		return exitPartial
	case isUsageError(err):
		fmt.Fprintln(stderr, "error:", err)
		return exitUsage
	default:
		if a.status != nil {
			a.status.Error(err.Error())
		} else {
			fmt.Fprintln(stderr, "error:", err)
		}
		return exitError
	}
}

type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

// checkArgs turns positional argument errors into usage errors.
func checkArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

func isUsageError(err error) bool {
	var u usageError
	return errors.As(err, &u)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tesvik",
		Short: "Analyze Turkish investment incentive eligibility",
		Long: `tesvik answers investor questions about the Turkish investment incentive
system: it extracts the investment's topic, region and amount, audits them
against the decision annexes, resolves the rules in force on the relevant
date and writes a cited report.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	f := root.PersistentFlags()
	f.StringVarP(&a.configPath, "config", "c", "", "config file (YAML or JSON); defaults to $"+config.PathEnv)
	f.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.StringVar(&a.output, "output", "", "output style: full, minimal, machine (default: detect)")
	f.BoolVar(&a.jsonOut, "json", false, "print results as JSON")

	root.AddCommand(
		a.analyzeCmd(),
		a.auditCmd(),
		a.regionCmd(),
		a.rulesCmd(),
		a.directivesCmd(),
		a.listCmd(),
		a.showCmd(),
		a.eventsCmd(),
		a.backupCmd(),
		a.restoreCmd(),
		a.indexCmd(),
		a.serveCmd(),
	)
	return root
}

// setup loads configuration and builds the logger and printers.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return usageError{err}
	}
	a.cfg = cfg
	a.log = logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: cfg.Telemetry.ServiceName,
		JSON:    cfg.Logging.JSON,
		Output:  a.stderr,
	})

	style := ux.PersonalityMachine
	if a.output != "" {
		style = ux.ParsePersonalityLevel(a.output)
	} else if f, ok := a.stdout.(*os.File); ok {
		style = ux.DetectPersonality(f)
	}
	a.out = ux.NewPrinter(a.stdout, style, 0)
	a.status = ux.NewPrinter(a.stderr, style, 0)
	return nil
}

func (a *app) service(opts ...incentive.Option) (*incentive.Service, error) {
	return a.newService(a.cfg, a.log.Slog(), opts...)
}
