// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command instgraph loads a quantifier instantiation fact store, applies a
// filter chain and disabler set, and renders or inspects the visible graph.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/instgraph/pkg/logging"
	"github.com/AleutianAI/instgraph/services/instgraph/config"
	"github.com/AleutianAI/instgraph/services/instgraph/telemetry"
)

// app holds the root flags and the state set up before each command.
type app struct {
	configPath     string
	logFormat      string
	logLevel       string
	logDir         string
	metricsOut     string
	chainStorePath string

	cfg      config.Config
	logger   *logging.Logger
	shutdown func(context.Context) error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "instgraph",
		Short: "Explore quantifier instantiation graphs",
		Long: `instgraph builds the instantiation graph of an SMT solver run from a
fact store dump (.json, .yaml, optionally .zst compressed), narrows it with a
filter chain, collapses disabled nodes, and renders what is left.

Filter chains are written as expressions:
  ignore_theory_solving; max_insts(125)
  show_neighbours(12, in); visit_subtree(12, true)
  show_named_quantifier("array_ext")`,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default: $"+config.EnvConfigPath+" or built-in)")
	pf.StringVar(&a.logFormat, "log-format", "auto", "log format: text, json, auto (text on a terminal, json otherwise)")
	pf.StringVar(&a.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	pf.StringVar(&a.logDir, "log-dir", "", "also append JSON logs to a per-run file in this directory")
	pf.StringVar(&a.metricsOut, "metrics-out", "", "write Prometheus metrics to this file on exit (- for stderr)")
	pf.StringVar(&a.chainStorePath, "chain-store", "", "named chain database directory (overrides config)")

	root.AddCommand(
		a.newRenderCmd(),
		a.newInfoCmd(),
		a.newLongestPathCmd(),
		a.newChainCmd(),
		a.newStatsCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) (err error) {
	if err := a.setupLogging(cmd); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			a.closeLogger()
		}
	}()

	cfg, err := config.Load(cmd.Context(), a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceName = cfg.Telemetry.ServiceName
	tcfg.TraceExporter = cfg.Telemetry.TraceExporter
	tcfg.MetricExporter = cfg.Telemetry.MetricExporter
	tcfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	tcfg.Output = cmd.ErrOrStderr()

	shutdown, err := telemetry.Init(cmd.Context(), tcfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.shutdown = shutdown
	return nil
}

func (a *app) teardown(cmd *cobra.Command, _ []string) error {
	if a.shutdown != nil {
		if err := a.shutdown(context.WithoutCancel(cmd.Context())); err != nil {
			slog.Warn("Telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}
	defer a.closeLogger()

	switch a.metricsOut {
	case "":
		return nil
	case "-":
		return telemetry.WriteMetrics(cmd.ErrOrStderr())
	default:
		f, err := os.Create(a.metricsOut)
		if err != nil {
			return fmt.Errorf("create metrics file: %w", err)
		}
		defer f.Close()
		return telemetry.WriteMetrics(f)
	}
}

func (a *app) setupLogging(cmd *cobra.Command) error {
	level, err := logging.ParseLevel(a.logLevel)
	if err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	format, err := logging.ParseFormat(a.logFormat)
	if err != nil {
		return fmt.Errorf("--log-format: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Level:   level,
		Format:  format,
		Writer:  cmd.ErrOrStderr(),
		LogDir:  a.logDir,
		Service: "instgraph",
	})
	if err != nil {
		return err
	}
	a.logger = logger
	slog.SetDefault(logger.Slog())
	slog.Info("Command started", slog.String("command", cmd.CommandPath()))
	return nil
}

func (a *app) closeLogger() {
	if a.logger == nil {
		return
	}
	if err := a.logger.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "instgraph: %v\n", err)
	}
	a.logger = nil
}
