// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command scriptfinder serves and queries the script catalog.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/scriptfinder/services/scriptfinder/config"
	"github.com/AleutianAI/scriptfinder/services/scriptfinder/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// Persistent flag values.
var (
	configPath  string
	catalogPath string
	logLevel    string
	jsonLogs    bool
	traceStdout bool
)

// appConfig is the effective configuration, loaded before any subcommand runs.
var appConfig *config.Config

// shutdownTracing flushes the tracer provider installed for this run.
var shutdownTracing telemetry.ShutdownFunc

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "scriptfinder",
		Short:         "Look up game scripts in a local catalog",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return teardown(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "YAML file applied over the built-in defaults")
	flags.StringVar(&catalogPath, "catalog", "", "catalog file (.json, .yaml, .toml); overrides config")
	flags.StringVar(&logLevel, "log-level", "", "debug, info, warn or error; overrides config")
	flags.BoolVar(&jsonLogs, "json-logs", false, "emit logs as JSON")
	flags.BoolVar(&traceStdout, "trace-stdout", false, "print spans to stderr")

	root.AddCommand(
		newServeCmd(),
		newFindCmd(),
		newSearchCmd(),
		newRequestCmd(),
		newCatalogCmd(),
		newCacheCmd(),
	)
	return root
}

func setup(cmd *cobra.Command) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("catalog") {
		cfg.Catalog.Path = catalogPath
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	appConfig = cfg

	slog.SetDefault(telemetry.NewLogger(cmd.ErrOrStderr(), cfg.SlogLevel(), jsonLogs))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	shutdown, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName:  "scriptfinder",
		Version:      version,
		Stdout:       traceStdout,
		StdoutWriter: cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	shutdownTracing = shutdown
	return nil
}

func teardown(ctx context.Context) error {
	if shutdownTracing == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := shutdownTracing(ctx)
	shutdownTracing = nil
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("flushing traces: %w", err)
	}
	return nil
}
