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
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianReview/cmd/review/config"
	"github.com/AleutianAI/AleutianReview/pkg/logging"
	"github.com/AleutianAI/AleutianReview/services/review"
)

// --- Global Command Variables ---
var (
	configPath   string
	debugLogging bool
	servePort    int
	checkLang    string
	checkJSON    bool

	rootCmd = &cobra.Command{
		Use:           "review",
		Short:         "Static review of code snippets: syntax, lint, security and ML risk",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the review HTTP service",
		Args:  cobra.NoArgs,
		RunE:  runServe, // Defined in serve.go
	}

	checkCmd = &cobra.Command{
		Use:   "check <file|->",
		Short: "Review a file (or stdin) locally and print the report",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheck, // Defined in check.go
	}

	initCmd = &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default config file (defaults to ~/.aleutian/review.yaml)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runInit,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "review", review.ServiceVersion)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to review.yaml (default ~/.aleutian/review.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugLogging, "debug", false, "Enable debug logging")

	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides config)")

	checkCmd.Flags().StringVar(&checkLang, "language", "", "Language hint: python, javascript, typescript or go")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Print the report as JSON")

	rootCmd.AddCommand(serveCmd, checkCmd, initCmd, versionCmd)
}

// loadConfig loads the config and installs the process logger.
func loadConfig(service string, quiet bool) (config.ReviewConfig, *logging.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, err
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return cfg, nil, err
	}
	if debugLogging {
		level = logging.LevelDebug
	}

	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: service,
		JSON:    cfg.Logging.JSON,
		Quiet:   quiet,
	})
	logger.SetDefault()
	slog.Debug("Configuration loaded", "path", configPath)
	return cfg, logger, nil
}

func runInit(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	} else {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := config.WriteDefault(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote default config to %s\n", path)
	return nil
}
