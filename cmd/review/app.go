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

	"github.com/AleutianAI/AleutianReview/cmd/review/config"
	"github.com/AleutianAI/AleutianReview/services/review"
	"github.com/AleutianAI/AleutianReview/services/review/classifier"
	"github.com/AleutianAI/AleutianReview/services/review/lint"
	"github.com/AleutianAI/AleutianReview/services/review/observability"
	"github.com/AleutianAI/AleutianReview/services/review/pipeline"
	"github.com/AleutianAI/AleutianReview/services/review/security"
	"github.com/AleutianAI/AleutianReview/services/review/syntax"
)

// app holds the collaborators built from one config.
type app struct {
	pipeline   *pipeline.Pipeline
	tips       *lint.TipCatalog
	checker    *syntax.Checker
	linter     *lint.LintRunner
	scanner    *security.Scanner
	classifier classifier.Classifier

	compilers map[string]bool
	linters   map[string]bool
	scanners  map[string]bool
}

// buildApp wires the pipeline from cfg. Compiler, linter and scanner
// availability is probed once here.
func buildApp(cfg config.ReviewConfig, metrics *observability.ReviewMetrics) (*app, error) {
	tips, err := lint.NewTipCatalog(cfg.Lint.Tips())
	if err != nil {
		return nil, err
	}

	checker := syntax.NewChecker(syntax.WithMaxBytes(cfg.Server.MaxCodeBytes))
	compilers := checker.DetectAvailableCompilers()

	registry := lint.NewConfigRegistry()
	enabled := make(map[string]bool, len(cfg.Lint.PythonLinters))
	for _, name := range cfg.Lint.PythonLinters {
		enabled[name] = true
	}
	for _, lc := range registry.ForLanguage(pipeline.LangPython) {
		if !enabled[lc.Name] {
			registry.Remove(pipeline.LangPython, lc.Name)
		}
	}
	linter := lint.NewLintRunner(lint.WithConfigs(registry))
	linters := linter.DetectAvailableLinters()

	var scanOpts []security.Option
	if !cfg.Security.ExternalTools {
		scanOpts = append(scanOpts, security.WithoutTools())
	}
	if !cfg.Security.BuiltinRules {
		scanOpts = append(scanOpts, security.WithRules(nil))
	}
	scanner := security.NewScanner(scanOpts...)
	scanners := scanner.DetectAvailableTools()

	clf, err := classifier.New(cfg.Classifier.ClassifierSettings())
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}
	if clf == nil {
		slog.Warn("No classifier configured; ML check will be skipped")
	} else {
		slog.Info("Classifier configured", "backend", clf.Name())
	}

	opts := []pipeline.Option{
		pipeline.WithTimeouts(cfg.Checks.Timeouts()),
		pipeline.WithTips(tips),
	}
	if metrics != nil {
		opts = append(opts, pipeline.WithMetrics(metrics))
	}

	a := &app{
		tips:       tips,
		checker:    checker,
		linter:     linter,
		scanner:    scanner,
		classifier: clf,
		compilers:  compilers,
		linters:    linters,
		scanners:   scanners,
	}
	a.pipeline = pipeline.New(checker, linter, scanner, clf, opts...)
	return a, nil
}

// readiness reports the collaborator matrix for GET /v1/review/ready.
func (a *app) readiness() review.ReadyResponse {
	resp := review.ReadyResponse{
		Syntax:    a.checker.Languages(),
		Compilers: a.compilers,
		Linters:   a.linters,
		Scanners:  a.scanners,
	}
	if a.classifier != nil {
		resp.Classifier = a.classifier.Name()
	}
	resp.Ready = resp.Usable()
	return resp
}

// reloadTips applies the lint section of a reloaded config.
func (a *app) reloadTips(cfg config.ReviewConfig) {
	if err := a.tips.Replace(cfg.Lint.Tips()); err != nil {
		slog.Warn("Tip catalog reload rejected", "error", err)
		return
	}
	slog.Info("Tip catalog reloaded", "tips", a.tips.Len())
}
