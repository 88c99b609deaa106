// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package security

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("aleutian.review.security")

// extensions for scratch files, keyed by language.
var extensions = map[string]string{
	"python":     ".py",
	"go":         ".go",
	"javascript": ".js",
	"typescript": ".ts",
}

// =============================================================================
// SCANNER
// =============================================================================

// Scanner runs external security tools and built-in rules.
//
// Description:
//
//	Each language has at most one external tool. Built-in rules always
//	run. When the tool is missing the scan degrades to built-in rules
//	only and says so in ScanResult.Coverage.
//
// Thread Safety: Safe for concurrent use.
type Scanner struct {
	tools     map[string]*ToolConfig
	rules     *RuleSet
	available map[string]bool
	mu        sync.RWMutex
	tempDir   string
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithTool registers or replaces the external tool for cfg.Language.
func WithTool(cfg ToolConfig) Option {
	return func(s *Scanner) {
		c := cfg
		c.Args = append([]string(nil), cfg.Args...)
		s.tools[cfg.Language] = &c
	}
}

// WithoutTools removes every external tool, leaving built-in rules only.
func WithoutTools() Option {
	return func(s *Scanner) {
		s.tools = make(map[string]*ToolConfig)
	}
}

// WithRules replaces the built-in rule set. A nil set disables built-in rules.
func WithRules(rules *RuleSet) Option {
	return func(s *Scanner) {
		s.rules = rules
	}
}

// WithTempDir sets the parent directory for scratch directories.
func WithTempDir(dir string) Option {
	return func(s *Scanner) {
		s.tempDir = dir
	}
}

// NewScanner creates a scanner with bandit, gosec, and the default rules.
// Call DetectAvailableTools before scanning.
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{
		tools:     make(map[string]*ToolConfig),
		rules:     DefaultRuleSet(),
		available: make(map[string]bool),
	}
	WithTool(DefaultBanditConfig)(s)
	WithTool(DefaultGosecConfig)(s)

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DetectAvailableTools probes PATH for each configured tool.
//
// Outputs:
//
//	map[string]bool - Map of tool name to availability
func (s *Scanner) DetectAvailableTools() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[string]bool)
	for lang, tool := range s.tools {
		_, err := exec.LookPath(tool.Command)
		ok := err == nil
		s.available[lang] = ok
		result[tool.Name] = ok

		if ok {
			slog.Info("Security scanner available",
				slog.String("language", lang),
				slog.String("scanner", tool.Name),
			)
		} else {
			slog.Warn("Security scanner not installed",
				slog.String("language", lang),
				slog.String("scanner", tool.Name),
			)
		}
	}
	return result
}

// ToolName returns the external tool for a language, or "" if none.
func (s *Scanner) ToolName(language string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tool, ok := s.tools[language]; ok {
		return tool.Name
	}
	return ""
}

// ToolAvailable reports whether the language's external tool is installed.
func (s *Scanner) ToolAvailable(language string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.available[language]
}

// Scan analyzes code for vulnerabilities.
//
// Description:
//
//	Runs the built-in rules, then the external tool if it is installed.
//	A built-in finding is dropped when the external tool reported the
//	same CWE, or a rule the built-in Covers, on the same line. Findings
//	are ordered by line.
//
// Inputs:
//
//	ctx - Context for cancellation and timeout
//	code - The snippet
//	language - The snippet language
//
// Outputs:
//
//	*ScanResult - The scan result
//	error - Non-nil if the external tool failed
//
// Thread Safety: Safe for concurrent use.
func (s *Scanner) Scan(ctx context.Context, code, language string) (*ScanResult, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: ctx must not be nil", ErrInvalidInput)
	}

	ctx, span := tracer.Start(ctx, "Scanner.Scan",
		trace.WithAttributes(attribute.String("security.language", language)),
	)
	defer span.End()
	start := time.Now()

	result := &ScanResult{Language: language, Coverage: CoverageBuiltin}

	var builtin []Finding
	if s.rules != nil {
		builtin = s.rules.Scan(code, language)
	}

	s.mu.RLock()
	tool := s.tools[language]
	available := s.available[language]
	s.mu.RUnlock()

	var external []Finding
	if tool != nil {
		result.Tool = tool.Name
		if !available {
			result.Coverage = CoverageDegraded
		} else {
			found, err := s.runTool(ctx, tool, code)
			if err != nil {
				span.RecordError(err)
				return nil, err
			}
			external = found
			result.Coverage = CoverageFull
		}
	}

	result.Findings = mergeFindings(external, builtin)
	result.Duration = time.Since(start)

	span.SetAttributes(
		attribute.String("security.coverage", string(result.Coverage)),
		attribute.Int("security.finding_count", len(result.Findings)),
	)

	slog.Debug("Security scan completed",
		slog.String("language", language),
		slog.String("coverage", string(result.Coverage)),
		slog.Int("findings", len(result.Findings)),
		slog.Duration("duration", result.Duration),
	)

	return result, nil
}

// runTool writes code to a scratch dir and runs the external tool on it.
func (s *Scanner) runTool(ctx context.Context, tool *ToolConfig, code string) ([]Finding, error) {
	dir, err := os.MkdirTemp(s.tempDir, "review-sec-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	ext := extensions[tool.Language]
	filePath := filepath.Join(dir, "snippet"+ext)
	if err := os.WriteFile(filePath, []byte(code), 0o600); err != nil {
		return nil, fmt.Errorf("writing temp file: %w", err)
	}
	if tool.Language == "go" {
		gomod := []byte("module snippet\n\ngo 1.22\n")
		if err := os.WriteFile(filepath.Join(dir, "go.mod"), gomod, 0o600); err != nil {
			return nil, fmt.Errorf("writing temp go.mod: %w", err)
		}
	}

	target := filePath
	if tool.PackageTarget != "" {
		target = tool.PackageTarget
	}
	args := append(append([]string(nil), tool.Args...), target)

	timeout := tool.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, tool.Command, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if errors.Is(cmdCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, newScannerError(tool.Name, tool.Language, ErrScannerTimeout, stderr.String())
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// bandit exits 1 when it finds issues; only a silent failure is fatal.
	if runErr != nil && stdout.Len() == 0 {
		return nil, newScannerError(tool.Name, tool.Language, ErrScannerFailed, strings.TrimSpace(stderr.String()))
	}

	findings, err := tool.Parse(stdout.Bytes())
	if err != nil {
		if errors.Is(err, ErrScannerFailed) {
			return nil, newScannerError(tool.Name, tool.Language, err, "")
		}
		return nil, newScannerError(tool.Name, tool.Language, fmt.Errorf("%w: %v", ErrParseOutput, err), "")
	}
	return findings, nil
}

// mergeFindings combines tool and built-in findings, drops built-in
// duplicates of tool findings, and sorts by line then rule.
func mergeFindings(external, builtin []Finding) []Finding {
	type key struct {
		line int
		cwe  int
	}
	seen := make(map[key]bool, len(external))
	rulesByLine := make(map[int][]string, len(external))
	for _, f := range external {
		seen[key{f.Line, f.CWE}] = true
		rulesByLine[f.Line] = append(rulesByLine[f.Line], f.RuleID)
	}
	duplicate := func(f Finding) bool {
		if seen[key{f.Line, f.CWE}] {
			return true
		}
		for _, id := range rulesByLine[f.Line] {
			if slices.Contains(f.Covers, id) {
				return true
			}
		}
		return false
	}

	out := make([]Finding, 0, len(external)+len(builtin))
	out = append(out, external...)
	for _, f := range builtin {
		if duplicate(f) {
			continue
		}
		out = append(out, f)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].RuleID < out[j].RuleID
	})
	return out
}
