// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// snippetBaseName is the file name snippets are written under. A stable
// name keeps pylint's module-name checks from firing on random temp names.
const snippetBaseName = "snippet"

// contentPath replaces temp file paths in reported issues.
const contentPath = "<content>"

// =============================================================================
// LINT RUNNER
// =============================================================================

// LintRunner executes linters and processes their output.
//
// Description:
//
//	Detects available linters at startup and provides graceful fallback
//	when linters are not installed. Every installed linter registered for
//	a language runs against the snippet and the issues are merged.
//
// Thread Safety: Safe for concurrent use.
type LintRunner struct {
	configs   *ConfigRegistry
	available map[string]bool
	availMu   sync.RWMutex
	tempDir   string
}

// Option configures the LintRunner.
type Option func(*LintRunner)

// WithConfigs sets a custom config registry.
func WithConfigs(configs *ConfigRegistry) Option {
	return func(r *LintRunner) {
		r.configs = configs
	}
}

// WithTempDir sets the parent directory for per-run scratch directories.
// Defaults to os.TempDir().
func WithTempDir(dir string) Option {
	return func(r *LintRunner) {
		r.tempDir = dir
	}
}

// NewLintRunner creates a new lint runner.
//
// Description:
//
//	Creates a runner with default or custom configurations.
//	Call DetectAvailableLinters to check which linters are installed.
//	Until then every linter is treated as unavailable.
func NewLintRunner(opts ...Option) *LintRunner {
	r := &LintRunner{
		configs:   NewConfigRegistry(),
		available: make(map[string]bool),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func availabilityKey(language, name string) string {
	return language + "/" + name
}

// DetectAvailableLinters checks which linters are installed.
//
// Description:
//
//	Probes the system PATH for each configured linter binary and records
//	the result per language.
//
// Outputs:
//
//	map[string]bool - Map of "language/linter" to whether it is available
//
// Thread Safety: Safe for concurrent use.
func (r *LintRunner) DetectAvailableLinters() map[string]bool {
	r.availMu.Lock()
	defer r.availMu.Unlock()

	result := make(map[string]bool)

	for _, lang := range r.configs.Languages() {
		for _, config := range r.configs.ForLanguage(lang) {
			_, err := exec.LookPath(config.Command)
			available := err == nil

			key := availabilityKey(lang, config.Name)
			r.available[key] = available
			r.configs.SetAvailable(lang, config.Name, available)
			result[key] = available

			if available {
				version := detectVersion(config)
				if version != "" {
					r.configs.SetVersion(lang, config.Name, version)
				}
				slog.Info("Linter available",
					slog.String("language", lang),
					slog.String("linter", config.Name),
					slog.String("command", config.Command),
					slog.String("version", version),
				)
			} else {
				slog.Warn("Linter not installed",
					slog.String("language", lang),
					slog.String("linter", config.Name),
					slog.String("command", config.Command),
				)
			}
		}
	}

	return result
}

// versionTimeout bounds a --version run at detection.
const versionTimeout = 5 * time.Second

// detectVersion runs the linter's VersionArgs and parses the banner.
// It returns "" when the linter has no VersionArgs or the run fails.
func detectVersion(config *LinterConfig) string {
	if len(config.VersionArgs) == 0 {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), versionTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, config.Command, config.VersionArgs...).CombinedOutput()
	if err != nil {
		slog.Warn("Linter version check failed; using default flags",
			slog.String("linter", config.Name),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return ParseVersion(string(out))
}

// IsAvailable returns whether a specific linter is available for a language.
//
// Thread Safety: Safe for concurrent use.
func (r *LintRunner) IsAvailable(language, name string) bool {
	r.availMu.RLock()
	defer r.availMu.RUnlock()
	return r.available[availabilityKey(language, name)]
}

// HasLinter reports whether any installed linter covers the language.
//
// Thread Safety: Safe for concurrent use.
func (r *LintRunner) HasLinter(language string) bool {
	for _, config := range r.configs.ForLanguage(language) {
		if r.IsAvailable(language, config.Name) {
			return true
		}
	}
	return false
}

// LintContent runs every linter for a language on content directly.
//
// Description:
//
//	Writes content to a scratch directory, runs each installed linter,
//	then cleans up. File paths in results are remapped to "<content>".
//	A linter that fails is recorded in LintResult.Failures and the rest
//	still run.
//
// Inputs:
//
//	ctx - Context for cancellation and timeout
//	content - The source code to lint
//	language - The language identifier (e.g., "go", "python")
//
// Outputs:
//
//	*LintResult - The merged lint result
//	error - Non-nil if no linter produced a result
//
// Errors:
//
//	ErrInvalidInput - ctx is nil
//	ErrUnsupportedLanguage - No linter registered for the language
//	ErrLinterNotInstalled - No registered linter is installed (as a *LinterError
//	  whose Linter field lists the missing linters)
//	*LinterError - Every installed linter failed (first failure returned)
//
// Thread Safety: Safe for concurrent use.
func (r *LintRunner) LintContent(ctx context.Context, content []byte, language string) (*LintResult, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: ctx must not be nil", ErrInvalidInput)
	}

	configs := r.configs.ForLanguage(language)
	ext := ExtensionForLanguage(language)
	if len(configs) == 0 || ext == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}

	ctx, span := startLintSpan(ctx, language)
	defer span.End()
	start := time.Now()

	result := &LintResult{Language: language}

	var runnable []*LinterConfig
	for _, config := range configs {
		if r.IsAvailable(language, config.Name) {
			runnable = append(runnable, config)
		} else {
			result.Unavailable = append(result.Unavailable, config.Name)
		}
	}

	if len(runnable) == 0 {
		setLintSpanResult(span, 0, false)
		recordLintMetrics(ctx, language, time.Since(start), 0, false)
		return nil, NewLinterError(strings.Join(result.Unavailable, ", "), language, ErrLinterNotInstalled)
	}

	if len(bytes.TrimSpace(content)) == 0 {
		for _, config := range runnable {
			result.Linters = append(result.Linters, config.Name)
		}
		result.Duration = time.Since(start)
		return result, nil
	}

	dir, err := os.MkdirTemp(r.tempDir, "review-lint-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	filePath := filepath.Join(dir, snippetBaseName+ext)
	if err := os.WriteFile(filePath, content, 0o600); err != nil {
		return nil, fmt.Errorf("writing temp file: %w", err)
	}
	if language == "go" {
		gomod := []byte("module snippet\n\ngo 1.22\n")
		if err := os.WriteFile(filepath.Join(dir, "go.mod"), gomod, 0o600); err != nil {
			return nil, fmt.Errorf("writing temp go.mod: %w", err)
		}
	}

	for _, config := range runnable {
		issues, err := r.runOne(ctx, config, dir, filePath)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("Linter failed",
				slog.String("linter", config.Name),
				slog.String("language", language),
				slog.String("error", err.Error()),
			)
			result.Failures = append(result.Failures, err)
			continue
		}
		for i := range issues {
			if issues[i].File == "" || filepath.Base(issues[i].File) == filepath.Base(filePath) {
				issues[i].File = contentPath
			}
		}
		result.Issues = append(result.Issues, issues...)
		result.Linters = append(result.Linters, config.Name)
	}

	result.Duration = time.Since(start)

	if len(result.Linters) == 0 {
		setLintSpanResult(span, 0, true)
		recordLintMetrics(ctx, language, result.Duration, 0, false)
		return nil, errors.Join(result.Failures...)
	}

	setLintSpanResult(span, len(result.Issues), true)
	recordLintMetrics(ctx, language, result.Duration, len(result.Issues), true)

	slog.Debug("Lint completed",
		slog.String("language", language),
		slog.Any("linters", result.Linters),
		slog.Duration("duration", result.Duration),
		slog.Int("issues", len(result.Issues)),
	)

	return result, nil
}

// writeConfigFiles writes a linter's Files into the scratch directory.
func writeConfigFiles(config *LinterConfig, dir string) error {
	for name, body := range config.Files {
		if name != filepath.Base(name) || name == snippetBaseName+filepath.Ext(name) {
			return NewLinterError(config.Name, config.Language,
				fmt.Errorf("%w: config file name %q", ErrInvalidInput, name))
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			return NewLinterError(config.Name, config.Language, fmt.Errorf("writing %s: %w", name, err))
		}
	}
	return nil
}

// runOne executes a single linter and parses its output.
func (r *LintRunner) runOne(ctx context.Context, config *LinterConfig, dir, filePath string) ([]LintIssue, error) {
	if err := writeConfigFiles(config, dir); err != nil {
		return nil, err
	}

	output, err := r.executeLinter(ctx, config, dir, filePath)
	if err != nil {
		return nil, err
	}

	if len(bytes.TrimSpace(output)) == 0 {
		return nil, nil
	}

	parser := GetParser(config.Format)
	if parser == nil {
		return nil, NewLinterError(config.Name, config.Language,
			fmt.Errorf("%w: no parser for format %q", ErrParseOutput, config.Format))
	}

	issues, err := parser(output)
	if err != nil {
		return nil, NewLinterError(config.Name, config.Language, fmt.Errorf("%w: %v", ErrParseOutput, err))
	}
	return issues, nil
}

// executeLinter runs the linter subprocess.
func (r *LintRunner) executeLinter(ctx context.Context, config *LinterConfig, dir, filePath string) ([]byte, error) {
	base := config.EffectiveArgs()
	args := make([]string, len(base), len(base)+1)
	copy(args, base)
	args = append(args, filePath)

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, config.Command, args...)
	cmd.Dir = dir
	if len(config.Env) > 0 {
		cmd.Env = append(os.Environ(), config.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if errors.Is(cmdCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, NewLinterError(config.Name, config.Language, ErrLinterTimeout).
			WithOutput(stderr.String())
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// Some linters exit non-zero when they find issues.
	// Only fail if there's no stdout output.
	if err != nil && stdout.Len() == 0 {
		return nil, NewLinterError(config.Name, config.Language, ErrLinterFailed).
			WithOutput(strings.TrimSpace(stderr.String()))
	}

	return stdout.Bytes(), nil
}

// Configs returns the config registry for customization.
func (r *LintRunner) Configs() *ConfigRegistry {
	return r.configs
}
