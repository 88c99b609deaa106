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
	"maps"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// SEVERITY
// =============================================================================

// Severity represents the severity level of a lint issue.
type Severity int

const (
	// SeverityInfo is a convention or style note.
	SeverityInfo Severity = iota

	// SeverityWarning is a likely problem worth a look.
	SeverityWarning

	// SeverityError is a definite defect reported by the linter.
	SeverityError
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// SeverityFromString parses a severity string.
//
// Description:
//
//	Parses common severity strings from different linters, including the
//	pylint message types. Unknown values default to SeverityWarning.
//
// Inputs:
//
//	s - Severity string (e.g., "error", "warning", "convention")
//
// Outputs:
//
//	Severity - The parsed severity level
func SeverityFromString(s string) Severity {
	switch strings.ToLower(s) {
	case "error", "err", "fatal", "critical":
		return SeverityError
	case "warning", "warn", "refactor":
		return SeverityWarning
	case "info", "note", "style", "hint", "convention":
		return SeverityInfo
	default:
		return SeverityWarning
	}
}

// =============================================================================
// LINTER CONFIG
// =============================================================================

// LinterConfig configures how to run a specific linter.
//
// Thread Safety: Treat as immutable after creation.
type LinterConfig struct {
	// Name identifies the linter in the registry (e.g., "pylint", "ruff").
	Name string

	// Language is the language this linter handles (e.g., "go", "python").
	Language string

	// Command is the linter executable name (e.g., "golangci-lint").
	Command string

	// Args are the arguments to pass to the linter.
	// Should include flags for JSON output.
	Args []string

	// Extensions are file extensions this linter handles (e.g., []string{".go"}).
	Extensions []string

	// Timeout is the maximum time to wait for the linter.
	Timeout time.Duration

	// Available indicates whether the linter binary was found in PATH.
	// Set by DetectAvailableLinters.
	Available bool

	// Format names the output parser registered for this linter.
	Format string

	// Files are written into the scratch directory next to the snippet,
	// keyed by base file name. Linters that refuse to run without a
	// project config get one here.
	Files map[string]string

	// Env holds extra KEY=VALUE pairs for the linter process.
	Env []string

	// VersionArgs, when set, are run once at detection to read the
	// linter's version (e.g., []string{"--version"}).
	VersionArgs []string

	// ArgsByMajor overrides Args for specific major versions whose flags
	// differ from the default.
	ArgsByMajor map[int][]string

	// Version is the version detected via VersionArgs, or "".
	Version string
}

// Clone returns a deep copy of the config.
func (c *LinterConfig) Clone() *LinterConfig {
	clone := *c
	clone.Args = append([]string(nil), c.Args...)
	clone.Extensions = append([]string(nil), c.Extensions...)
	clone.Env = append([]string(nil), c.Env...)
	clone.VersionArgs = append([]string(nil), c.VersionArgs...)
	clone.Files = maps.Clone(c.Files)
	if c.ArgsByMajor != nil {
		clone.ArgsByMajor = make(map[int][]string, len(c.ArgsByMajor))
		for major, args := range c.ArgsByMajor {
			clone.ArgsByMajor[major] = append([]string(nil), args...)
		}
	}
	return &clone
}

// EffectiveArgs returns the arguments for the detected version: the
// ArgsByMajor entry for its major version when present, Args otherwise.
func (c *LinterConfig) EffectiveArgs() []string {
	if args, ok := c.ArgsByMajor[MajorVersion(c.Version)]; ok && c.Version != "" {
		return args
	}
	return c.Args
}

var versionPattern = regexp.MustCompile(`\bv?(\d+\.\d+(?:\.\d+)?)`)

// ParseVersion extracts the first dotted version number from a
// --version banner, e.g. "2.1.6" from
// "golangci-lint has version 2.1.6 built with go1.24.3".
func ParseVersion(banner string) string {
	m := versionPattern.FindStringSubmatch(banner)
	if m == nil {
		return ""
	}
	return m[1]
}

// MajorVersion returns the leading component of a version, or -1.
func MajorVersion(version string) int {
	head, _, _ := strings.Cut(version, ".")
	n, err := strconv.Atoi(head)
	if err != nil {
		return -1
	}
	return n
}

// =============================================================================
// LINT RESULT
// =============================================================================

// LintResult is the combined output of every linter run for one snippet.
type LintResult struct {
	// Language is the language the snippet was linted as.
	Language string

	// Issues holds every issue reported, in linter order.
	Issues []LintIssue

	// Linters lists the linters that ran successfully.
	Linters []string

	// Unavailable lists registered linters that are not installed.
	Unavailable []string

	// Failures holds errors from linters that were installed but failed.
	Failures []error

	// Duration is the wall time for the whole run.
	Duration time.Duration
}

// LinterAvailable reports whether at least one linter produced output.
func (r *LintResult) LinterAvailable() bool {
	return r != nil && len(r.Linters) > 0
}

// Count returns the number of issues at the given severity.
func (r *LintResult) Count(sev Severity) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == sev {
			n++
		}
	}
	return n
}

// LintIssue represents a single diagnostic reported by a linter.
type LintIssue struct {
	// File is the path reported by the linter ("<content>" for snippets).
	File string `json:"file"`

	// Line is the 1-based line number.
	Line int `json:"line"`

	// Column is the 1-based column number.
	Column int `json:"column"`

	// EndLine is the last line of the issue span, if known.
	EndLine int `json:"end_line,omitempty"`

	// EndColumn is the last column of the issue span, if known.
	EndColumn int `json:"end_column,omitempty"`

	// Rule is the linter's rule code (e.g., "C0114", "W292", "no-unused-vars").
	Rule string `json:"rule"`

	// Symbol is the rule's human-readable name, when the linter has one.
	Symbol string `json:"symbol,omitempty"`

	// RuleURL links to the rule documentation, if provided.
	RuleURL string `json:"rule_url,omitempty"`

	// Severity is the normalized severity.
	Severity Severity `json:"severity"`

	// Message is the linter's own description.
	Message string `json:"message"`

	// Linter is the name of the linter that reported the issue.
	Linter string `json:"linter"`
}
