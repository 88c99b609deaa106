// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package security scans snippets for known vulnerability patterns.
//
// Two sources feed a scan:
//
//   - An external scanner per language (bandit for Python, gosec for Go),
//     run on a temp copy of the snippet with JSON output.
//   - A built-in rule set of regular expressions for hardcoded secrets and
//     dangerous calls, applied line by line to every language.
//
// The package never executes submitted code. Findings are rendered in a
// bandit-style text block so reviewers see familiar wording whichever
// source produced them.
package security

import (
	"strings"
	"time"
)

// Level is a bandit-style severity or confidence rating.
type Level string

const (
	LevelUndefined Level = "UNDEFINED"
	LevelLow       Level = "LOW"
	LevelMedium    Level = "MEDIUM"
	LevelHigh      Level = "HIGH"
)

// ParseLevel normalizes tool output ("high", "HIGH", "High") to a Level.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return LevelLow
	case "MEDIUM":
		return LevelMedium
	case "HIGH":
		return LevelHigh
	default:
		return LevelUndefined
	}
}

// Title returns the level in title case ("High").
func (l Level) Title() string {
	if l == "" {
		return "Undefined"
	}
	s := strings.ToLower(string(l))
	return strings.ToUpper(s[:1]) + s[1:]
}

// Coverage describes how complete a scan was.
type Coverage string

const (
	// CoverageFull means the external scanner ran (built-in rules too).
	CoverageFull Coverage = "full"

	// CoverageBuiltin means the language has no external scanner and the
	// built-in rules are the whole scan.
	CoverageBuiltin Coverage = "builtin"

	// CoverageDegraded means an external scanner is configured for the
	// language but is not installed. Only built-in rules ran.
	CoverageDegraded Coverage = "degraded"
)

// Finding is one reported vulnerability.
type Finding struct {
	// RuleID is the scanner's rule identifier (e.g., "B602", "G204", "RS105").
	RuleID string `json:"rule_id"`

	// Name is the rule's short name (e.g., "subprocess_popen_with_shell_equals_true").
	Name string `json:"name"`

	// Text is the scanner's explanation.
	Text string `json:"text"`

	Severity   Level `json:"severity"`
	Confidence Level `json:"confidence"`

	// CWE is the CWE number, 0 when unknown.
	CWE int `json:"cwe,omitempty"`

	// Line is the 1-based line number.
	Line int `json:"line"`

	// Code is the offending line. Secrets are masked.
	Code string `json:"code,omitempty"`

	// Source names what produced the finding ("bandit", "gosec", "builtin").
	Source string `json:"source"`

	// Covers lists external rule IDs a built-in finding duplicates.
	Covers []string `json:"-"`
}

// ScanResult is the outcome of scanning one snippet.
type ScanResult struct {
	Language string `json:"language"`

	// Tool is the external scanner for the language, "" if none is configured.
	Tool string `json:"tool,omitempty"`

	Coverage Coverage  `json:"coverage"`
	Findings []Finding `json:"findings"`

	Duration time.Duration `json:"duration"`
}

// Clean reports whether the scan found nothing.
func (r *ScanResult) Clean() bool {
	return r != nil && len(r.Findings) == 0
}

// Conclusive reports whether a clean result can be trusted as "no issues".
// A degraded scan that found nothing is inconclusive.
func (r *ScanResult) Conclusive() bool {
	return r != nil && (r.Coverage != CoverageDegraded || len(r.Findings) > 0)
}
