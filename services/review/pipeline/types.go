// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"maps"
	"slices"
	"time"
)

// Check names, used as Report.Checks keys and metric labels.
const (
	CheckSyntax   = "syntax"
	CheckLint     = "lint"
	CheckSecurity = "security"
	CheckML       = "ml"
)

// Submission is one snippet to analyze.
type Submission struct {
	// Code is the raw source text.
	Code string

	// Language is an optional hint. Empty means detect from the code.
	Language string
}

// CheckStatus is the outcome class of a single check.
type CheckStatus string

const (
	StatusOK      CheckStatus = "ok"
	StatusError   CheckStatus = "error"
	StatusSkipped CheckStatus = "skipped"
)

// CheckResult records how one check went.
type CheckResult struct {
	Name   string      `json:"name"`
	Status CheckStatus `json:"status"`

	// Findings lists individual items the check produced, one per line.
	Findings []string `json:"findings,omitempty"`

	// Summary is the text the check contributed to the report.
	Summary string `json:"summary"`

	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`

	// Err is the failure reason when Status is error.
	Err string `json:"error,omitempty"`
}

// Verdict is the reconciled overall outcome.
type Verdict string

const (
	// VerdictClean means ML risk is low and lint and security found nothing.
	VerdictClean Verdict = "clean"

	// VerdictSyntaxError means the snippet does not parse.
	VerdictSyntaxError Verdict = "syntax_error"

	// VerdictCritical means the classifier scored above the high threshold.
	VerdictCritical Verdict = "critical"

	// VerdictPotentialIssues means the classifier scored above the low threshold.
	VerdictPotentialIssues Verdict = "potential_issues"

	// VerdictReview means ML risk is low but lint or security raised something,
	// or a check could not vouch for the code.
	VerdictReview Verdict = "review"

	// VerdictUnknown means the classifier produced no score.
	VerdictUnknown Verdict = "unknown"
)

// Report is the composite result for one Submission.
//
// The five result fields are always present in JSON. SyntaxError is null
// when the snippet parses.
type Report struct {
	SyntaxError      *string `json:"syntax_error"`
	BestPractices    string  `json:"best_practices"`
	LinterResults    string  `json:"linter_results"`
	MLResults        string  `json:"ml_results"`
	SecurityAnalysis string  `json:"security_analysis"`

	Language   string                 `json:"language"`
	Verdict    Verdict                `json:"verdict"`
	Confidence *float64               `json:"confidence"`
	Checks     map[string]CheckResult `json:"checks"`
}

// Clone returns a deep copy.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	out := *r
	if r.SyntaxError != nil {
		s := *r.SyntaxError
		out.SyntaxError = &s
	}
	if r.Confidence != nil {
		c := *r.Confidence
		out.Confidence = &c
	}
	out.Checks = maps.Clone(r.Checks)
	for name, check := range out.Checks {
		check.Findings = slices.Clone(check.Findings)
		out.Checks[name] = check
	}
	return &out
}

// Timeouts bounds each check.
type Timeouts struct {
	Syntax   time.Duration
	Lint     time.Duration
	Security time.Duration
	ML       time.Duration
}

// DefaultTimeouts returns the default per-check limits.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Syntax:   5 * time.Second,
		Lint:     30 * time.Second,
		Security: 30 * time.Second,
		ML:       30 * time.Second,
	}
}

func (t Timeouts) withDefaults() Timeouts {
	d := DefaultTimeouts()
	if t.Syntax <= 0 {
		t.Syntax = d.Syntax
	}
	if t.Lint <= 0 {
		t.Lint = d.Lint
	}
	if t.Security <= 0 {
		t.Security = d.Security
	}
	if t.ML <= 0 {
		t.ML = d.ML
	}
	return t
}
