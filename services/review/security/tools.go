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
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// TOOL CONFIGS
// =============================================================================

// ToolConfig configures an external security scanner.
type ToolConfig struct {
	// Name is the scanner name shown in reports (e.g., "bandit").
	Name string

	// Language is the language the scanner handles.
	Language string

	// Command is the executable.
	Command string

	// Args are passed before the target.
	Args []string

	// PackageTarget, when non-empty, replaces the file path argument.
	// gosec scans packages ("./...") rather than single files.
	PackageTarget string

	Timeout time.Duration

	// Parse converts raw stdout into findings.
	Parse func(data []byte) ([]Finding, error)
}

// DefaultBanditConfig runs bandit with JSON output.
var DefaultBanditConfig = ToolConfig{
	Name:     "bandit",
	Language: "python",
	Command:  "bandit",
	Args:     []string{"-f", "json", "-q"},
	Timeout:  30 * time.Second,
	Parse:    parseBanditOutput,
}

// DefaultGosecConfig runs gosec over the scratch module.
var DefaultGosecConfig = ToolConfig{
	Name:          "gosec",
	Language:      "go",
	Command:       "gosec",
	Args:          []string{"-fmt=json", "-quiet", "-no-fail"},
	PackageTarget: "./...",
	Timeout:       60 * time.Second,
	Parse:         parseGosecOutput,
}

// =============================================================================
// BANDIT PARSER
// =============================================================================

type banditOutput struct {
	Errors  []banditError  `json:"errors"`
	Results []banditResult `json:"results"`
}

type banditError struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

type banditResult struct {
	Code            string  `json:"code"`
	Filename        string  `json:"filename"`
	IssueConfidence string  `json:"issue_confidence"`
	IssueSeverity   string  `json:"issue_severity"`
	IssueText       string  `json:"issue_text"`
	IssueCWE        *cweRef `json:"issue_cwe"`
	LineNumber      int     `json:"line_number"`
	TestID          string  `json:"test_id"`
	TestName        string  `json:"test_name"`
}

type cweRef struct {
	ID   int    `json:"id"`
	Link string `json:"link"`
}

// parseBanditOutput parses bandit -f json output.
//
// Description:
//
//	Bandit reports files it could not analyze in "errors". When it produced
//	no results and did report errors, the scan is treated as failed.
func parseBanditOutput(data []byte) ([]Finding, error) {
	var out banditOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing bandit output: %w", err)
	}

	if len(out.Results) == 0 && len(out.Errors) > 0 {
		reasons := make([]string, 0, len(out.Errors))
		for _, e := range out.Errors {
			reasons = append(reasons, e.Reason)
		}
		return nil, fmt.Errorf("%w: %s", ErrScannerFailed, strings.Join(reasons, "; "))
	}

	findings := make([]Finding, 0, len(out.Results))
	for _, r := range out.Results {
		f := Finding{
			RuleID:     r.TestID,
			Name:       r.TestName,
			Text:       r.IssueText,
			Severity:   ParseLevel(r.IssueSeverity),
			Confidence: ParseLevel(r.IssueConfidence),
			Line:       r.LineNumber,
			Code:       codeLine(r.Code, r.LineNumber, " "),
			Source:     "bandit",
		}
		if r.IssueCWE != nil {
			f.CWE = r.IssueCWE.ID
		}
		findings = append(findings, f)
	}
	return findings, nil
}

// codeLine extracts the flagged line from a numbered excerpt. bandit
// separates number and code with a space ("2 x = eval(y)"), gosec with
// a colon ("9: cmd := ...").
func codeLine(code string, line int, sep string) string {
	prefix := strconv.Itoa(line) + sep
	for _, l := range strings.Split(code, "\n") {
		if strings.HasPrefix(l, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(l, prefix))
		}
	}
	return ""
}

// =============================================================================
// GOSEC PARSER
// =============================================================================

type gosecOutput struct {
	Issues       []gosecIssue        `json:"Issues"`
	GolangErrors map[string][]gosecE `json:"Golang errors"`
}

type gosecE struct {
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Error  string `json:"error"`
}

type gosecIssue struct {
	Severity   string   `json:"severity"`
	Confidence string   `json:"confidence"`
	CWE        gosecCWE `json:"cwe"`
	RuleID     string   `json:"rule_id"`
	Details    string   `json:"details"`
	File       string   `json:"file"`
	Code       string   `json:"code"`
	Line       string   `json:"line"`
}

type gosecCWE struct {
	ID string `json:"id"`
}

// parseGosecOutput parses gosec -fmt=json output.
// gosec reports line numbers as strings, sometimes as a range ("9-11").
func parseGosecOutput(data []byte) ([]Finding, error) {
	var out gosecOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing gosec output: %w", err)
	}

	if len(out.Issues) == 0 {
		for _, errs := range out.GolangErrors {
			if len(errs) > 0 {
				return nil, fmt.Errorf("%w: %s", ErrScannerFailed, errs[0].Error)
			}
		}
	}

	findings := make([]Finding, 0, len(out.Issues))
	for _, gi := range out.Issues {
		line, _ := strconv.Atoi(strings.SplitN(gi.Line, "-", 2)[0])
		cwe, _ := strconv.Atoi(gi.CWE.ID)
		findings = append(findings, Finding{
			RuleID:     gi.RuleID,
			Name:       gosecRuleName(gi.RuleID),
			Text:       gi.Details,
			Severity:   ParseLevel(gi.Severity),
			Confidence: ParseLevel(gi.Confidence),
			CWE:        cwe,
			Line:       line,
			Code:       codeLine(gi.Code, line, ": "),
			Source:     "gosec",
		})
	}
	return findings, nil
}

// gosecRuleName gives gosec findings a bandit-style short name.
func gosecRuleName(id string) string {
	switch {
	case strings.HasPrefix(id, "G1"):
		return "general"
	case strings.HasPrefix(id, "G2"):
		return "injection"
	case strings.HasPrefix(id, "G3"):
		return "file_permissions"
	case strings.HasPrefix(id, "G4"):
		return "crypto"
	case strings.HasPrefix(id, "G5"):
		return "blocklisted_import"
	case strings.HasPrefix(id, "G6"):
		return "memory_aliasing"
	default:
		return "gosec"
	}
}
