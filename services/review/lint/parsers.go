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
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// =============================================================================
// PYLINT PARSER
// =============================================================================

// pylintMessage is one entry of pylint --output-format=json.
type pylintMessage struct {
	Type      string `json:"type"`
	Module    string `json:"module"`
	Obj       string `json:"obj"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	EndLine   *int   `json:"endLine"`
	EndColumn *int   `json:"endColumn"`
	Path      string `json:"path"`
	Symbol    string `json:"symbol"`
	Message   string `json:"message"`
	MessageID string `json:"message-id"`
}

// parsePylintOutput parses JSON output from pylint.
//
// Description:
//
//	pylint emits a flat JSON array. Columns are 0-based and are shifted
//	to 1-based to match the other linters.
func parsePylintOutput(data []byte) ([]LintIssue, error) {
	var messages []pylintMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("parsing pylint output: %w", err)
	}

	if len(messages) == 0 {
		return nil, nil
	}

	issues := make([]LintIssue, 0, len(messages))
	for _, m := range messages {
		issue := LintIssue{
			File:     m.Path,
			Line:     m.Line,
			Column:   m.Column + 1,
			Rule:     m.MessageID,
			Symbol:   m.Symbol,
			Severity: SeverityFromString(m.Type),
			Message:  m.Message,
			Linter:   "pylint",
		}
		if m.EndLine != nil {
			issue.EndLine = *m.EndLine
		}
		if m.EndColumn != nil {
			issue.EndColumn = *m.EndColumn + 1
		}
		issues = append(issues, issue)
	}

	return issues, nil
}

// =============================================================================
// RUFF PARSER
// =============================================================================

// ruffIssue represents a single issue from Ruff JSON output.
type ruffIssue struct {
	Code        *string      `json:"code"`
	EndLocation ruffLocation `json:"end_location"`
	Filename    string       `json:"filename"`
	Location    ruffLocation `json:"location"`
	Message     string       `json:"message"`
	URL         string       `json:"url"`
}

type ruffLocation struct {
	Column int `json:"column"`
	Row    int `json:"row"`
}

// parseRuffOutput parses JSON output from Ruff.
//
// Description:
//
//	Ruff produces a JSON array of issues. Syntax errors come back with a
//	null code and are reported under the pseudo-rule "syntax-error".
func parseRuffOutput(data []byte) ([]LintIssue, error) {
	var ruffIssues []ruffIssue
	if err := json.Unmarshal(data, &ruffIssues); err != nil {
		return nil, fmt.Errorf("parsing ruff output: %w", err)
	}

	if len(ruffIssues) == 0 {
		return nil, nil
	}

	issues := make([]LintIssue, 0, len(ruffIssues))
	for _, ri := range ruffIssues {
		code := "syntax-error"
		if ri.Code != nil {
			code = *ri.Code
		}
		issues = append(issues, LintIssue{
			File:      ri.Filename,
			Line:      ri.Location.Row,
			Column:    ri.Location.Column,
			EndLine:   ri.EndLocation.Row,
			EndColumn: ri.EndLocation.Column,
			Rule:      code,
			RuleURL:   ri.URL,
			Severity:  mapRuffSeverity(code),
			Message:   ri.Message,
			Linter:    "ruff",
		})
	}

	return issues, nil
}

// mapRuffSeverity maps Ruff rule codes to our Severity.
func mapRuffSeverity(code string) Severity {
	if len(code) == 0 || code == "syntax-error" {
		return SeverityError
	}

	switch strings.ToUpper(code[:1]) {
	case "E", "F", "S":
		return SeverityError
	case "W", "C":
		return SeverityWarning
	case "I", "D":
		return SeverityInfo
	default:
		return SeverityWarning
	}
}

// =============================================================================
// GOLANGCI-LINT PARSER
// =============================================================================

// golangciOutput represents the JSON output from golangci-lint.
type golangciOutput struct {
	Issues []golangciIssue `json:"Issues"`
}

type golangciIssue struct {
	FromLinter string           `json:"FromLinter"`
	Text       string           `json:"Text"`
	Severity   string           `json:"Severity"`
	Pos        golangciPosition `json:"Pos"`
	LineRange  *golangciRange   `json:"LineRange,omitempty"`
}

type golangciPosition struct {
	Filename string `json:"Filename"`
	Line     int    `json:"Line"`
	Column   int    `json:"Column"`
}

type golangciRange struct {
	From int `json:"From"`
	To   int `json:"To"`
}

// parseGolangCIOutput parses JSON output from golangci-lint.
// The rule code is the name of the linter that produced the issue.
func parseGolangCIOutput(data []byte) ([]LintIssue, error) {
	var output golangciOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, fmt.Errorf("parsing golangci-lint output: %w", err)
	}

	if len(output.Issues) == 0 {
		return nil, nil
	}

	issues := make([]LintIssue, 0, len(output.Issues))
	for _, gi := range output.Issues {
		issue := LintIssue{
			File:     gi.Pos.Filename,
			Line:     gi.Pos.Line,
			Column:   gi.Pos.Column,
			Rule:     gi.FromLinter,
			Severity: SeverityWarning,
			Message:  gi.Text,
			Linter:   "golangci-lint",
		}
		if strings.EqualFold(gi.Severity, "error") {
			issue.Severity = SeverityError
		}
		if gi.LineRange != nil {
			issue.EndLine = gi.LineRange.To
		}
		issues = append(issues, issue)
	}

	return issues, nil
}

// =============================================================================
// ESLINT PARSER
// =============================================================================

// eslintOutput represents the JSON output from ESLint.
type eslintOutput []eslintFile

type eslintFile struct {
	FilePath string          `json:"filePath"`
	Messages []eslintMessage `json:"messages"`
}

type eslintMessage struct {
	RuleID    *string `json:"ruleId"`
	Severity  int     `json:"severity"` // 1 = warning, 2 = error
	Message   string  `json:"message"`
	Line      int     `json:"line"`
	Column    int     `json:"column"`
	EndLine   int     `json:"endLine"`
	EndColumn int     `json:"endColumn"`
	Fatal     bool    `json:"fatal"`
}

// parseESLintOutput parses JSON output from ESLint.
//
// Description:
//
//	ESLint reports parse failures as fatal messages with a null ruleId.
//	Those are surfaced under the pseudo-rule "syntax-error".
func parseESLintOutput(data []byte) ([]LintIssue, error) {
	var output eslintOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, fmt.Errorf("parsing eslint output: %w", err)
	}

	var issues []LintIssue
	for _, file := range output {
		for _, msg := range file.Messages {
			rule := "syntax-error"
			if msg.RuleID != nil {
				rule = *msg.RuleID
			}
			issues = append(issues, LintIssue{
				File:      file.FilePath,
				Line:      msg.Line,
				Column:    msg.Column,
				EndLine:   msg.EndLine,
				EndColumn: msg.EndColumn,
				Rule:      rule,
				Severity:  mapESLintSeverity(msg.Severity),
				Message:   msg.Message,
				Linter:    "eslint",
			})
		}
	}

	return issues, nil
}

// mapESLintSeverity maps ESLint numeric severity to our Severity.
func mapESLintSeverity(severity int) Severity {
	switch severity {
	case 2:
		return SeverityError
	case 1:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// =============================================================================
// PARSER REGISTRY
// =============================================================================

// ParserFunc is a function that parses linter output into issues.
type ParserFunc func(data []byte) ([]LintIssue, error)

var (
	parserMu sync.RWMutex

	// parserRegistry maps LinterConfig.Format to parser functions.
	parserRegistry = map[string]ParserFunc{
		"pylint":   parsePylintOutput,
		"ruff":     parseRuffOutput,
		"golangci": parseGolangCIOutput,
		"eslint":   parseESLintOutput,
	}
)

// GetParser returns the parser function for an output format, or nil.
func GetParser(format string) ParserFunc {
	parserMu.RLock()
	defer parserMu.RUnlock()
	return parserRegistry[format]
}

// RegisterParser adds or replaces a parser for an output format.
//
// Description:
//
//	Allows parsers for additional linters to be plugged in without
//	touching the runner. Pair with a LinterConfig whose Format matches.
func RegisterParser(format string, parser ParserFunc) {
	parserMu.Lock()
	defer parserMu.Unlock()
	parserRegistry[format] = parser
}
