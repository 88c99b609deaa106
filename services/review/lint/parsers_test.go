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
	"testing"
)

func TestParsePylintOutput(t *testing.T) {
	t.Run("valid output with issues", func(t *testing.T) {
		output := []byte(`[
			{
				"type": "convention",
				"module": "snippet",
				"obj": "",
				"line": 1,
				"column": 0,
				"endLine": null,
				"endColumn": null,
				"path": "snippet.py",
				"symbol": "missing-module-docstring",
				"message": "Missing module docstring",
				"message-id": "C0114"
			},
			{
				"type": "warning",
				"module": "snippet",
				"obj": "check",
				"line": 3,
				"column": 4,
				"endLine": 3,
				"endColumn": 11,
				"path": "snippet.py",
				"symbol": "using-constant-test",
				"message": "Using a conditional statement with a constant value",
				"message-id": "W0125"
			}
		]`)

		issues, err := parsePylintOutput(output)
		if err != nil {
			t.Fatalf("parsePylintOutput: %v", err)
		}
		if len(issues) != 2 {
			t.Fatalf("Expected 2 issues, got %d", len(issues))
		}

		if issues[0].Rule != "C0114" {
			t.Errorf("Issue 0 Rule = %q, want C0114", issues[0].Rule)
		}
		if issues[0].Symbol != "missing-module-docstring" {
			t.Errorf("Issue 0 Symbol = %q", issues[0].Symbol)
		}
		if issues[0].Severity != SeverityInfo {
			t.Errorf("Issue 0 Severity = %v, want info", issues[0].Severity)
		}
		if issues[0].Column != 1 {
			t.Errorf("Issue 0 Column = %d, want 1 (shifted from 0)", issues[0].Column)
		}
		if issues[0].EndLine != 0 {
			t.Errorf("Issue 0 EndLine = %d, want 0 for null", issues[0].EndLine)
		}

		if issues[1].Severity != SeverityWarning {
			t.Errorf("Issue 1 Severity = %v, want warning", issues[1].Severity)
		}
		if issues[1].EndColumn != 12 {
			t.Errorf("Issue 1 EndColumn = %d, want 12", issues[1].EndColumn)
		}
		if issues[1].Linter != "pylint" {
			t.Errorf("Issue 1 Linter = %q", issues[1].Linter)
		}
	})

	t.Run("empty array", func(t *testing.T) {
		issues, err := parsePylintOutput([]byte(`[]`))
		if err != nil {
			t.Fatalf("parsePylintOutput: %v", err)
		}
		if issues != nil {
			t.Errorf("Expected nil issues, got %v", issues)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		if _, err := parsePylintOutput([]byte(`************* Module snippet`)); err == nil {
			t.Error("Expected error for text output")
		}
	})
}

func TestParseRuffOutput(t *testing.T) {
	t.Run("valid output", func(t *testing.T) {
		output := []byte(`[
			{
				"code": "W292",
				"end_location": {"column": 10, "row": 1},
				"filename": "/tmp/review-lint-1/snippet.py",
				"location": {"column": 10, "row": 1},
				"message": "No newline at end of file",
				"url": "https://docs.astral.sh/ruff/rules/missing-newline-at-end-of-file"
			},
			{
				"code": null,
				"end_location": {"column": 5, "row": 2},
				"filename": "/tmp/review-lint-1/snippet.py",
				"location": {"column": 1, "row": 2},
				"message": "SyntaxError: Expected an expression"
			}
		]`)

		issues, err := parseRuffOutput(output)
		if err != nil {
			t.Fatalf("parseRuffOutput: %v", err)
		}
		if len(issues) != 2 {
			t.Fatalf("Expected 2 issues, got %d", len(issues))
		}
		if issues[0].Rule != "W292" {
			t.Errorf("Issue 0 Rule = %q, want W292", issues[0].Rule)
		}
		if issues[0].Severity != SeverityWarning {
			t.Errorf("Issue 0 Severity = %v, want warning", issues[0].Severity)
		}
		if issues[1].Rule != "syntax-error" {
			t.Errorf("Issue 1 Rule = %q, want syntax-error", issues[1].Rule)
		}
		if issues[1].Severity != SeverityError {
			t.Errorf("Issue 1 Severity = %v, want error", issues[1].Severity)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		if _, err := parseRuffOutput([]byte(`{`)); err == nil {
			t.Error("Expected error for invalid JSON")
		}
	})
}

func TestMapRuffSeverity(t *testing.T) {
	tests := []struct {
		code string
		want Severity
	}{
		{"E501", SeverityError},
		{"F401", SeverityError},
		{"W292", SeverityWarning},
		{"C901", SeverityWarning},
		{"I001", SeverityInfo},
		{"D100", SeverityInfo},
		{"", SeverityError},
		{"UP007", SeverityWarning},
	}

	for _, tt := range tests {
		if got := mapRuffSeverity(tt.code); got != tt.want {
			t.Errorf("mapRuffSeverity(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestParseGolangCIOutput(t *testing.T) {
	output := []byte(`{
		"Issues": [
			{
				"FromLinter": "errcheck",
				"Text": "Error return value of 'file.Close' is not checked",
				"Severity": "",
				"Pos": {"Filename": "snippet.go", "Line": 7, "Column": 12}
			},
			{
				"FromLinter": "typecheck",
				"Text": "undefined: foo",
				"Severity": "error",
				"Pos": {"Filename": "snippet.go", "Line": 9, "Column": 2},
				"LineRange": {"From": 9, "To": 10}
			}
		]
	}`)

	issues, err := parseGolangCIOutput(output)
	if err != nil {
		t.Fatalf("parseGolangCIOutput: %v", err)
	}
	if len(issues) != 2 {
		t.Fatalf("Expected 2 issues, got %d", len(issues))
	}
	if issues[0].Rule != "errcheck" || issues[0].Severity != SeverityWarning {
		t.Errorf("Issue 0 = %+v", issues[0])
	}
	if issues[1].Severity != SeverityError {
		t.Errorf("Issue 1 Severity = %v, want error", issues[1].Severity)
	}
	if issues[1].EndLine != 10 {
		t.Errorf("Issue 1 EndLine = %d, want 10", issues[1].EndLine)
	}

	empty, err := parseGolangCIOutput([]byte(`{"Issues": null}`))
	if err != nil || empty != nil {
		t.Errorf("Expected nil, nil for no issues; got %v, %v", empty, err)
	}
}

func TestParseESLintOutput(t *testing.T) {
	output := []byte(`[
		{
			"filePath": "/tmp/review-lint-2/snippet.js",
			"messages": [
				{"ruleId": "no-unused-vars", "severity": 2, "message": "'x' is assigned a value but never used.", "line": 1, "column": 5},
				{"ruleId": null, "severity": 2, "fatal": true, "message": "Parsing error: Unexpected token", "line": 2, "column": 1},
				{"ruleId": "eqeqeq", "severity": 1, "message": "Expected '===' and instead saw '=='.", "line": 3, "column": 7}
			]
		}
	]`)

	issues, err := parseESLintOutput(output)
	if err != nil {
		t.Fatalf("parseESLintOutput: %v", err)
	}
	if len(issues) != 3 {
		t.Fatalf("Expected 3 issues, got %d", len(issues))
	}
	if issues[0].Rule != "no-unused-vars" || issues[0].Severity != SeverityError {
		t.Errorf("Issue 0 = %+v", issues[0])
	}
	if issues[1].Rule != "syntax-error" {
		t.Errorf("Issue 1 Rule = %q, want syntax-error", issues[1].Rule)
	}
	if issues[2].Severity != SeverityWarning {
		t.Errorf("Issue 2 Severity = %v, want warning", issues[2].Severity)
	}
}

func TestParserRegistry(t *testing.T) {
	for _, format := range []string{"pylint", "ruff", "golangci", "eslint"} {
		if GetParser(format) == nil {
			t.Errorf("GetParser(%q) = nil", format)
		}
	}
	if GetParser("flake8-text") != nil {
		t.Error("Expected nil parser for unregistered format")
	}

	RegisterParser("test-format", func([]byte) ([]LintIssue, error) {
		return []LintIssue{{Rule: "X1"}}, nil
	})
	t.Cleanup(func() {
		parserMu.Lock()
		delete(parserRegistry, "test-format")
		parserMu.Unlock()
	})

	issues, err := GetParser("test-format")(nil)
	if err != nil || len(issues) != 1 || issues[0].Rule != "X1" {
		t.Errorf("custom parser returned %v, %v", issues, err)
	}
}
