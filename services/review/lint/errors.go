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
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Sentinel errors for the lint package.
var (
	// ErrLinterNotInstalled indicates no linter for the language was found in PATH.
	ErrLinterNotInstalled = errors.New("linter not installed")

	// ErrLinterTimeout indicates the linter exceeded its configured timeout.
	ErrLinterTimeout = errors.New("linter timeout")

	// ErrLinterFailed indicates the linter process failed to execute.
	ErrLinterFailed = errors.New("linter execution failed")

	// ErrUnsupportedLanguage indicates no linter configuration exists for the language.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrParseOutput indicates failure to parse the linter's JSON output.
	ErrParseOutput = errors.New("failed to parse linter output")

	// ErrInvalidInput indicates invalid input to a lint function.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidTip indicates a tip catalog entry is malformed.
	ErrInvalidTip = errors.New("invalid tip")
)

// LinterError wraps errors from a specific linter with context.
//
// Thread Safety: Immutable after creation.
type LinterError struct {
	// Linter is the name of the linter that failed (e.g., "pylint").
	Linter string

	// Language is the language being linted (e.g., "python").
	Language string

	// Err is the underlying error.
	Err error

	// Output contains any stderr output from the linter.
	Output string
}

// Error implements the error interface.
func (e *LinterError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s (%s): %v: %s", e.Linter, e.Language, e.Err, e.Output)
	}
	return fmt.Sprintf("%s (%s): %v", e.Linter, e.Language, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *LinterError) Unwrap() error {
	return e.Err
}

// NewLinterError creates a new LinterError.
func NewLinterError(linter, language string, err error) *LinterError {
	return &LinterError{
		Linter:   linter,
		Language: language,
		Err:      err,
	}
}

// maxOutput caps the stderr kept on a LinterError.
const maxOutput = 512

// WithOutput returns a copy of the error with stderr output attached.
// Output longer than maxOutput bytes is cut at a rune boundary.
func (e *LinterError) WithOutput(output string) *LinterError {
	if len(output) > maxOutput {
		output = truncateUTF8(output, maxOutput) + "..."
	}
	return &LinterError{
		Linter:   e.Linter,
		Language: e.Language,
		Err:      e.Err,
		Output:   output,
	}
}

// Detail describes the failure without the linter name, e.g.
// "linter execution failed: No module named pylint".
func (e *LinterError) Detail() string {
	if e.Output == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Output
}

// LinterErrors flattens err, including errors.Join trees, into its
// *LinterError parts in order.
func LinterErrors(err error) []*LinterError {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []*LinterError
		for _, e := range joined.Unwrap() {
			out = append(out, LinterErrors(e)...)
		}
		return out
	}
	var le *LinterError
	if errors.As(err, &le) {
		return []*LinterError{le}
	}
	return nil
}

// FailedLinters names the linters in err, or "lint" when none is known.
func FailedLinters(err error) string {
	les := LinterErrors(err)
	if len(les) == 0 {
		return "lint"
	}
	names := make([]string, len(les))
	for i, le := range les {
		names[i] = le.Linter
	}
	return strings.Join(names, ", ")
}

// FailureDetail joins the Detail of every linter in err.
func FailureDetail(err error) string {
	les := LinterErrors(err)
	if len(les) == 0 {
		return err.Error()
	}
	parts := make([]string, len(les))
	for i, le := range les {
		parts[i] = le.Detail()
	}
	return strings.Join(parts, "; ")
}

// truncateUTF8 shortens s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
