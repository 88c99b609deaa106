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
	"errors"
	"fmt"
)

// Sentinel errors for the security package.
var (
	// ErrScannerTimeout indicates the scanner exceeded its configured timeout.
	ErrScannerTimeout = errors.New("scanner timeout")

	// ErrScannerFailed indicates the scanner process failed or reported errors.
	ErrScannerFailed = errors.New("scanner execution failed")

	// ErrParseOutput indicates failure to parse the scanner's JSON output.
	ErrParseOutput = errors.New("failed to parse scanner output")

	// ErrInvalidInput indicates invalid input to a scan function.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidRule indicates a built-in rule failed to compile.
	ErrInvalidRule = errors.New("invalid rule")
)

// ScannerError wraps errors from a specific scanner with context.
//
// Thread Safety: Immutable after creation.
type ScannerError struct {
	// Scanner is the name of the scanner that failed (e.g., "bandit").
	Scanner string

	// Language is the language being scanned.
	Language string

	// Err is the underlying error.
	Err error

	// Output contains stderr or tool-reported error text.
	Output string
}

// Error implements the error interface.
func (e *ScannerError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s (%s): %v: %s", e.Scanner, e.Language, e.Err, e.Output)
	}
	return fmt.Sprintf("%s (%s): %v", e.Scanner, e.Language, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ScannerError) Unwrap() error {
	return e.Err
}

func newScannerError(scanner, language string, err error, output string) *ScannerError {
	const maxOutput = 512
	if len(output) > maxOutput {
		output = output[:maxOutput] + "..."
	}
	return &ScannerError{Scanner: scanner, Language: language, Err: err, Output: output}
}
