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
	"testing"
	"unicode/utf8"
)

func TestLinterError_WithOutputKeepsRunesWhole(t *testing.T) {
	// 511 ASCII bytes then 3-byte runes straddling the limit.
	output := strings.Repeat("x", maxOutput-1) + "日本語"
	le := NewLinterError("pylint", "python", ErrLinterFailed).WithOutput(output)

	if !utf8.ValidString(le.Output) {
		t.Fatalf("Output split a rune: %q", le.Output[len(le.Output)-8:])
	}
	if want := strings.Repeat("x", maxOutput-1) + "..."; le.Output != want {
		t.Errorf("Output has %d bytes, want %d", len(le.Output), len(want))
	}

	short := NewLinterError("ruff", "python", ErrLinterFailed).WithOutput("ünïcode")
	if short.Output != "ünïcode" {
		t.Errorf("short output changed: %q", short.Output)
	}
}

func TestLinterErrors_FlattensJoined(t *testing.T) {
	a := NewLinterError("pylint", "python", ErrLinterFailed).WithOutput("No module named pylint")
	b := NewLinterError("ruff", "python", ErrLinterTimeout)
	err := errors.Join(a, fmt.Errorf("wrapped: %w", b), errors.New("plain"))

	les := LinterErrors(err)
	if len(les) != 2 || les[0] != a || les[1] != b {
		t.Fatalf("LinterErrors = %v", les)
	}
	if got := FailedLinters(err); got != "pylint, ruff" {
		t.Errorf("FailedLinters = %q", got)
	}
	want := "linter execution failed: No module named pylint; linter timeout"
	if got := FailureDetail(err); got != want {
		t.Errorf("FailureDetail = %q, want %q", got, want)
	}
}

func TestLinterErrors_NoLinterError(t *testing.T) {
	err := errors.New("disk full")
	if LinterErrors(err) != nil || LinterErrors(nil) != nil {
		t.Error("expected no linter errors")
	}
	if FailedLinters(err) != "lint" {
		t.Error("FailedLinters should fall back to lint")
	}
	if FailureDetail(err) != "disk full" {
		t.Error("FailureDetail should fall back to err.Error()")
	}
}
