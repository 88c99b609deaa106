// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReport_Plain(t *testing.T) {
	var buf bytes.Buffer
	err := WriteReport(&buf, NewTheme(false), ReportView{
		Language: "python",
		Verdict:  "syntax_error",
		Icon:     IconError,
		Sections: []Section{
			{Title: "Syntax", Status: IconError, Body: "SyntaxError detected: line 1\n"},
			{Title: "Best practices", Status: IconSuccess, Body: ""},
			{Title: "Security", Status: IconPending, Body: "a\nb"},
		},
	})
	require.NoError(t, err)

	want := "✗ Verdict: syntax_error  (python)\n" +
		"\n✗ Syntax\n  SyntaxError detected: line 1\n" +
		"\n✓ Best practices\n  (none)\n" +
		"\n○ Security\n  a\n  b\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteReport_ColoredContainsText(t *testing.T) {
	var buf bytes.Buffer
	err := WriteReport(&buf, NewTheme(true), ReportView{
		Language: "go",
		Verdict:  "clean",
		Icon:     IconSuccess,
		Sections: []Section{{Title: "ML", Status: IconSuccess, Body: "fine"}},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Verdict: clean")
	assert.Contains(t, buf.String(), "fine")
}

func TestThemeRender_UnknownIconIsMuted(t *testing.T) {
	assert.Equal(t, "?", NewTheme(false).Render(Icon("?")))
}

func TestColorEnabled_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.False(t, ColorEnabled(os.Stdout))
}

func TestColorEnabled_File(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, ColorEnabled(f))
}
