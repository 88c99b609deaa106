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
	"fmt"
	"io"
	"strings"
)

// Section is one titled block of a rendered report.
type Section struct {
	Title  string
	Status Icon
	Body   string
}

// ReportView is the display form of an analysis report.
type ReportView struct {
	Language string
	Verdict  string
	Icon     Icon
	Sections []Section
}

// WriteReport renders v to w.
//
// # Description
//
// Prints a header line with the verdict, then each section as a heading
// followed by its indented body. Empty bodies print "(none)". With a
// colored theme the header is boxed.
func WriteReport(w io.Writer, t Theme, v ReportView) error {
	var b strings.Builder

	header := fmt.Sprintf("%s %s  %s",
		t.Render(v.Icon),
		t.Title.Render("Verdict: "+v.Verdict),
		t.Muted.Render("("+v.Language+")"),
	)
	b.WriteString(t.Box.Render(header))
	b.WriteString("\n")

	for _, s := range v.Sections {
		b.WriteString("\n")
		b.WriteString(t.Render(s.Status))
		b.WriteString(" ")
		b.WriteString(t.Heading.Render(s.Title))
		b.WriteString("\n")

		body := strings.TrimRight(s.Body, "\n")
		if body == "" {
			b.WriteString("  " + t.Muted.Render("(none)") + "\n")
			continue
		}
		for line := range strings.Lines(body) {
			b.WriteString("  " + strings.TrimRight(line, "\n") + "\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
