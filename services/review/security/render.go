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
	"fmt"
	"strings"
)

// CleanMessage replaces the report when a conclusive scan found nothing.
const CleanMessage = "The security analysis did not find any issues with this code. It appears safe from known security vulnerabilities."

// SkippedForSyntaxMessage is the report text when a syntax error prevented the scan.
func SkippedForSyntaxMessage(tool string) string {
	if tool == "" {
		tool = "security analysis"
	}
	return fmt.Sprintf("Skipping %s due to syntax errors.", tool)
}

// UnavailableMessage is the report text when the external tool is missing
// and the built-in rules found nothing.
func UnavailableMessage(tool string) string {
	return fmt.Sprintf("Security scanner %s is not installed; only built-in rules ran and they found no issues.", tool)
}

// Render formats a scan result as report text.
//
// Description:
//
//	Conclusive clean scans become CleanMessage. Otherwise each finding is
//	printed in a bandit-style block:
//
//	  >> Issue: [B602:subprocess_popen_with_shell_equals_true] subprocess call ...
//	     Severity: High   Confidence: High
//	     CWE: CWE-78
//	     Location: <content>:3
//	     subprocess.call(cmd, shell=True)
func Render(r *ScanResult) string {
	if r == nil {
		return ""
	}
	if len(r.Findings) == 0 {
		if r.Coverage == CoverageDegraded {
			return UnavailableMessage(r.Tool)
		}
		return CleanMessage
	}

	var b strings.Builder
	for i, f := range r.Findings {
		if i > 0 {
			b.WriteString("\n")
		}
		writeFinding(&b, f)
	}

	if r.Coverage == CoverageDegraded {
		fmt.Fprintf(&b, "\nNote: %s is not installed; only built-in rules were applied.", r.Tool)
	}

	fmt.Fprintf(&b, "\nTotal issues: %d", len(r.Findings))
	return b.String()
}

func writeFinding(b *strings.Builder, f Finding) {
	fmt.Fprintf(b, ">> Issue: [%s:%s] %s\n", f.RuleID, f.Name, f.Text)
	fmt.Fprintf(b, "   Severity: %s   Confidence: %s\n", f.Severity.Title(), f.Confidence.Title())
	if f.CWE > 0 {
		fmt.Fprintf(b, "   CWE: CWE-%d\n", f.CWE)
	}
	fmt.Fprintf(b, "   Location: <content>:%d\n", f.Line)
	if f.Code != "" {
		fmt.Fprintf(b, "   %s\n", f.Code)
	}
}
