// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianReview/pkg/ux"
	"github.com/AleutianAI/AleutianReview/services/review/pipeline"
)

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig("review-cli", !debugLogging)
	if err != nil {
		return err
	}
	defer logger.Close()

	code, err := readSource(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}
	if len(code) > cfg.Server.MaxCodeBytes {
		return fmt.Errorf("%s is %d bytes; the limit is %d", args[0], len(code), cfg.Server.MaxCodeBytes)
	}

	lang := ""
	if checkLang != "" {
		normalized, ok := pipeline.NormalizeLanguage(checkLang)
		if !ok {
			return fmt.Errorf("unsupported language %q (supported: %v)", checkLang, pipeline.SupportedLanguages)
		}
		lang = normalized
	}

	a, err := buildApp(cfg, nil)
	if err != nil {
		return err
	}

	report := a.pipeline.Analyze(cmd.Context(), pipeline.Submission{Code: string(code), Language: lang})

	out := cmd.OutOrStdout()
	if checkJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	color := false
	if f, ok := out.(*os.File); ok {
		color = ux.ColorEnabled(f)
	}
	return ux.WriteReport(out, ux.NewTheme(color), reportView(report))
}

func readSource(arg string, stdin io.Reader) ([]byte, error) {
	if arg == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(arg)
}

// reportView maps a report to its terminal layout.
func reportView(r *pipeline.Report) ux.ReportView {
	syntaxBody := "No syntax errors detected."
	if r.SyntaxError != nil {
		syntaxBody = *r.SyntaxError
	}
	if c, ok := r.Checks[pipeline.CheckSyntax]; ok && c.Status != pipeline.StatusOK && r.SyntaxError == nil {
		syntaxBody = c.Summary
	}

	syntaxIcon := checkIcon(r, pipeline.CheckSyntax, false)
	if r.SyntaxError != nil {
		syntaxIcon = ux.IconError
	}

	return ux.ReportView{
		Language: r.Language,
		Verdict:  string(r.Verdict),
		Icon:     verdictIcon(r.Verdict),
		Sections: []ux.Section{
			{Title: "Syntax", Status: syntaxIcon, Body: syntaxBody},
			{Title: "Best practices", Status: checkIcon(r, pipeline.CheckLint, r.BestPractices != ""), Body: r.BestPractices},
			{Title: "Linter", Status: checkIcon(r, pipeline.CheckLint, r.LinterResults != ""), Body: r.LinterResults},
			{Title: "Security", Status: checkIcon(r, pipeline.CheckSecurity, len(r.Checks[pipeline.CheckSecurity].Findings) > 0), Body: r.SecurityAnalysis},
			{Title: "Machine learning", Status: mlIcon(r), Body: r.MLResults},
		},
	}
}

func verdictIcon(v pipeline.Verdict) ux.Icon {
	switch v {
	case pipeline.VerdictClean:
		return ux.IconSuccess
	case pipeline.VerdictReview, pipeline.VerdictPotentialIssues:
		return ux.IconWarning
	case pipeline.VerdictCritical, pipeline.VerdictSyntaxError:
		return ux.IconError
	default:
		return ux.IconPending
	}
}

func checkIcon(r *pipeline.Report, name string, flagged bool) ux.Icon {
	c, ok := r.Checks[name]
	switch {
	case !ok || c.Status == pipeline.StatusSkipped:
		return ux.IconPending
	case c.Status == pipeline.StatusError:
		return ux.IconError
	case flagged:
		return ux.IconWarning
	default:
		return ux.IconSuccess
	}
}

func mlIcon(r *pipeline.Report) ux.Icon {
	switch r.Verdict {
	case pipeline.VerdictCritical:
		return ux.IconError
	case pipeline.VerdictPotentialIssues:
		return ux.IconWarning
	}
	return checkIcon(r, pipeline.CheckML, false)
}
