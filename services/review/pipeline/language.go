// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"regexp"
	"strings"
)

// Canonical language names.
const (
	LangPython     = "python"
	LangJavaScript = "javascript"
	LangTypeScript = "typescript"
	LangGo         = "go"
)

// SupportedLanguages lists the canonical names accepted as hints.
var SupportedLanguages = []string{LangGo, LangJavaScript, LangPython, LangTypeScript}

var languageAliases = map[string]string{
	"python":     LangPython,
	"py":         LangPython,
	"python3":    LangPython,
	"javascript": LangJavaScript,
	"js":         LangJavaScript,
	"jsx":        LangJavaScript,
	"node":       LangJavaScript,
	"typescript": LangTypeScript,
	"ts":         LangTypeScript,
	"tsx":        LangTypeScript,
	"go":         LangGo,
	"golang":     LangGo,
}

// NormalizeLanguage maps a hint to its canonical name.
// Returns false when the hint names an unsupported language.
func NormalizeLanguage(hint string) (string, bool) {
	lang, ok := languageAliases[strings.ToLower(strings.TrimSpace(hint))]
	return lang, ok
}

var jsLeadingKeyword = regexp.MustCompile(`^(function|const|let|var)(\s|\(|$)`)

// DetectLanguage guesses the language of an unlabeled snippet.
//
// Leading blank lines and // comment lines are ignored. A snippet that then
// starts with function, const, let or var is javascript; one that starts
// with a package clause is go; everything else is python.
func DetectLanguage(code string) string {
	first := firstCodeLine(code)
	switch {
	case jsLeadingKeyword.MatchString(first):
		return LangJavaScript
	case strings.HasPrefix(first, "package "):
		return LangGo
	default:
		return LangPython
	}
}

func firstCodeLine(code string) string {
	for line := range strings.Lines(code) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		return line
	}
	return ""
}

// ResolveLanguage returns the canonical language for s. A supported hint
// wins. An empty or unsupported hint falls back to DetectLanguage.
func ResolveLanguage(s Submission) string {
	if lang, ok := NormalizeLanguage(s.Language); ok {
		return lang
	}
	return DetectLanguage(s.Code)
}
