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
	"regexp"
	"strings"
)

// =============================================================================
// RULE
// =============================================================================

// Rule is a built-in line-oriented detection rule.
//
// Description:
//
//	A rule fires once per source line that matches Pattern and none of
//	FalsePositiveHints. Comment-only lines are ignored. When Secret is
//	set, the matched text is masked in the reported code.
//
// Thread Safety:
//
//	Safe for concurrent reads after compile.
type Rule struct {
	ID          string
	Name        string
	Description string
	CWE         int
	Severity    Level
	Confidence  Level

	// Languages restricts the rule. Empty means every language.
	Languages []string

	Pattern            string
	FalsePositiveHints []string

	// Secret marks rules whose matches must be masked.
	Secret bool

	// Covers lists external tool rule IDs that report the same defect.
	// The CWE they carry does not always agree with ours (bandit files
	// eval under CWE-78).
	Covers []string

	compiled      *regexp.Regexp
	compiledHints []*regexp.Regexp
}

func (r *Rule) compile() error {
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidRule, r.ID, err)
	}
	r.compiled = re

	r.compiledHints = r.compiledHints[:0]
	for _, hint := range r.FalsePositiveHints {
		h, err := regexp.Compile(hint)
		if err != nil {
			return fmt.Errorf("%w: %s hint: %v", ErrInvalidRule, r.ID, err)
		}
		r.compiledHints = append(r.compiledHints, h)
	}
	return nil
}

// AppliesTo reports whether the rule runs for a language.
func (r *Rule) AppliesTo(language string) bool {
	if len(r.Languages) == 0 {
		return true
	}
	for _, l := range r.Languages {
		if l == language {
			return true
		}
	}
	return false
}

// matchLine returns a finding for a line, or false if it does not fire.
func (r *Rule) matchLine(line string, lineNum int) (Finding, bool) {
	loc := r.compiled.FindStringSubmatchIndex(line)
	if loc == nil {
		return Finding{}, false
	}
	for _, hint := range r.compiledHints {
		if hint.MatchString(line) {
			return Finding{}, false
		}
	}

	code := strings.TrimSpace(line)
	if r.Secret {
		// Mask the first capture group when present, else the whole match.
		start, end := loc[0], loc[1]
		if len(loc) >= 4 && loc[2] >= 0 {
			start, end = loc[2], loc[3]
		}
		code = maskSecret(code, line[start:end])
	}

	return Finding{
		RuleID:     r.ID,
		Name:       r.Name,
		Text:       r.Description,
		Severity:   r.Severity,
		Confidence: r.Confidence,
		CWE:        r.CWE,
		Line:       lineNum,
		Code:       code,
		Source:     "builtin",
		Covers:     r.Covers,
	}, true
}

// maskSecret hides all but the first and last two characters of secret
// wherever it appears in context.
func maskSecret(context, secret string) string {
	if len(secret) == 0 {
		return context
	}

	if len(secret) <= 8 {
		return strings.ReplaceAll(context, secret, "****")
	}

	maskLen := max(len(secret)-4, 1)
	masked := secret[:2] + strings.Repeat("*", maskLen) + secret[len(secret)-2:]
	return strings.ReplaceAll(context, secret, masked)
}

// =============================================================================
// RULE SET
// =============================================================================

// RuleSet is a compiled collection of rules.
//
// Thread Safety: Safe for concurrent use.
type RuleSet struct {
	rules []*Rule
}

// NewRuleSet compiles the given rules.
func NewRuleSet(rules []*Rule) (*RuleSet, error) {
	for _, r := range rules {
		if err := r.compile(); err != nil {
			return nil, err
		}
	}
	return &RuleSet{rules: rules}, nil
}

// DefaultRuleSet returns the compiled built-in rules.
func DefaultRuleSet() *RuleSet {
	rs, err := NewRuleSet(defaultRules())
	if err != nil {
		panic(fmt.Sprintf("security: default rules invalid: %v", err))
	}
	return rs
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// Scan applies every rule for the language to code.
func (rs *RuleSet) Scan(code, language string) []Finding {
	var findings []Finding
	lines := strings.Split(code, "\n")

	for i, line := range lines {
		if isCommentLine(line, language) {
			continue
		}
		for _, r := range rs.rules {
			if !r.AppliesTo(language) {
				continue
			}
			if f, ok := r.matchLine(line, i+1); ok {
				findings = append(findings, f)
			}
		}
	}
	return findings
}

func isCommentLine(line, language string) bool {
	trimmed := strings.TrimSpace(line)
	switch language {
	case "python":
		return strings.HasPrefix(trimmed, "#")
	default:
		return strings.HasPrefix(trimmed, "//")
	}
}

// =============================================================================
// DEFAULT RULES
// =============================================================================

var placeholderHints = []string{
	`(?i)example`,
	`(?i)placeholder`,
	`(?i)your[_-]?`,
	`(?i)xxx+`,
	`(?i)getenv|environ|process\.env`,
}

// defaultRules returns the built-in rule definitions.
func defaultRules() []*Rule {
	return []*Rule{
		// Hardcoded secrets
		{
			ID: "RS101", Name: "hardcoded_api_key",
			Description: "Possible hardcoded API key.",
			CWE:         798, Severity: LevelHigh, Confidence: LevelMedium,
			Pattern:            `(?i)(?:api[_-]?key|apikey)\s*[=:]\s*["']([a-zA-Z0-9_\-]{20,})["']`,
			FalsePositiveHints: placeholderHints,
			Secret:             true,
			Covers:             []string{"G101"},
		},
		{
			ID: "RS102", Name: "aws_access_key",
			Description: "AWS access key ID embedded in source.",
			CWE:         798, Severity: LevelHigh, Confidence: LevelHigh,
			Pattern:            `(?:A3T[A-Z0-9]|AKIA|AGPA|AIDA|AROA|AIPA|ANPA|ANVA|ASIA)[A-Z0-9]{16}`,
			FalsePositiveHints: []string{`(?i)example`},
			Secret:             true,
			Covers:             []string{"G101"},
		},
		{
			ID: "RS103", Name: "aws_secret_key",
			Description: "AWS secret access key embedded in source.",
			CWE:         798, Severity: LevelHigh, Confidence: LevelHigh,
			Pattern: `(?i)(?:aws)?[_-]?secret[_-]?(?:access)?[_-]?key\s*[=:]\s*["']([a-zA-Z0-9/+=]{40})["']`,
			Secret:  true,
			Covers:  []string{"G101"},
		},
		{
			ID: "RS104", Name: "gcp_api_key",
			Description: "Google Cloud API key embedded in source.",
			CWE:         798, Severity: LevelHigh, Confidence: LevelHigh,
			Pattern: `AIza[0-9A-Za-z_-]{35}`,
			Secret:  true,
			Covers:  []string{"G101"},
		},
		{
			ID: "RS105", Name: "hardcoded_password_string",
			Description: "Possible hardcoded password.",
			CWE:         259, Severity: LevelLow, Confidence: LevelMedium,
			Pattern: `(?i)(?:password|passwd|pwd)\s*[=:]\s*["']([^"']{8,})["']`,
			FalsePositiveHints: []string{
				`(?i)(?:password|passwd|pwd)\s*[=:]\s*["'](?:password|test|example|changeme|xxx)["']`,
				`(?i)getenv|environ|process\.env`,
			},
			Secret: true,
			Covers: []string{"B105", "B106", "B107", "G101"},
		},
		{
			ID: "RS106", Name: "private_key",
			Description: "Private key material embedded in source.",
			CWE:         321, Severity: LevelHigh, Confidence: LevelHigh,
			Pattern: `-----BEGIN (?:RSA |DSA |EC |OPENSSH )?PRIVATE KEY-----`,
		},
		{
			ID: "RS107", Name: "github_token",
			Description: "GitHub token embedded in source.",
			CWE:         798, Severity: LevelHigh, Confidence: LevelHigh,
			Pattern: `(?:ghp|gho|ghu|ghs|ghr)_[a-zA-Z0-9]{36,}`,
			Secret:  true,
			Covers:  []string{"G101"},
		},
		{
			ID: "RS108", Name: "stripe_key",
			Description: "Stripe API key embedded in source.",
			CWE:         798, Severity: LevelHigh, Confidence: LevelHigh,
			Pattern: `(?:sk|rk)_live_[0-9a-zA-Z]{24,}`,
			Secret:  true,
			Covers:  []string{"G101"},
		},
		{
			ID: "RS109", Name: "slack_token",
			Description: "Slack token embedded in source.",
			CWE:         798, Severity: LevelMedium, Confidence: LevelHigh,
			Pattern: `xox[baprs]-[0-9a-zA-Z-]{10,}`,
			Secret:  true,
			Covers:  []string{"G101"},
		},
		{
			ID: "RS110", Name: "database_url_with_credentials",
			Description: "Database connection string with embedded credentials.",
			CWE:         798, Severity: LevelMedium, Confidence: LevelMedium,
			Pattern: `(?i)(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis)://[^:/\s]+:[^@\s]+@[^\s"']+`,
			Secret:  true,
			Covers:  []string{"G101"},
		},
		{
			ID: "RS111", Name: "hardcoded_secret",
			Description: "Possible hardcoded secret or token.",
			CWE:         798, Severity: LevelMedium, Confidence: LevelLow,
			Pattern:            `(?i)(?:secret|token|credential)\s*[=:]\s*["']([a-zA-Z0-9_\-]{20,})["']`,
			FalsePositiveHints: placeholderHints,
			Secret:             true,
			Covers:             []string{"B105", "G101"},
		},

		// Dangerous calls
		{
			ID: "RD201", Name: "eval_used",
			Description: "Use of possibly insecure function eval. Consider ast.literal_eval or JSON parsing.",
			CWE:         95, Severity: LevelMedium, Confidence: LevelHigh,
			Languages: []string{"python", "javascript", "typescript"},
			Pattern:   `(?:^|[^.\w])eval\s*\(`,
			Covers:    []string{"B307"},
		},
		{
			ID: "RD202", Name: "exec_used",
			Description: "Use of exec detected.",
			CWE:         78, Severity: LevelMedium, Confidence: LevelHigh,
			Languages: []string{"python"},
			Pattern:   `(?:^|[^.\w])exec\s*\(`,
			Covers:    []string{"B102"},
		},
		{
			ID: "RD203", Name: "subprocess_shell_true",
			Description: "subprocess call with shell=True identified, security issue.",
			CWE:         78, Severity: LevelHigh, Confidence: LevelHigh,
			Languages: []string{"python"},
			Pattern:   `subprocess\.\w+\(.*shell\s*=\s*True`,
			Covers:    []string{"B602", "B604"},
		},
		{
			ID: "RD204", Name: "start_process_with_a_shell",
			Description: "Starting a process with a shell, possible injection detected.",
			CWE:         78, Severity: LevelMedium, Confidence: LevelHigh,
			Languages: []string{"python"},
			Pattern:   `\bos\.(?:system|popen)\s*\(`,
			Covers:    []string{"B605", "B607"},
		},
		{
			ID: "RD205", Name: "pickle_load",
			Description: "Deserializing with pickle can execute arbitrary code on untrusted data.",
			CWE:         502, Severity: LevelMedium, Confidence: LevelHigh,
			Languages: []string{"python"},
			Pattern:   `\b(?:c?pickle|dill|shelve)\.(?:loads?|Unpickler|open)\s*\(`,
			Covers:    []string{"B301", "B403"},
		},
		{
			ID: "RD206", Name: "yaml_load",
			Description: "Use of unsafe yaml load. Use yaml.safe_load or pass Loader=SafeLoader.",
			CWE:         20, Severity: LevelMedium, Confidence: LevelHigh,
			Languages:          []string{"python"},
			Pattern:            `\byaml\.load\s*\(`,
			FalsePositiveHints: []string{`SafeLoader|CSafeLoader|BaseLoader`},
			Covers:             []string{"B506"},
		},
		{
			ID: "RD207", Name: "child_process_exec",
			Description: "child_process exec runs a shell command, possible injection.",
			CWE:         78, Severity: LevelHigh, Confidence: LevelMedium,
			Languages: []string{"javascript", "typescript"},
			Pattern:   `\bchild_process\.exec(?:Sync)?\s*\(|\bexecSync\s*\(`,
		},
		{
			ID: "RD208", Name: "function_constructor",
			Description: "Function constructor evaluates a string as code.",
			CWE:         95, Severity: LevelMedium, Confidence: LevelHigh,
			Languages: []string{"javascript", "typescript"},
			Pattern:   `\bnew\s+Function\s*\(`,
		},
		{
			ID: "RD209", Name: "inner_html",
			Description: "Assignment to innerHTML may allow cross-site scripting.",
			CWE:         79, Severity: LevelMedium, Confidence: LevelMedium,
			Languages: []string{"javascript", "typescript"},
			Pattern:   `\.(?:inner|outer)HTML\s*=|document\.write\s*\(`,
		},
		{
			ID: "RD210", Name: "shell_command",
			Description: "Command executed through a shell, possible injection.",
			CWE:         78, Severity: LevelHigh, Confidence: LevelMedium,
			Languages: []string{"go"},
			Pattern:   `exec\.Command(?:Context)?\([^)]*"(?:/bin/)?(?:sh|bash|zsh)"\s*,\s*"-c"`,
			Covers:    []string{"G204"},
		},
		{
			ID: "RD211", Name: "weak_hash",
			Description: "Use of weak MD5 or SHA1 hash for security.",
			CWE:         327, Severity: LevelMedium, Confidence: LevelHigh,
			Pattern: `\bhashlib\.(?:md5|sha1)\s*\(|\b(?:md5|sha1)\.(?:New|Sum)\s*\(|createHash\(\s*["'](?:md5|sha1)["']`,
			Covers:  []string{"B303", "B324", "G401", "G501", "G505"},
		},
		{
			ID: "RD212", Name: "tls_verification_disabled",
			Description: "TLS certificate verification is disabled.",
			CWE:         295, Severity: LevelHigh, Confidence: LevelHigh,
			Pattern: `verify\s*=\s*False|InsecureSkipVerify:\s*true|rejectUnauthorized:\s*false`,
			Covers:  []string{"B501", "G402"},
		},
	}
}
