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
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianReview/services/review/lint"
	"github.com/AleutianAI/AleutianReview/services/review/observability"
	"github.com/AleutianAI/AleutianReview/services/review/security"
	"github.com/AleutianAI/AleutianReview/services/review/syntax"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeSyntax struct {
	result *syntax.Result
	err    error
}

func (f *fakeSyntax) Check(_ context.Context, _ string, language string) (*syntax.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	r := *f.result
	r.Language = language
	return &r, nil
}

func validSyntax() *fakeSyntax {
	return &fakeSyntax{result: &syntax.Result{Valid: true}}
}

func invalidSyntax() *fakeSyntax {
	return &fakeSyntax{result: &syntax.Result{
		Valid:  false,
		Issues: []syntax.Issue{{Kind: syntax.KindMissing, Line: 1, Column: 10, Token: ")"}},
	}}
}

type fakeLinter struct {
	result *lint.LintResult
	err    error
	calls  atomic.Int32
}

func (f *fakeLinter) LintContent(_ context.Context, _ []byte, language string) (*lint.LintResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	r := *f.result
	r.Language = language
	return &r, nil
}

func cleanLinter() *fakeLinter {
	return &fakeLinter{result: &lint.LintResult{Linters: []string{"pylint"}}}
}

func linterWith(rules ...string) *fakeLinter {
	issues := make([]lint.LintIssue, len(rules))
	for i, r := range rules {
		issues[i] = lint.LintIssue{File: "<content>", Line: 1, Rule: r, Linter: "pylint"}
	}
	return &fakeLinter{result: &lint.LintResult{Linters: []string{"pylint"}, Issues: issues}}
}

type fakeScanner struct {
	result *security.ScanResult
	err    error
	called atomic.Bool
}

func (f *fakeScanner) Scan(_ context.Context, _ string, _ string) (*security.ScanResult, error) {
	f.called.Store(true)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeScanner) ToolName(string) string { return "bandit" }

func cleanScanner() *fakeScanner {
	return &fakeScanner{result: &security.ScanResult{Tool: "bandit", Coverage: security.CoverageFull}}
}

type fakeClassifier struct {
	score   float64
	err     error
	panics  bool
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (f *fakeClassifier) Classify(ctx context.Context, _ string) (float64, error) {
	f.calls.Add(1)
	if f.panics {
		panic("model exploded")
	}
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.score, f.err
}

func (f *fakeClassifier) Name() string { return "fake" }

// =============================================================================
// Tests
// =============================================================================

func TestAnalyze_SyntaxErrorSkipsSecurity(t *testing.T) {
	scanner := cleanScanner()
	p := New(invalidSyntax(), cleanLinter(), scanner, &fakeClassifier{score: 0.2})

	r := p.Analyze(context.Background(), Submission{Code: "print(1", Language: "python"})

	require.NotNil(t, r.SyntaxError)
	assert.Equal(t, `SyntaxError detected: missing ")" at line 1, column 10`, *r.SyntaxError)
	assert.Equal(t, "Skipping bandit due to syntax errors.", r.SecurityAnalysis)
	assert.False(t, scanner.called.Load())
	assert.Equal(t, StatusSkipped, r.Checks[CheckSecurity].Status)
	assert.Equal(t, VerdictSyntaxError, r.Verdict)
}

func TestAnalyze_IndentationErrorSkipsSecurity(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not installed")
	}
	checker := syntax.NewChecker()
	checker.DetectAvailableCompilers()
	scanner := cleanScanner()
	p := New(checker, cleanLinter(), scanner, &fakeClassifier{score: 0.2})

	r := p.Analyze(context.Background(), Submission{
		Code:     "def f():\n    x = 1\n      y = 2\n    return x\n",
		Language: "python",
	})

	require.NotNil(t, r.SyntaxError)
	assert.Contains(t, *r.SyntaxError, "IndentationError")
	assert.False(t, scanner.called.Load())
	assert.Equal(t, StatusSkipped, r.Checks[CheckSecurity].Status)
	assert.Equal(t, VerdictSyntaxError, r.Verdict)
}

func TestAnalyze_AllCleanIsReconciled(t *testing.T) {
	p := New(validSyntax(), cleanLinter(), cleanScanner(), &fakeClassifier{score: 0.3})

	r := p.Analyze(context.Background(), Submission{Code: "x = 1\n"})

	assert.Nil(t, r.SyntaxError)
	assert.Equal(t, ReconciledCleanMessage, r.MLResults)
	assert.Equal(t, security.CleanMessage, r.SecurityAnalysis)
	assert.Equal(t, VerdictClean, r.Verdict)
	assert.Equal(t, LangPython, r.Language)
	require.NotNil(t, r.Confidence)
	assert.Equal(t, 0.3, *r.Confidence)
}

func TestAnalyze_BestPracticeTipsDoNotBlockClean(t *testing.T) {
	p := New(validSyntax(), linterWith("C0114"), cleanScanner(), &fakeClassifier{score: 0.1})

	r := p.Analyze(context.Background(), Submission{Code: "x = 1\n"})

	assert.Contains(t, r.BestPractices, "2. There is no module-level docstring.")
	assert.Empty(t, r.LinterResults)
	assert.Equal(t, ReconciledCleanMessage, r.MLResults)
	assert.Equal(t, VerdictClean, r.Verdict)
}

func TestAnalyze_MLThresholdMessages(t *testing.T) {
	tests := []struct {
		score   float64
		text    string
		verdict Verdict
	}{
		{0.95, "Critical issues detected with high confidence (0.95). Immediate review needed.", VerdictCritical},
		{0.91, "Critical issues detected with high confidence (0.91). Immediate review needed.", VerdictCritical},
		{0.90, "Potential issues detected with a confidence of 0.90. Review recommended.", VerdictPotentialIssues},
		{0.80, "Potential issues detected with a confidence of 0.80. Review recommended.", VerdictPotentialIssues},
		{0.75, "The code appears clean with a confidence of 0.25.", VerdictReview},
		{0.40, "The code appears clean with a confidence of 0.60.", VerdictReview},
	}

	for _, tt := range tests {
		// W292 is a linter-category tip, so reconciliation never overrides.
		p := New(validSyntax(), linterWith("W292"), cleanScanner(), &fakeClassifier{score: tt.score})
		r := p.Analyze(context.Background(), Submission{Code: "x = 1"})

		assert.Equal(t, tt.text, r.MLResults, "score %v", tt.score)
		assert.Equal(t, tt.verdict, r.Verdict, "score %v", tt.score)
		assert.Equal(t, "1. There is no newline at the end of the file, which is generally considered bad practice in Python.", r.LinterResults)
	}
}

func TestAnalyze_AllFieldsPresentWhenEverythingFails(t *testing.T) {
	p := New(
		&fakeSyntax{err: syntax.ErrTooLarge},
		&fakeLinter{err: errors.Join(lint.NewLinterError("pylint", "python", lint.ErrLinterFailed).WithOutput("crash"))},
		&fakeScanner{err: security.ErrScannerTimeout},
		&fakeClassifier{err: errors.New("connection refused")},
	)

	r := p.Analyze(context.Background(), Submission{Code: "x = 1"})

	assert.Nil(t, r.SyntaxError)
	assert.Equal(t, "Linter pylint failed: linter execution failed: crash", r.BestPractices)
	assert.Equal(t, r.BestPractices, r.LinterResults)
	assert.Equal(t, "Machine learning analysis unavailable: connection refused", r.MLResults)
	assert.Equal(t, "Security analysis failed: scanner timeout", r.SecurityAnalysis)
	assert.Equal(t, VerdictUnknown, r.Verdict)
	assert.Nil(t, r.Confidence)

	for _, name := range []string{CheckSyntax, CheckLint, CheckSecurity, CheckML} {
		assert.Equal(t, StatusError, r.Checks[name].Status, name)
		assert.NotEmpty(t, r.Checks[name].Err, name)
	}

	data, err := json.Marshal(r)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, key := range []string{"syntax_error", "best_practices", "linter_results", "ml_results", "security_analysis"} {
		assert.Contains(t, fields, key)
	}
}

func TestAnalyze_NilCollaboratorsAreSkipped(t *testing.T) {
	r := New(nil, nil, nil, nil).Analyze(context.Background(), Submission{Code: "x = 1"})

	assert.Equal(t, "Static analysis is not configured.", r.LinterResults)
	assert.Equal(t, "Security analysis is not configured.", r.SecurityAnalysis)
	assert.Equal(t, "Machine learning analysis is not configured.", r.MLResults)
	for _, c := range r.Checks {
		assert.Equal(t, StatusSkipped, c.Status, c.Name)
	}
	assert.Equal(t, VerdictUnknown, r.Verdict)
}

func TestAnalyze_LinterNotInstalled(t *testing.T) {
	l := &fakeLinter{err: lint.NewLinterError("pylint, ruff", "python", lint.ErrLinterNotInstalled)}
	p := New(validSyntax(), l, cleanScanner(), &fakeClassifier{score: 0.1})

	r := p.Analyze(context.Background(), Submission{Code: "x = 1"})

	assert.Equal(t, "Linter pylint, ruff is not installed; static analysis skipped.", r.LinterResults)
	assert.Equal(t, StatusSkipped, r.Checks[CheckLint].Status)
	assert.NotEqual(t, ReconciledCleanMessage, r.MLResults, "a skipped linter cannot vouch for the code")
	assert.Equal(t, VerdictReview, r.Verdict)
}

func TestAnalyze_DegradedSecurityIsNotClean(t *testing.T) {
	s := &fakeScanner{result: &security.ScanResult{Tool: "bandit", Coverage: security.CoverageDegraded}}
	p := New(validSyntax(), cleanLinter(), s, &fakeClassifier{score: 0.1})

	r := p.Analyze(context.Background(), Submission{Code: "x = 1"})

	assert.Equal(t, StatusSkipped, r.Checks[CheckSecurity].Status)
	assert.Contains(t, r.SecurityAnalysis, "bandit is not installed")
	assert.Equal(t, "The code appears clean with a confidence of 0.90.", r.MLResults)
	assert.Equal(t, VerdictReview, r.Verdict)
}

func TestAnalyze_SecurityFindingsBlockClean(t *testing.T) {
	s := &fakeScanner{result: &security.ScanResult{
		Tool:     "bandit",
		Coverage: security.CoverageFull,
		Findings: []security.Finding{{RuleID: "B307", Name: "blacklist", Text: "Use of eval.", Severity: security.LevelMedium, Confidence: security.LevelHigh, Line: 1}},
	}}
	p := New(validSyntax(), cleanLinter(), s, &fakeClassifier{score: 0.1})

	r := p.Analyze(context.Background(), Submission{Code: "eval(x)"})

	assert.Contains(t, r.SecurityAnalysis, ">> Issue: [B307:blacklist] Use of eval.")
	assert.Equal(t, []string{"[B307] Use of eval. (line 1)"}, r.Checks[CheckSecurity].Findings)
	assert.Equal(t, VerdictReview, r.Verdict)
}

func TestAnalyze_PanicIsContained(t *testing.T) {
	p := New(validSyntax(), cleanLinter(), cleanScanner(), &fakeClassifier{panics: true})

	r := p.Analyze(context.Background(), Submission{Code: "x = 1"})

	assert.Equal(t, StatusError, r.Checks[CheckML].Status)
	assert.Contains(t, r.MLResults, "Machine learning analysis unavailable: check panicked: model exploded")
	assert.Equal(t, StatusOK, r.Checks[CheckLint].Status)
	assert.Equal(t, StatusOK, r.Checks[CheckSecurity].Status)
}

func TestAnalyze_ConcurrentIdenticalSubmissionsShareOneRun(t *testing.T) {
	c := &fakeClassifier{score: 0.5, started: make(chan struct{}, 1), release: make(chan struct{})}
	l := cleanLinter()
	reg := prometheus.NewRegistry()
	m := observability.NewReviewMetrics(reg)
	p := New(validSyntax(), l, cleanScanner(), c, WithMetrics(m))

	sub := Submission{Code: "x = 1", Language: "python"}
	reports := make([]*Report, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		reports[0] = p.Analyze(context.Background(), sub)
	}()
	<-c.started

	wg.Add(1)
	go func() {
		defer wg.Done()
		reports[1] = p.Analyze(context.Background(), sub)
	}()
	time.Sleep(100 * time.Millisecond)
	close(c.release)
	wg.Wait()

	assert.Equal(t, int32(1), c.calls.Load())
	assert.Equal(t, int32(1), l.calls.Load())
	require.NotNil(t, reports[0])
	require.NotNil(t, reports[1])
	assert.Equal(t, reports[0].MLResults, reports[1].MLResults)

	reports[0].Checks[CheckML] = CheckResult{Summary: "mutated"}
	assert.NotEqual(t, "mutated", reports[1].Checks[CheckML].Summary, "callers own their copy")
	assert.Equal(t, float64(2), testutil.ToFloat64(m.DedupedTotal))
}

func TestAnalyze_CallerCancellation(t *testing.T) {
	c := &fakeClassifier{score: 0.5, started: make(chan struct{}, 1), release: make(chan struct{})}
	p := New(validSyntax(), cleanLinter(), cleanScanner(), c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan *Report, 1)
	go func() { done <- p.Analyze(ctx, Submission{Code: "x = 1"}) }()

	<-c.started
	cancel()
	r := <-done
	close(c.release)

	assert.Equal(t, VerdictUnknown, r.Verdict)
	assert.Contains(t, r.MLResults, "Analysis cancelled")
	assert.Len(t, r.Checks, 4)
}

func TestAnalyze_RecordsMetrics(t *testing.T) {
	m := observability.NewReviewMetrics(prometheus.NewRegistry())
	p := New(invalidSyntax(), cleanLinter(), cleanScanner(), &fakeClassifier{score: 0.2}, WithMetrics(m))

	p.Analyze(context.Background(), Submission{Code: "def f(:"})

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ChecksTotal.WithLabelValues(CheckSyntax, "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ChecksTotal.WithLabelValues(CheckSecurity, "skipped")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ChecksTotal.WithLabelValues(CheckLint, "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ChecksTotal.WithLabelValues(CheckML, "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.VerdictsTotal.WithLabelValues(string(VerdictSyntaxError))))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.InFlight))
}

func TestAnalyze_UsesDetectedLanguage(t *testing.T) {
	p := New(validSyntax(), cleanLinter(), cleanScanner(), nil)

	r := p.Analyze(context.Background(), Submission{Code: "const x = 1;"})
	assert.Equal(t, LangJavaScript, r.Language)

	r = p.Analyze(context.Background(), Submission{Code: "const x = 1;", Language: "TS"})
	assert.Equal(t, LangTypeScript, r.Language)
}

func TestReport_CloneNil(t *testing.T) {
	var r *Report
	assert.Nil(t, r.Clone())
}
