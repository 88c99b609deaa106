// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline orchestrates the review checks for one snippet.
//
// # Description
//
// Analyze runs four checks against a submission and folds their results
// into a single Report:
//
//   - syntax: parse-only validation
//   - lint: external linters, translated to tips
//   - security: external scanner plus built-in rules, after syntax
//   - ml: remote classifier score
//
// Syntax and security run as a chain. Lint and ML run alongside that chain.
// A failing, panicking or timed-out check becomes a CheckResult with a
// placeholder text. Analyze itself never fails.
//
// # Thread Safety
//
// A Pipeline is safe for concurrent use. Identical concurrent submissions
// share one run.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/AleutianReview/services/review/classifier"
	"github.com/AleutianAI/AleutianReview/services/review/lint"
	"github.com/AleutianAI/AleutianReview/services/review/observability"
	"github.com/AleutianAI/AleutianReview/services/review/security"
	"github.com/AleutianAI/AleutianReview/services/review/syntax"
)

var tracer = otel.Tracer("aleutian.review.pipeline")

// ErrCheckPanicked wraps a recovered panic from a collaborator.
var ErrCheckPanicked = errors.New("check panicked")

// SyntaxChecker validates a snippet without executing it.
type SyntaxChecker interface {
	Check(ctx context.Context, code, language string) (*syntax.Result, error)
}

// Linter runs static analysis on a snippet.
type Linter interface {
	LintContent(ctx context.Context, content []byte, language string) (*lint.LintResult, error)
}

// TipTranslator turns lint issues into canned tips.
type TipTranslator interface {
	Translate(issues []lint.LintIssue) lint.Tips
}

// SecurityScanner scans a snippet for vulnerabilities.
type SecurityScanner interface {
	Scan(ctx context.Context, code, language string) (*security.ScanResult, error)
	ToolName(language string) string
}

// Pipeline runs the checks. Create with New.
type Pipeline struct {
	syntax     SyntaxChecker
	linter     Linter
	tips       TipTranslator
	scanner    SecurityScanner
	classifier classifier.Classifier

	timeouts Timeouts
	metrics  *observability.ReviewMetrics
	group    singleflight.Group
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTimeouts sets per-check timeouts. Zero fields keep their defaults.
func WithTimeouts(t Timeouts) Option {
	return func(p *Pipeline) { p.timeouts = t.withDefaults() }
}

// WithMetrics records check metrics to m.
func WithMetrics(m *observability.ReviewMetrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithTips replaces the tip catalog.
func WithTips(t TipTranslator) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.tips = t
		}
	}
}

// New creates a Pipeline. Any collaborator may be nil, in which case its
// check is reported as skipped.
func New(sc SyntaxChecker, l Linter, s SecurityScanner, c classifier.Classifier, opts ...Option) *Pipeline {
	p := &Pipeline{
		syntax:     sc,
		linter:     l,
		tips:       lint.DefaultTipCatalog(),
		scanner:    s,
		classifier: c,
		timeouts:   DefaultTimeouts(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Analyze produces the report for one submission.
//
// Description:
//
//	Resolves the language, then runs the checks. A caller whose context is
//	cancelled gets a report whose checks all carry the cancellation error;
//	the shared run continues for any other caller waiting on it.
//
// Inputs:
//
//	ctx - Cancels the wait. Check timeouts bound the run itself.
//	sub - The snippet and optional language hint.
//
// Outputs:
//
//	*Report - Never nil. Owned by the caller.
//
// Thread Safety: Safe for concurrent use.
func (p *Pipeline) Analyze(ctx context.Context, sub Submission) *Report {
	if ctx == nil {
		ctx = context.Background()
	}
	lang := ResolveLanguage(sub)

	sum := sha256.Sum256([]byte(sub.Code))
	key := lang + ":" + hex.EncodeToString(sum[:])

	ch := p.group.DoChan(key, func() (any, error) {
		return p.run(context.WithoutCancel(ctx), lang, sub.Code), nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			p.metrics.RecordDeduplicated()
		}
		return res.Val.(*Report).Clone()
	case <-ctx.Done():
		return cancelledReport(lang, ctx.Err())
	}
}

func (p *Pipeline) run(ctx context.Context, lang, code string) *Report {
	p.metrics.AnalysisStarted()
	defer p.metrics.AnalysisFinished()

	ctx, span := tracer.Start(ctx, "pipeline.Analyze")
	defer span.End()
	span.SetAttributes(
		attribute.String("review.language", lang),
		attribute.Int("review.code_bytes", len(code)),
	)

	var (
		syn *syntaxOutcome
		sec *securityOutcome
		lnt *lintOutcome
		ml  *mlOutcome
	)

	var g errgroup.Group
	g.Go(func() error {
		syn = runGuarded(ctx, p, CheckSyntax, syntaxFailed, func(ctx context.Context) *syntaxOutcome {
			return p.runSyntax(ctx, lang, code)
		})
		sec = runGuarded(ctx, p, CheckSecurity, securityFailed, func(ctx context.Context) *securityOutcome {
			return p.runSecurity(ctx, lang, code, syn)
		})
		return nil
	})
	g.Go(func() error {
		lnt = runGuarded(ctx, p, CheckLint, lintFailed, func(ctx context.Context) *lintOutcome {
			return p.runLint(ctx, lang, code)
		})
		return nil
	})
	g.Go(func() error {
		ml = runGuarded(ctx, p, CheckML, mlFailed, func(ctx context.Context) *mlOutcome {
			return p.runML(ctx, code)
		})
		return nil
	})
	_ = g.Wait()

	mlText, verdict := reconcile(signals{
		syntaxError:   syn.syntaxError != nil,
		lintOK:        lnt.res.Status == StatusOK,
		linterTips:    lnt.linterTips,
		securityOK:    sec.res.Status == StatusOK,
		securityClean: sec.clean,
		mlOK:          ml.res.Status == StatusOK,
		mlScore:       ml.score,
		mlLevel:       ml.level,
		mlText:        ml.text,
	})

	report := &Report{
		SyntaxError:      syn.syntaxError,
		BestPractices:    lnt.bestPractices,
		LinterResults:    lnt.linterResults,
		MLResults:        mlText,
		SecurityAnalysis: sec.text,
		Language:         lang,
		Verdict:          verdict,
		Checks: map[string]CheckResult{
			CheckSyntax:   syn.res,
			CheckLint:     lnt.res,
			CheckSecurity: sec.res,
			CheckML:       ml.res,
		},
	}
	if ml.res.Status == StatusOK {
		score := ml.score
		report.Confidence = &score
	}

	span.SetAttributes(attribute.String("review.verdict", string(verdict)))
	p.metrics.RecordVerdict(string(verdict))

	slog.Debug("analysis complete",
		slog.String("language", lang),
		slog.String("verdict", string(verdict)),
		slog.String("syntax", string(syn.res.Status)),
		slog.String("lint", string(lnt.res.Status)),
		slog.String("security", string(sec.res.Status)),
		slog.String("ml", string(ml.res.Status)),
	)

	return report
}

// =============================================================================
// Check outcomes
// =============================================================================

type outcome interface {
	check() *CheckResult
}

type syntaxOutcome struct {
	res         CheckResult
	syntaxError *string
}

func (o *syntaxOutcome) check() *CheckResult { return &o.res }

type lintOutcome struct {
	res           CheckResult
	bestPractices string
	linterResults string
	linterTips    int
}

func (o *lintOutcome) check() *CheckResult { return &o.res }

type securityOutcome struct {
	res   CheckResult
	text  string
	clean bool
}

func (o *securityOutcome) check() *CheckResult { return &o.res }

type mlOutcome struct {
	res   CheckResult
	text  string
	score float64
	level classifier.Level
}

func (o *mlOutcome) check() *CheckResult { return &o.res }

// runGuarded runs fn under a span, converts a panic into fail(err), and
// stamps name, duration and metrics on the result.
func runGuarded[T outcome](ctx context.Context, p *Pipeline, name string, fail func(error) T, fn func(context.Context) T) T {
	ctx, span := tracer.Start(ctx, "pipeline.check."+name)
	defer span.End()
	start := time.Now()

	out := func() (out T) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("check panicked",
					slog.String("check", name),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				out = fail(fmt.Errorf("%w: %v", ErrCheckPanicked, r))
			}
		}()
		return fn(ctx)
	}()

	res := out.check()
	res.Name = name
	res.Duration = time.Since(start)
	res.DurationMS = res.Duration.Milliseconds()

	span.SetAttributes(attribute.String("review.check.status", string(res.Status)))
	if res.Status == StatusError {
		span.SetStatus(codes.Error, res.Err)
	}
	p.metrics.RecordCheck(name, string(res.Status), res.Duration)

	return out
}

// =============================================================================
// Syntax
// =============================================================================

func syntaxFailed(err error) *syntaxOutcome {
	return &syntaxOutcome{res: CheckResult{
		Status:  StatusError,
		Summary: fmt.Sprintf("Syntax check unavailable: %v", err),
		Err:     err.Error(),
	}}
}

func (p *Pipeline) runSyntax(ctx context.Context, lang, code string) *syntaxOutcome {
	if p.syntax == nil {
		return &syntaxOutcome{res: CheckResult{Status: StatusSkipped, Summary: "Syntax checking is not configured."}}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeouts.Syntax)
	defer cancel()

	result, err := p.syntax.Check(ctx, code, lang)
	if err != nil {
		slog.Warn("syntax check failed", slog.String("language", lang), slog.String("error", err.Error()))
		return syntaxFailed(err)
	}

	if result.Valid {
		return &syntaxOutcome{res: CheckResult{Status: StatusOK, Summary: "No syntax errors detected."}}
	}

	msg := "SyntaxError detected: " + result.Message()
	findings := make([]string, len(result.Issues))
	for i, issue := range result.Issues {
		findings[i] = issue.String()
	}
	return &syntaxOutcome{
		res:         CheckResult{Status: StatusOK, Summary: msg, Findings: findings},
		syntaxError: &msg,
	}
}

// =============================================================================
// Lint
// =============================================================================

func lintFailed(err error) *lintOutcome {
	text := fmt.Sprintf("Linter %s failed: %s", lint.FailedLinters(err), lint.FailureDetail(err))
	return &lintOutcome{
		res:           CheckResult{Status: StatusError, Summary: text, Err: err.Error()},
		bestPractices: text,
		linterResults: text,
	}
}

func lintSkipped(text string) *lintOutcome {
	return &lintOutcome{
		res:           CheckResult{Status: StatusSkipped, Summary: text},
		bestPractices: text,
		linterResults: text,
	}
}

func (p *Pipeline) runLint(ctx context.Context, lang, code string) *lintOutcome {
	if p.linter == nil {
		return lintSkipped("Static analysis is not configured.")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeouts.Lint)
	defer cancel()

	result, err := p.linter.LintContent(ctx, []byte(code), lang)
	switch {
	case errors.Is(err, lint.ErrLinterNotInstalled):
		return lintSkipped(fmt.Sprintf("Linter %s is not installed; static analysis skipped.", lint.FailedLinters(err)))
	case errors.Is(err, lint.ErrUnsupportedLanguage):
		return lintSkipped(fmt.Sprintf("Static analysis is not available for %s.", lang))
	case err != nil:
		slog.Warn("lint failed", slog.String("language", lang), slog.String("error", err.Error()))
		return lintFailed(err)
	}

	tips := p.tips.Translate(result.Issues)
	if len(tips.Unmatched) > 0 {
		slog.Debug("lint codes without tips",
			slog.String("language", lang),
			slog.Any("codes", tips.Unmatched),
		)
	}

	findings := make([]string, 0, len(tips.BestPractices)+len(tips.Linter))
	for _, t := range tips.BestPractices {
		findings = append(findings, t.String())
	}
	for _, t := range tips.Linter {
		findings = append(findings, t.String())
	}

	summary := fmt.Sprintf("%d issue(s) reported by %s; %d matched a tip.",
		len(result.Issues), strings.Join(result.Linters, ", "), len(findings))
	if len(result.Failures) > 0 {
		summary += fmt.Sprintf(" %d linter(s) failed: %v", len(result.Failures), errors.Join(result.Failures...))
	}

	return &lintOutcome{
		res:           CheckResult{Status: StatusOK, Summary: summary, Findings: findings},
		bestPractices: tips.BestPracticesText(),
		linterResults: tips.LinterText(),
		linterTips:    len(tips.Linter),
	}
}

// =============================================================================
// Security
// =============================================================================

func securityFailed(err error) *securityOutcome {
	text := fmt.Sprintf("Security analysis failed: %v", err)
	return &securityOutcome{
		res:  CheckResult{Status: StatusError, Summary: text, Err: err.Error()},
		text: text,
	}
}

func (p *Pipeline) runSecurity(ctx context.Context, lang, code string, syn *syntaxOutcome) *securityOutcome {
	if syn != nil && syn.syntaxError != nil {
		tool := ""
		if p.scanner != nil {
			tool = p.scanner.ToolName(lang)
		}
		text := security.SkippedForSyntaxMessage(tool)
		return &securityOutcome{res: CheckResult{Status: StatusSkipped, Summary: text}, text: text}
	}
	if p.scanner == nil {
		text := "Security analysis is not configured."
		return &securityOutcome{res: CheckResult{Status: StatusSkipped, Summary: text}, text: text}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeouts.Security)
	defer cancel()

	result, err := p.scanner.Scan(ctx, code, lang)
	if err != nil {
		slog.Warn("security scan failed", slog.String("language", lang), slog.String("error", err.Error()))
		return securityFailed(err)
	}

	text := security.Render(result)
	findings := make([]string, len(result.Findings))
	for i, f := range result.Findings {
		findings[i] = fmt.Sprintf("[%s] %s (line %d)", f.RuleID, f.Text, f.Line)
	}

	status := StatusOK
	if !result.Conclusive() {
		status = StatusSkipped
	}

	return &securityOutcome{
		res:   CheckResult{Status: status, Summary: text, Findings: findings},
		text:  text,
		clean: status == StatusOK && result.Clean(),
	}
}

// =============================================================================
// ML
// =============================================================================

func mlFailed(err error) *mlOutcome {
	text := fmt.Sprintf("Machine learning analysis unavailable: %v", err)
	return &mlOutcome{
		res:  CheckResult{Status: StatusError, Summary: text, Err: err.Error()},
		text: text,
	}
}

func (p *Pipeline) runML(ctx context.Context, code string) *mlOutcome {
	if p.classifier == nil {
		text := "Machine learning analysis is not configured."
		return &mlOutcome{res: CheckResult{Status: StatusSkipped, Summary: text}, text: text}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeouts.ML)
	defer cancel()

	score, err := p.classifier.Classify(ctx, code)
	if err != nil {
		slog.Warn("classification failed", slog.String("classifier", p.classifier.Name()), slog.String("error", err.Error()))
		return mlFailed(err)
	}

	a := classifier.Interpret(score)
	return &mlOutcome{
		res:   CheckResult{Status: StatusOK, Summary: a.Message, Findings: []string{string(a.Level)}},
		text:  a.Message,
		score: score,
		level: a.Level,
	}
}

// cancelledReport fills every field for a caller that gave up waiting.
func cancelledReport(lang string, err error) *Report {
	text := fmt.Sprintf("Analysis cancelled: %v", err)
	checks := make(map[string]CheckResult, 4)
	for _, name := range []string{CheckSyntax, CheckLint, CheckSecurity, CheckML} {
		checks[name] = CheckResult{Name: name, Status: StatusError, Summary: text, Err: err.Error()}
	}
	return &Report{
		BestPractices:    text,
		LinterResults:    text,
		MLResults:        text,
		SecurityAnalysis: text,
		Language:         lang,
		Verdict:          VerdictUnknown,
		Checks:           checks,
	}
}
