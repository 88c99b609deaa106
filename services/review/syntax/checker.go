// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package syntax validates snippets by parsing them with tree-sitter.
//
// The checker builds a concrete syntax tree and walks it for ERROR and
// MISSING nodes. When a parse-only compiler for the language is installed
// (python3's compile(), node --check) its verdict replaces the tree-sitter
// one. Submitted code is never imported or executed.
package syntax

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

const (
	// DefaultMaxBytes is the largest snippet the checker will parse (1MB).
	DefaultMaxBytes = 1 * 1024 * 1024

	// maxIssues caps how many problems a single check reports.
	maxIssues = 10

	// maxSnippet caps the source excerpt attached to an issue.
	maxSnippet = 40
)

var (
	// ErrUnsupportedLanguage is returned when no grammar exists for the language.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrTooLarge is returned when the snippet exceeds the size limit.
	ErrTooLarge = errors.New("snippet exceeds maximum size")

	// ErrInvalidContent is returned when the snippet is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid content")
)

// IssueKind distinguishes unparseable spans from tokens the parser had to invent.
type IssueKind string

const (
	// KindError marks a span the grammar could not parse.
	KindError IssueKind = "error"

	// KindMissing marks a token the parser inserted to recover (e.g., a ")").
	KindMissing IssueKind = "missing"
)

// Issue is a single syntax problem.
type Issue struct {
	Kind IssueKind `json:"kind"`

	// Line is 1-based.
	Line int `json:"line"`

	// Column is the 1-based byte column.
	Column int `json:"column"`

	// Token is the missing token type for KindMissing.
	Token string `json:"token,omitempty"`

	// Snippet is an excerpt of the offending source for KindError.
	Snippet string `json:"snippet,omitempty"`

	// Message is the compiler's own wording, e.g.
	// "IndentationError: unexpected indent". Empty for tree-sitter issues.
	Message string `json:"message,omitempty"`

	// Source names what found the issue: "tree-sitter" or a compiler name.
	Source string `json:"source,omitempty"`
}

// String renders the issue as a short human-readable message.
func (i Issue) String() string {
	if i.Message != "" {
		if i.Snippet == "" {
			return fmt.Sprintf("%s at line %d, column %d", i.Message, i.Line, i.Column)
		}
		return fmt.Sprintf("%s at line %d, column %d near %q", i.Message, i.Line, i.Column, i.Snippet)
	}
	switch i.Kind {
	case KindMissing:
		return fmt.Sprintf("missing %q at line %d, column %d", i.Token, i.Line, i.Column)
	default:
		if i.Snippet == "" {
			return fmt.Sprintf("invalid syntax at line %d, column %d", i.Line, i.Column)
		}
		return fmt.Sprintf("invalid syntax at line %d, column %d near %q", i.Line, i.Column, i.Snippet)
	}
}

// Result is the outcome of one syntax check.
type Result struct {
	Language string        `json:"language"`
	Valid    bool          `json:"valid"`
	Source   string        `json:"source"`
	Issues   []Issue       `json:"issues,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Message returns the first issue's message, or "" when the snippet is valid.
func (r *Result) Message() string {
	if r == nil || len(r.Issues) == 0 {
		return ""
	}
	return r.Issues[0].String()
}

// Option configures a Checker.
type Option func(*Checker)

// WithMaxBytes sets the maximum snippet size the checker will accept.
//
// Parameters:
//   - n: Maximum size in bytes. Non-positive values are ignored.
func WithMaxBytes(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// WithCompiler registers or replaces the compiler for cfg.Language.
func WithCompiler(cfg CompilerConfig) Option {
	return func(c *Checker) {
		cc := cfg
		cc.Args = append([]string(nil), cfg.Args...)
		c.compilers[cfg.Language] = &cc
	}
}

// WithoutCompilers leaves tree-sitter as the only validator.
func WithoutCompilers() Option {
	return func(c *Checker) {
		c.compilers = make(map[string]*CompilerConfig)
	}
}

// WithTempDir sets the parent directory for compiler scratch files.
func WithTempDir(dir string) Option {
	return func(c *Checker) { c.tempDir = dir }
}

// Checker validates snippets against tree-sitter grammars and, where
// installed, a parse-only compiler.
//
// Thread Safety:
//
//	Checker is safe for concurrent use. Each Check call creates its own
//	tree-sitter parser; grammars are shared read-only.
type Checker struct {
	maxBytes int
	grammars map[string]*sitter.Language
	tempDir  string

	mu        sync.RWMutex
	compilers map[string]*CompilerConfig
	available map[string]bool
}

// NewChecker creates a checker for python, go, javascript, and typescript.
// Compilers are registered but stay unused until DetectAvailableCompilers.
//
// Example:
//
//	checker := syntax.NewChecker(syntax.WithMaxBytes(64 * 1024))
//	res, err := checker.Check(ctx, code, "python")
func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		maxBytes: DefaultMaxBytes,
		grammars: map[string]*sitter.Language{
			"python":     python.GetLanguage(),
			"go":         golang.GetLanguage(),
			"javascript": javascript.GetLanguage(),
			"typescript": typescript.GetLanguage(),
		},
		compilers: make(map[string]*CompilerConfig),
		available: make(map[string]bool),
	}
	WithCompiler(DefaultPythonCompiler)(c)
	WithCompiler(DefaultNodeCompiler)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Supports reports whether the checker has a grammar for the language.
func (c *Checker) Supports(language string) bool {
	_, ok := c.grammars[language]
	return ok
}

// Languages returns the supported languages in sorted order.
func (c *Checker) Languages() []string {
	langs := make([]string, 0, len(c.grammars))
	for lang := range c.grammars {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// Check parses code and reports any syntax problems.
//
// Description:
//
//	A syntax problem is not an error: it comes back as Valid=false with
//	Issues populated. The error return is reserved for cases where the
//	check itself could not run. A compiler that fails to give a verdict
//	is logged and the tree-sitter result stands.
//
// Errors:
//   - ErrUnsupportedLanguage: No grammar for language
//   - ErrTooLarge: Snippet exceeds the size limit
//   - ErrInvalidContent: Snippet is not valid UTF-8
//   - Context errors if ctx is cancelled
func (c *Checker) Check(ctx context.Context, code, language string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("syntax check canceled before start: %w", err)
	}

	grammar, ok := c.grammars[language]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}

	if len(code) > c.maxBytes {
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrTooLarge, len(code), c.maxBytes)
	}

	if !utf8.ValidString(code) {
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	ctx, span := startCheckSpan(ctx, language)
	defer span.End()
	start := time.Now()

	content := []byte(code)

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("syntax check canceled after parse: %w", err)
	}

	result := &Result{Language: language, Valid: true, Source: "tree-sitter"}

	root := tree.RootNode()
	if root != nil && root.HasError() {
		result.Valid = false
		result.Issues = collectIssues(root, content)
		if len(result.Issues) == 0 {
			// HasError without a locatable node.
			result.Issues = []Issue{{Kind: KindError, Line: 1, Column: 1}}
		}
		for i := range result.Issues {
			result.Issues[i].Source = "tree-sitter"
		}
	}

	if cc, ok := c.compilerFor(language); ok {
		issues, err := c.compile(ctx, cc, code)
		switch {
		case err == nil:
			result.Source = cc.Name
			result.Valid = len(issues) == 0
			result.Issues = issues
		case ctx.Err() != nil:
			return nil, fmt.Errorf("syntax check canceled during compile: %w", ctx.Err())
		default:
			slog.Warn("Syntax compiler failed; keeping tree-sitter result",
				slog.String("compiler", cc.Name),
				slog.String("error", err.Error()),
			)
		}
	}

	result.Duration = time.Since(start)
	setCheckSpanResult(span, result)
	return result, nil
}

// collectIssues walks the tree in document order and returns ERROR and
// MISSING nodes. ERROR subtrees are not descended into.
func collectIssues(root *sitter.Node, content []byte) []Issue {
	var issues []Issue

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil || len(issues) >= maxIssues {
			return
		}

		if n.IsMissing() {
			p := n.StartPoint()
			issues = append(issues, Issue{
				Kind:   KindMissing,
				Line:   int(p.Row) + 1,
				Column: int(p.Column) + 1,
				Token:  n.Type(),
			})
			return
		}

		if n.IsError() {
			p := n.StartPoint()
			issues = append(issues, Issue{
				Kind:    KindError,
				Line:    int(p.Row) + 1,
				Column:  int(p.Column) + 1,
				Snippet: excerpt(n.Content(content)),
			})
			return
		}

		if !n.HasError() {
			return
		}

		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}

	walk(root)
	return issues
}

// excerpt returns the first line of s, trimmed and capped at maxSnippet runes.
func excerpt(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > maxSnippet {
		runes := []rune(s)
		s = string(runes[:maxSnippet]) + "..."
	}
	return s
}
