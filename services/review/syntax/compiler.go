// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package syntax

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrCompilerFailed is returned when a compiler ran but gave no usable verdict.
var ErrCompilerFailed = errors.New("compiler check failed")

// CompilerConfig describes an external parse-only validator.
//
// Description:
//
//	tree-sitter grammars recover from errors the reference compiler
//	rejects (bad indentation, return outside a function, duplicate
//	parameters). When a compiler is installed its verdict replaces the
//	tree-sitter one. The compiler must only parse or compile the snippet,
//	never run it.
type CompilerConfig struct {
	// Name identifies the compiler in logs and Result.Source.
	Name string

	// Language is the snippet language it validates.
	Language string

	// Command is the executable.
	Command string

	// Args are passed before the snippet path. With Stdin set the snippet
	// is fed on standard input and no path is appended.
	Args []string

	// Stdin feeds the snippet on standard input instead of a temp file.
	Stdin bool

	// Extension is the temp file extension when Stdin is false.
	Extension string

	// Timeout bounds one run. It should stay under the caller's syntax
	// deadline so a hung compiler falls back to tree-sitter in time.
	Timeout time.Duration

	// Parse turns the process output into issues. No issues and a nil
	// error means the snippet compiled.
	Parse func(stdout, stderr []byte, runErr error) ([]Issue, error)

	// Recheck, when set, may ask for one more run with a different file
	// extension based on the first run's issues.
	Recheck func(issues []Issue) (extension string, ok bool)
}

// pythonCompileScript compiles stdin without executing it and prints the
// first SyntaxError as JSON. compile() runs the parser and the symbol table
// pass, so IndentationError, misplaced return/break and duplicate
// arguments are all reported.
const pythonCompileScript = `import sys, json
src = sys.stdin.buffer.read()
try:
    compile(src, "<snippet>", "exec", dont_inherit=True)
except SyntaxError as e:
    print(json.dumps({"type": type(e).__name__, "msg": e.msg, "line": e.lineno or 1, "offset": e.offset or 1, "text": (e.text or "").strip()}))
except ValueError as e:
    print(json.dumps({"type": type(e).__name__, "msg": str(e), "line": 1, "offset": 1, "text": ""}))
`

// DefaultPythonCompiler validates python with CPython's compile().
var DefaultPythonCompiler = CompilerConfig{
	Name:     "python3",
	Language: "python",
	Command:  "python3",
	Args:     []string{"-I", "-S", "-c", pythonCompileScript},
	Stdin:    true,
	Timeout:  3 * time.Second,
	Parse:    parsePythonCompile,
}

// DefaultNodeCompiler validates javascript with `node --check`, which
// parses the file without running it. Snippets are tried as CommonJS
// first and as an ES module when they use import/export.
var DefaultNodeCompiler = CompilerConfig{
	Name:      "node",
	Language:  "javascript",
	Command:   "node",
	Args:      []string{"--check"},
	Extension: ".js",
	Timeout:   3 * time.Second,
	Parse:     parseNodeCheck,
	Recheck:   recheckNodeAsModule,
}

type pythonCompileError struct {
	Type   string `json:"type"`
	Msg    string `json:"msg"`
	Line   int    `json:"line"`
	Offset int    `json:"offset"`
	Text   string `json:"text"`
}

func parsePythonCompile(stdout, stderr []byte, runErr error) ([]Issue, error) {
	if runErr != nil {
		return nil, fmt.Errorf("%w: %v: %s", ErrCompilerFailed, runErr, firstLine(stderr))
	}
	out := bytes.TrimSpace(stdout)
	if len(out) == 0 {
		return nil, nil
	}
	var pe pythonCompileError
	if err := json.Unmarshal(out, &pe); err != nil {
		return nil, fmt.Errorf("%w: unreadable output: %v", ErrCompilerFailed, err)
	}
	return []Issue{{
		Kind:    KindError,
		Line:    max(pe.Line, 1),
		Column:  max(pe.Offset, 1),
		Message: pe.Type + ": " + pe.Msg,
		Snippet: excerpt(pe.Text),
	}}, nil
}

var nodeLocation = regexp.MustCompile(`:(\d+)\s*$`)

// parseNodeCheck reads node's diagnostic:
//
//	/tmp/review-syntax-1/snippet.js:1
//	const x;
//	      ^
//
//	SyntaxError: Missing initializer in const declaration
func parseNodeCheck(_, stderr []byte, runErr error) ([]Issue, error) {
	if runErr == nil {
		return nil, nil
	}
	lines := strings.Split(string(stderr), "\n")

	issue := Issue{Kind: KindError, Line: 1, Column: 1}
	if m := nodeLocation.FindStringSubmatch(lines[0]); m != nil {
		issue.Line, _ = strconv.Atoi(m[1])
		if len(lines) > 2 {
			issue.Snippet = excerpt(lines[1])
			if col := strings.IndexByte(lines[2], '^'); col >= 0 {
				issue.Column = col + 1
			}
		}
	}
	for _, line := range lines {
		if strings.HasPrefix(line, "SyntaxError:") {
			issue.Message = strings.TrimSpace(line)
			return []Issue{issue}, nil
		}
	}
	return nil, fmt.Errorf("%w: %v: %s", ErrCompilerFailed, runErr, firstLine(stderr))
}

// recheckNodeAsModule retries CommonJS failures caused by import/export
// syntax as an ES module.
func recheckNodeAsModule(issues []Issue) (string, bool) {
	for _, is := range issues {
		if strings.Contains(is.Message, "outside a module") ||
			strings.Contains(is.Message, "Unexpected token 'export'") {
			return ".mjs", true
		}
	}
	return "", false
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return s
}

// DetectAvailableCompilers probes PATH for each configured compiler.
// Until it is called no compiler runs and tree-sitter alone decides.
//
// Outputs:
//
//	map[string]bool - Map of compiler name to availability
//
// Thread Safety: Safe for concurrent use.
func (c *Checker) DetectAvailableCompilers() map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make(map[string]bool, len(c.compilers))
	for lang, cc := range c.compilers {
		_, err := exec.LookPath(cc.Command)
		ok := err == nil
		c.available[lang] = ok
		result[cc.Name] = ok

		if ok {
			slog.Info("Syntax compiler available",
				slog.String("language", lang),
				slog.String("compiler", cc.Name),
			)
		} else {
			slog.Warn("Syntax compiler not installed; using tree-sitter only",
				slog.String("language", lang),
				slog.String("compiler", cc.Name),
			)
		}
	}
	return result
}

func (c *Checker) compilerFor(language string) (*CompilerConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cc, ok := c.compilers[language]
	if !ok || !c.available[language] {
		return nil, false
	}
	return cc, true
}

// compile runs the external compiler on code, honoring Recheck.
func (c *Checker) compile(ctx context.Context, cc *CompilerConfig, code string) ([]Issue, error) {
	issues, err := c.runCompiler(ctx, cc, code, cc.Extension)
	if err != nil || len(issues) == 0 || cc.Recheck == nil {
		return issues, err
	}
	if ext, ok := cc.Recheck(issues); ok {
		return c.runCompiler(ctx, cc, code, ext)
	}
	return issues, nil
}

func (c *Checker) runCompiler(ctx context.Context, cc *CompilerConfig, code, ext string) ([]Issue, error) {
	timeout := cc.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string(nil), cc.Args...)
	cmd := exec.CommandContext(cmdCtx, cc.Command)
	if cc.Stdin {
		cmd.Stdin = strings.NewReader(code)
	} else {
		dir, err := os.MkdirTemp(c.tempDir, "review-syntax-*")
		if err != nil {
			return nil, fmt.Errorf("creating temp dir: %w", err)
		}
		defer os.RemoveAll(dir)

		path := filepath.Join(dir, "snippet"+ext)
		if err := os.WriteFile(path, []byte(code), 0o600); err != nil {
			return nil, fmt.Errorf("writing temp file: %w", err)
		}
		args = append(args, path)
		cmd.Dir = dir
	}
	cmd.Args = append(cmd.Args, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if cmdCtx.Err() != nil {
		return nil, fmt.Errorf("%w: %s timed out", ErrCompilerFailed, cc.Name)
	}

	issues, err := cc.Parse(stdout.Bytes(), stderr.Bytes(), runErr)
	if err != nil {
		return nil, err
	}
	for i := range issues {
		issues[i].Source = cc.Name
	}
	return issues, nil
}
