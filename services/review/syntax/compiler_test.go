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
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFakeCompiler writes an executable shell script and returns its path.
func writeFakeCompiler(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script compilers not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "fakecc")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func fakePythonChecker(t *testing.T, body string) *Checker {
	t.Helper()
	cfg := DefaultPythonCompiler
	cfg.Command = writeFakeCompiler(t, body)
	cfg.Args = nil
	cfg.Timeout = 2 * time.Second
	c := NewChecker(WithoutCompilers(), WithCompiler(cfg), WithTempDir(t.TempDir()))
	c.DetectAvailableCompilers()
	return c
}

func TestChecker_CompilerOverridesTreeSitter(t *testing.T) {
	c := fakePythonChecker(t, `cat >/dev/null
echo '{"type":"IndentationError","msg":"unexpected indent","line":3,"offset":7,"text":"  y = 2"}'`)

	res, err := c.Check(context.Background(), "def f():\n    x = 1\n      y = 2\n", "python")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "python3", res.Source)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, 3, res.Issues[0].Line)
	assert.Equal(t, 7, res.Issues[0].Column)
	assert.Equal(t, `IndentationError: unexpected indent at line 3, column 7 near "y = 2"`, res.Message())
}

func TestChecker_CompilerAcceptsWhatTreeSitterRejects(t *testing.T) {
	c := fakePythonChecker(t, "cat >/dev/null")

	res, err := c.Check(context.Background(), "def broken(:\n    pass\n", "python")
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Issues)
}

func TestChecker_CompilerFailureKeepsTreeSitter(t *testing.T) {
	c := fakePythonChecker(t, "echo 'Traceback: RecursionError' >&2\nexit 1")

	res, err := c.Check(context.Background(), "def broken(:\n    pass\n", "python")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "tree-sitter", res.Source)
	assert.Equal(t, "tree-sitter", res.Issues[0].Source)
}

func TestChecker_CompilerNotInstalled(t *testing.T) {
	cfg := DefaultPythonCompiler
	cfg.Command = "definitely-not-a-python-binary"
	c := NewChecker(WithoutCompilers(), WithCompiler(cfg))

	avail := c.DetectAvailableCompilers()
	assert.False(t, avail["python3"])

	res, err := c.Check(context.Background(), "x = 1\n", "python")
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "tree-sitter", res.Source)
}

func TestChecker_NodeRechecksAsModule(t *testing.T) {
	script := `case "$1" in
*.mjs) exit 0 ;;
esac
printf '%s:1\nimport fs from "fs";\n^^^^^^\n\nSyntaxError: Cannot use import statement outside a module\n' "$1" >&2
exit 1`
	cfg := DefaultNodeCompiler
	cfg.Command = writeFakeCompiler(t, script)
	cfg.Args = nil
	c := NewChecker(WithoutCompilers(), WithCompiler(cfg), WithTempDir(t.TempDir()))
	c.DetectAvailableCompilers()

	res, err := c.Check(context.Background(), "import fs from \"fs\";\nconsole.log(fs);\n", "javascript")
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "node", res.Source)
}

func TestParseNodeCheck(t *testing.T) {
	stderr := []byte("/tmp/review-syntax-1/snippet.js:2\nconst x;\n      ^\n\nSyntaxError: Missing initializer in const declaration\n    at internalCompileFunction\n")

	issues, err := parseNodeCheck(nil, stderr, errors.New("exit status 1"))
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, 2, issues[0].Line)
	assert.Equal(t, 7, issues[0].Column)
	assert.Equal(t, "SyntaxError: Missing initializer in const declaration", issues[0].Message)
	assert.Equal(t, "const x;", issues[0].Snippet)

	issues, err = parseNodeCheck(nil, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, issues)

	_, err = parseNodeCheck(nil, []byte("node: bad option: --check\n"), errors.New("exit status 9"))
	assert.ErrorIs(t, err, ErrCompilerFailed)
}

func TestParsePythonCompile(t *testing.T) {
	issues, err := parsePythonCompile([]byte(`{"type":"SyntaxError","msg":"'return' outside function","line":0,"offset":0,"text":""}`), nil, nil)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, 1, issues[0].Line, "line is clamped to 1")
	assert.Equal(t, "SyntaxError: 'return' outside function", issues[0].Message)

	_, err = parsePythonCompile([]byte("not json"), nil, nil)
	assert.ErrorIs(t, err, ErrCompilerFailed)
}

func requireTool(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not installed", name)
	}
}

// Errors tree-sitter-python recovers from but CPython rejects.
func TestChecker_Python3RejectsCompileErrors(t *testing.T) {
	requireTool(t, "python3")
	c := NewChecker()
	c.DetectAvailableCompilers()

	tests := map[string]string{
		"unexpected indent":      "def f():\n    x = 1\n      y = 2\n    return x\n",
		"return outside def":     "return 1\n",
		"break outside loop":     "break\n",
		"python 2 print":         "print 'hi'\n",
		"duplicate argument":     "def f(a, a):\n    return a\n",
		"unparenthesized genexp": "f(x for x in y, 1)\n",
		"nonlocal at module":     "nonlocal x\n",
	}
	for name, code := range tests {
		t.Run(name, func(t *testing.T) {
			res, err := c.Check(context.Background(), code, "python")
			require.NoError(t, err)
			assert.False(t, res.Valid)
			assert.Equal(t, "python3", res.Source)
			assert.NotEmpty(t, res.Message())
		})
	}

	res, err := c.Check(context.Background(), "def f(a):\n    return a\n", "python")
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestChecker_Python3NeverExecutes(t *testing.T) {
	requireTool(t, "python3")
	marker := filepath.Join(t.TempDir(), "executed")
	code := "import os\nos.system('touch " + marker + "')\nopen('" + marker + "', 'w').write('x')\n"

	c := NewChecker()
	c.DetectAvailableCompilers()
	res, err := c.Check(context.Background(), code, "python")
	require.NoError(t, err)
	assert.True(t, res.Valid)

	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr), "snippet side effect observed")
}

func TestChecker_NodeRejectsMissingInitializer(t *testing.T) {
	requireTool(t, "node")
	c := NewChecker()
	c.DetectAvailableCompilers()

	res, err := c.Check(context.Background(), "const x;\n", "javascript")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Message(), "SyntaxError")

	res, err = c.Check(context.Background(), "import fs from 'fs';\nconsole.log(fs);\n", "javascript")
	require.NoError(t, err)
	assert.True(t, res.Valid)
}
