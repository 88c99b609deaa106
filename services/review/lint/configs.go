// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lint

import (
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// DEFAULT LINTER CONFIGS
// =============================================================================

// DefaultPylintConfig is the configuration for pylint.
//
// Description:
//
//	pylint provides the convention checks (docstrings, final newline,
//	constant conditionals) that feed the best-practice tips.
var DefaultPylintConfig = LinterConfig{
	Name:     "pylint",
	Language: "python",
	Command:  "pylint",
	Args: []string{
		"--output-format=json",
		"--exit-zero",
		"--persistent=n",
		"--score=n",
	},
	Extensions: []string{".py"},
	Timeout:    30 * time.Second,
	Format:     "pylint",
}

// DefaultRuffConfig is the configuration for Ruff.
//
// Description:
//
//	Ruff supplies the pycodestyle and pyflakes codes (W292 and friends).
//	--isolated keeps a stray pyproject.toml in the temp dir from changing
//	the rule set.
var DefaultRuffConfig = LinterConfig{
	Name:     "ruff",
	Language: "python",
	Command:  "ruff",
	Args: []string{
		"check",
		"--output-format=json",
		"--exit-zero",
		"--isolated",
		"--no-cache",
		"--select=E,W,F",
	},
	Extensions: []string{".py", ".pyi"},
	Timeout:    10 * time.Second,
	Format:     "ruff",
}

// DefaultGoConfig is the configuration for golangci-lint.
//
// Description:
//
//	v2 replaced --out-format with --output.json.path and prints a stats
//	line after the report unless told not to. v1 keeps the old flags and
//	is selected from the --version banner at detection.
var DefaultGoConfig = LinterConfig{
	Name:     "golangci-lint",
	Language: "go",
	Command:  "golangci-lint",
	Args: []string{
		"run",
		"--output.json.path=stdout",
		"--show-stats=false",
		"--issues-exit-code=0",
		"--timeout=30s",
	},
	ArgsByMajor: map[int][]string{
		1: {
			"run",
			"--out-format=json",
			"--issues-exit-code=0",
			"--timeout=30s",
		},
	},
	VersionArgs: []string{"--version"},
	Extensions:  []string{".go"},
	Timeout:     30 * time.Second,
	Format:      "golangci",
}

// eslintConfigFile is the flat config name every ESLint since 8.21 looks
// for in the working directory. ESLint 9 refuses to run without one.
const eslintConfigFile = "eslint.config.js"

// eslintJSConfig is the flat config written next to JavaScript snippets.
// It is CommonJS so it loads without a package.json.
const eslintJSConfig = `module.exports = [
  {
    files: ["**/*.js", "**/*.jsx", "**/*.mjs", "**/*.cjs"],
    languageOptions: {
      ecmaVersion: "latest",
      sourceType: "module",
      parserOptions: { ecmaFeatures: { jsx: true } },
      globals: {
        console: "readonly", process: "readonly", require: "readonly",
        module: "writable", exports: "writable", __dirname: "readonly",
        window: "readonly", document: "readonly", fetch: "readonly",
        setTimeout: "readonly", clearTimeout: "readonly", Promise: "readonly",
      },
    },
    rules: {
      "no-var": "warn",
      "eqeqeq": "warn",
      "no-unused-vars": "warn",
      "no-undef": "warn",
    },
  },
];
`

// eslintTSConfig is the flat config written next to TypeScript snippets.
// TypeScript needs the typescript-eslint parser, resolved from the
// scratch directory or NODE_PATH. Without it ESLint fails and the run is
// reported as a linter failure rather than as bogus parse errors.
const eslintTSConfig = `let parser;
for (const name of ["@typescript-eslint/parser", "typescript-eslint"]) {
  try {
    const mod = require(name);
    parser = mod.parser || mod;
    break;
  } catch (e) {}
}
if (!parser) {
  throw new Error("typescript-eslint parser not installed");
}
module.exports = [
  {
    files: ["**/*.ts", "**/*.tsx"],
    languageOptions: {
      parser,
      ecmaVersion: "latest",
      sourceType: "module",
    },
    rules: {
      "no-var": "warn",
      "eqeqeq": "warn",
    },
  },
];
`

// eslintEnv opts ESLint 8 into the flat config. ESLint 9 ignores it.
var eslintEnv = []string{"ESLINT_USE_FLAT_CONFIG=true"}

// DefaultTSConfig is the configuration for ESLint on TypeScript.
var DefaultTSConfig = LinterConfig{
	Name:     "eslint",
	Language: "typescript",
	Command:  "eslint",
	Args: []string{
		"--format=json",
		"--no-error-on-unmatched-pattern",
	},
	Files:      map[string]string{eslintConfigFile: eslintTSConfig},
	Env:        eslintEnv,
	Extensions: []string{".ts", ".tsx"},
	Timeout:    30 * time.Second,
	Format:     "eslint",
}

// DefaultJSConfig is the configuration for ESLint on JavaScript.
var DefaultJSConfig = LinterConfig{
	Name:     "eslint",
	Language: "javascript",
	Command:  "eslint",
	Args: []string{
		"--format=json",
		"--no-error-on-unmatched-pattern",
	},
	Files:      map[string]string{eslintConfigFile: eslintJSConfig},
	Env:        eslintEnv,
	Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
	Timeout:    30 * time.Second,
	Format:     "eslint",
}

// =============================================================================
// CONFIG REGISTRY
// =============================================================================

// ConfigRegistry manages linter configurations for different languages.
//
// Description:
//
//	A language may have several linters. They run in registration order
//	and their issues are concatenated.
//
// Thread Safety: Safe for concurrent use.
type ConfigRegistry struct {
	mu sync.RWMutex

	// byLanguage maps a language to its linters in registration order.
	byLanguage map[string][]*LinterConfig
}

// NewConfigRegistry creates a new registry with default configurations.
func NewConfigRegistry() *ConfigRegistry {
	r := NewEmptyConfigRegistry()
	r.Register(&DefaultPylintConfig)
	r.Register(&DefaultRuffConfig)
	r.Register(&DefaultGoConfig)
	r.Register(&DefaultTSConfig)
	r.Register(&DefaultJSConfig)
	return r
}

// NewEmptyConfigRegistry creates a registry with no linters.
func NewEmptyConfigRegistry() *ConfigRegistry {
	return &ConfigRegistry{
		byLanguage: make(map[string][]*LinterConfig),
	}
}

// Register adds or replaces a linter configuration.
//
// Description:
//
//	A config with the same Language and Name as an existing entry
//	replaces it in place, keeping its position.
//
// Thread Safety: Safe for concurrent use.
func (r *ConfigRegistry) Register(config *LinterConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	configs := r.byLanguage[config.Language]
	for i, existing := range configs {
		if existing.Name == config.Name {
			configs[i] = config.Clone()
			return
		}
	}
	r.byLanguage[config.Language] = append(configs, config.Clone())
}

// Remove deletes the named linter for a language. It is a no-op if absent.
//
// Thread Safety: Safe for concurrent use.
func (r *ConfigRegistry) Remove(language, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	configs := r.byLanguage[language]
	for i, existing := range configs {
		if existing.Name == name {
			r.byLanguage[language] = append(configs[:i:i], configs[i+1:]...)
			return
		}
	}
}

// ForLanguage returns clones of every linter registered for a language.
//
// Thread Safety: Safe for concurrent use.
func (r *ConfigRegistry) ForLanguage(language string) []*LinterConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	configs := r.byLanguage[language]
	out := make([]*LinterConfig, 0, len(configs))
	for _, c := range configs {
		out = append(out, c.Clone())
	}
	return out
}

// Languages returns all languages with at least one linter.
//
// Thread Safety: Safe for concurrent use.
func (r *ConfigRegistry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	langs := make([]string, 0, len(r.byLanguage))
	for lang, configs := range r.byLanguage {
		if len(configs) > 0 {
			langs = append(langs, lang)
		}
	}
	return langs
}

// SetVersion records the detected version of a linter.
//
// Thread Safety: Safe for concurrent use.
func (r *ConfigRegistry) SetVersion(language, name, version string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.byLanguage[language] {
		if c.Name == name {
			c.Version = version
		}
	}
}

// SetAvailable marks a linter as available or unavailable.
//
// Thread Safety: Safe for concurrent use.
func (r *ConfigRegistry) SetAvailable(language, name string, available bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.byLanguage[language] {
		if c.Name == name {
			c.Available = available
		}
	}
}

// =============================================================================
// LANGUAGE DETECTION
// =============================================================================

// LanguageFromPath detects the language from a file path.
//
// Description:
//
//	Determines the programming language based on file extension.
//	Returns empty string for unknown extensions.
func LanguageFromPath(filePath string) string {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".go":
		return "go"
	case ".py", ".pyi":
		return "python"
	case ".ts", ".tsx", ".mts", ".cts":
		return "typescript"
	case ".js", ".jsx", ".mjs", ".cjs":
		return "javascript"
	default:
		return ""
	}
}

// ExtensionForLanguage returns the primary file extension for a language.
// Used when creating temp files for content linting.
func ExtensionForLanguage(language string) string {
	switch language {
	case "go":
		return ".go"
	case "python":
		return ".py"
	case "typescript":
		return ".ts"
	case "javascript":
		return ".js"
	default:
		return ""
	}
}
