// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lint runs external linters against a submitted snippet and turns
// their diagnostics into natural-language review tips.
//
// The package never analyzes code itself. It writes the snippet to a temp
// file, invokes every installed linter registered for the snippet's
// language, parses the structured output, and hands the issues to a
// TipCatalog that maps exact rule codes to canned explanations.
//
// # Supported Linters
//
//	| Language   | Linters          | Output format        |
//	|------------|------------------|----------------------|
//	| Python     | pylint, ruff     | JSON                 |
//	| Go         | golangci-lint    | JSON                 |
//	| TypeScript | eslint           | JSON                 |
//	| JavaScript | eslint           | JSON                 |
//
// # Tip Categories
//
// Tips fall into two buckets that the review report keeps apart:
//
//	best_practice - documentation and style advice (pylint C0114, C0116, ...)
//	linter        - mechanical lint findings (pycodestyle W292, ...)
//
// Rule codes missing from the catalog produce no tip. They are still
// counted in LintResult and in the unmatched-code metric.
//
// # Usage
//
//	runner := lint.NewLintRunner()
//	runner.DetectAvailableLinters()
//
//	result, err := runner.LintContent(ctx, []byte(code), "python")
//	if err != nil {
//	    // every available linter failed
//	}
//	tips := lint.DefaultTipCatalog().Translate(result.Issues)
//
// # Thread Safety
//
// All exported types are safe for concurrent use.
package lint
