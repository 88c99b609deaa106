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
	"fmt"
	"sort"
	"strings"
	"sync"
)

// =============================================================================
// TIP TYPES
// =============================================================================

// Category decides which report field a tip lands in.
type Category string

const (
	// CategoryBestPractice tips go to the best_practices field.
	CategoryBestPractice Category = "best_practice"

	// CategoryLinter tips go to the linter_results field.
	CategoryLinter Category = "linter"
)

// Valid reports whether the category is one of the known values.
func (c Category) Valid() bool {
	return c == CategoryBestPractice || c == CategoryLinter
}

// Tip is a canned natural-language explanation for one rule code.
type Tip struct {
	// Code is the exact rule code or symbol the tip matches (case-sensitive).
	Code string `yaml:"code" json:"code"`

	// Category is the report bucket for the tip.
	Category Category `yaml:"category" json:"category"`

	// Order is the tip's fixed number within its category.
	Order int `yaml:"order" json:"order"`

	// Text is the explanation shown to the user.
	Text string `yaml:"text" json:"text"`
}

// String renders the tip as "<order>. <text>".
func (t Tip) String() string {
	return fmt.Sprintf("%d. %s", t.Order, t.Text)
}

func (t Tip) validate() error {
	switch {
	case strings.TrimSpace(t.Code) == "":
		return fmt.Errorf("%w: empty code", ErrInvalidTip)
	case !t.Category.Valid():
		return fmt.Errorf("%w: %s: unknown category %q", ErrInvalidTip, t.Code, t.Category)
	case t.Order < 1:
		return fmt.Errorf("%w: %s: order must be >= 1", ErrInvalidTip, t.Code)
	case strings.TrimSpace(t.Text) == "":
		return fmt.Errorf("%w: %s: empty text", ErrInvalidTip, t.Code)
	}
	return nil
}

// Tips is the outcome of translating a batch of issues.
type Tips struct {
	// BestPractices holds matched best-practice tips in order.
	BestPractices []Tip

	// Linter holds matched linter tips in order.
	Linter []Tip

	// Unmatched lists distinct rule codes that had no tip.
	Unmatched []string
}

// BestPracticesText joins the best-practice tips one per line.
func (t Tips) BestPracticesText() string {
	return joinTips(t.BestPractices)
}

// LinterText joins the linter tips one per line.
func (t Tips) LinterText() string {
	return joinTips(t.Linter)
}

func joinTips(tips []Tip) string {
	lines := make([]string, len(tips))
	for i, tip := range tips {
		lines[i] = tip.String()
	}
	return strings.Join(lines, "\n")
}

// =============================================================================
// TIP CATALOG
// =============================================================================

// DefaultTips returns the built-in tip set.
//
// Description:
//
//	Covers the pylint convention codes, the pycodestyle/pyflakes codes
//	reported by ruff, and a few common eslint and golangci-lint rules.
func DefaultTips() []Tip {
	return []Tip{
		// pylint
		{Code: "C0304", Category: CategoryBestPractice, Order: 1,
			Text: "Missing a final newline at the end of the file."},
		{Code: "C0114", Category: CategoryBestPractice, Order: 2,
			Text: "There is no module-level docstring. You should add a comment at the beginning of the file explaining what it does."},
		{Code: "C0116", Category: CategoryBestPractice, Order: 3,
			Text: "The function is missing a docstring. You should add a comment inside the function explaining what it does."},
		{Code: "W0125", Category: CategoryBestPractice, Order: 4,
			Text: "There are conditional statements with constant values ('if True'). These always evaluate to 'True', making the conditions unnecessary and potentially confusing."},
		{Code: "C0115", Category: CategoryBestPractice, Order: 5,
			Text: "The class is missing a docstring. You should add a comment inside the class explaining what it represents."},
		{Code: "W0611", Category: CategoryBestPractice, Order: 6,
			Text: "A module is imported but never used. Remove the import to keep dependencies obvious."},

		// eslint
		{Code: "no-var", Category: CategoryBestPractice, Order: 7,
			Text: "A variable is declared with 'var'. Prefer 'let' or 'const', which are block scoped."},
		{Code: "eqeqeq", Category: CategoryBestPractice, Order: 8,
			Text: "Loose equality ('==') is used. Prefer strict equality ('===') to avoid type coercion surprises."},

		// ruff (pycodestyle / pyflakes)
		{Code: "W292", Category: CategoryLinter, Order: 1,
			Text: "There is no newline at the end of the file, which is generally considered bad practice in Python."},
		{Code: "W291", Category: CategoryLinter, Order: 2,
			Text: "There is trailing whitespace at the end of a line."},
		{Code: "F401", Category: CategoryLinter, Order: 3,
			Text: "An imported module is never used."},
		{Code: "F841", Category: CategoryLinter, Order: 4,
			Text: "A local variable is assigned but never used."},
		{Code: "E711", Category: CategoryLinter, Order: 5,
			Text: "A comparison to None uses '=='. Use 'is None' instead."},

		// eslint
		{Code: "no-unused-vars", Category: CategoryLinter, Order: 6,
			Text: "A variable is declared but never used."},
		{Code: "no-undef", Category: CategoryLinter, Order: 7,
			Text: "A variable is used without being declared."},

		// golangci-lint
		{Code: "errcheck", Category: CategoryLinter, Order: 8,
			Text: "An error return value is not checked."},
		{Code: "ineffassign", Category: CategoryLinter, Order: 9,
			Text: "A value is assigned to a variable but never used before being overwritten."},
		{Code: "unused", Category: CategoryLinter, Order: 10,
			Text: "A declaration is never used."},
	}
}

// TipCatalog maps rule codes to tips.
//
// Description:
//
//	Lookups are exact and case-sensitive. The catalog can be swapped
//	wholesale at runtime (e.g., on config reload) without blocking
//	in-flight translations for long.
//
// Thread Safety: Safe for concurrent use.
type TipCatalog struct {
	mu   sync.RWMutex
	tips map[string]Tip
}

// NewTipCatalog builds a catalog from the given tips.
//
// Outputs:
//
//	*TipCatalog - The catalog
//	error - ErrInvalidTip if any tip is malformed
func NewTipCatalog(tips []Tip) (*TipCatalog, error) {
	c := &TipCatalog{}
	if err := c.Replace(tips); err != nil {
		return nil, err
	}
	return c, nil
}

// DefaultTipCatalog returns a catalog holding DefaultTips.
func DefaultTipCatalog() *TipCatalog {
	c, err := NewTipCatalog(DefaultTips())
	if err != nil {
		panic(fmt.Sprintf("lint: default tips invalid: %v", err))
	}
	return c
}

// Replace swaps the catalog contents. On error the catalog is unchanged.
//
// Thread Safety: Safe for concurrent use.
func (c *TipCatalog) Replace(tips []Tip) error {
	m, err := indexTips(tips)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.tips = m
	c.mu.Unlock()
	return nil
}

// Merge adds or overrides entries. On error the catalog is unchanged.
//
// Thread Safety: Safe for concurrent use.
func (c *TipCatalog) Merge(tips []Tip) error {
	extra, err := indexTips(tips)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	merged := make(map[string]Tip, len(c.tips)+len(extra))
	for code, tip := range c.tips {
		merged[code] = tip
	}
	for code, tip := range extra {
		merged[code] = tip
	}
	c.tips = merged
	return nil
}

func indexTips(tips []Tip) (map[string]Tip, error) {
	m := make(map[string]Tip, len(tips))
	for _, tip := range tips {
		if err := tip.validate(); err != nil {
			return nil, err
		}
		m[tip.Code] = tip
	}
	return m, nil
}

// Lookup returns the tip for an exact rule code.
func (c *TipCatalog) Lookup(code string) (Tip, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tip, ok := c.tips[code]
	return tip, ok
}

// Len returns the number of tips in the catalog.
func (c *TipCatalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tips)
}

// Translate maps lint issues to tips.
//
// Description:
//
//	Each issue is matched by rule code first, then by symbol. A tip is
//	emitted at most once no matter how many issues hit it. Tips are
//	ordered by their Order within each category. Issues that match
//	nothing are reported in Unmatched and otherwise dropped.
//
// Thread Safety: Safe for concurrent use.
func (c *TipCatalog) Translate(issues []LintIssue) Tips {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out Tips
	seen := make(map[string]bool)
	unmatched := make(map[string]bool)

	for _, issue := range issues {
		tip, ok := c.tips[issue.Rule]
		if !ok && issue.Symbol != "" {
			tip, ok = c.tips[issue.Symbol]
		}
		if !ok {
			if !unmatched[issue.Rule] {
				unmatched[issue.Rule] = true
				out.Unmatched = append(out.Unmatched, issue.Rule)
			}
			continue
		}
		if seen[tip.Code] {
			continue
		}
		seen[tip.Code] = true

		switch tip.Category {
		case CategoryBestPractice:
			out.BestPractices = append(out.BestPractices, tip)
		case CategoryLinter:
			out.Linter = append(out.Linter, tip)
		}
	}

	sortTips(out.BestPractices)
	sortTips(out.Linter)
	return out
}

func sortTips(tips []Tip) {
	sort.SliceStable(tips, func(i, j int) bool {
		if tips[i].Order != tips[j].Order {
			return tips[i].Order < tips[j].Order
		}
		return tips[i].Code < tips[j].Code
	})
}
