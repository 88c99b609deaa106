// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the review service configuration from YAML.
package config

import (
	"os"
	"time"

	"github.com/AleutianAI/AleutianReview/services/review/classifier"
	"github.com/AleutianAI/AleutianReview/services/review/lint"
	"github.com/AleutianAI/AleutianReview/services/review/pipeline"
	"github.com/AleutianAI/AleutianReview/services/review/telemetry"
)

// ReviewConfig is the top-level structure of review.yaml.
type ReviewConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Checks     ChecksConfig     `yaml:"checks"`
	Lint       LintConfig       `yaml:"lint"`
	Security   SecurityConfig   `yaml:"security"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Telemetry  telemetry.Config `yaml:"telemetry"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds HTTP listener and request limits.
type ServerConfig struct {
	Host           string  `yaml:"host"`
	Port           int     `yaml:"port" validate:"min=1,max=65535"`
	MaxCodeBytes   int     `yaml:"max_code_bytes" validate:"min=1"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps" validate:"gte=0"`
	RateLimitBurst int     `yaml:"rate_limit_burst" validate:"gte=0"`
}

// ChecksConfig holds per-check timeouts. Zero keeps the pipeline default.
type ChecksConfig struct {
	SyntaxTimeout   time.Duration `yaml:"syntax_timeout" validate:"gte=0"`
	LintTimeout     time.Duration `yaml:"lint_timeout" validate:"gte=0"`
	SecurityTimeout time.Duration `yaml:"security_timeout" validate:"gte=0"`
	MLTimeout       time.Duration `yaml:"ml_timeout" validate:"gte=0"`
}

// Timeouts converts the section to pipeline timeouts.
func (c ChecksConfig) Timeouts() pipeline.Timeouts {
	return pipeline.Timeouts{
		Syntax:   c.SyntaxTimeout,
		Lint:     c.LintTimeout,
		Security: c.SecurityTimeout,
		ML:       c.MLTimeout,
	}
}

// LintConfig selects linters and extends the tip catalog.
type LintConfig struct {
	// PythonLinters selects which python linters run.
	PythonLinters []string `yaml:"python_linters" validate:"dive,oneof=pylint ruff"`

	// ExtraTips are added to the built-in tips, overriding equal codes.
	ExtraTips []lint.Tip `yaml:"extra_tips"`

	// ReplaceTips drops the built-in tips so only ExtraTips remain.
	ReplaceTips bool `yaml:"replace_tips"`
}

// Tips returns the full tip set this section describes.
func (c LintConfig) Tips() []lint.Tip {
	if c.ReplaceTips {
		return append([]lint.Tip(nil), c.ExtraTips...)
	}
	return append(lint.DefaultTips(), c.ExtraTips...)
}

// SecurityConfig toggles the two halves of the security check.
type SecurityConfig struct {
	BuiltinRules  bool `yaml:"builtin_rules"`
	ExternalTools bool `yaml:"external_tools"`
}

// ClassifierConfig selects the ML backend.
type ClassifierConfig struct {
	Backend    string        `yaml:"backend" validate:"oneof=hf openai none"`
	URL        string        `yaml:"url" validate:"omitempty,url"`
	Model      string        `yaml:"model" validate:"required_if=Backend openai"`
	IssueLabel string        `yaml:"issue_label"`
	APIKeyEnv  string        `yaml:"api_key_env"`
	Timeout    time.Duration `yaml:"timeout" validate:"gte=0"`
}

// ClassifierSettings builds the classifier config, reading the API key
// from the environment variable named by APIKeyEnv.
func (c ClassifierConfig) ClassifierSettings() *classifier.Config {
	var key string
	if c.APIKeyEnv != "" {
		key = os.Getenv(c.APIKeyEnv)
	}
	return &classifier.Config{
		Backend:    c.Backend,
		URL:        c.URL,
		Model:      c.Model,
		IssueLabel: c.IssueLabel,
		APIKey:     key,
		Timeout:    c.Timeout,
	}
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir"`
}
