// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianReview/services/review/lint"
	"github.com/AleutianAI/AleutianReview/services/review/telemetry"
)

// ErrInvalidConfig is returned when the loaded config fails validation.
var ErrInvalidConfig = errors.New("invalid review config")

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() ReviewConfig {
	return ReviewConfig{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			MaxCodeBytes:   256 * 1024,
			RateLimitRPS:   10,
			RateLimitBurst: 20,
		},
		Checks: ChecksConfig{
			SyntaxTimeout:   5 * time.Second,
			LintTimeout:     30 * time.Second,
			SecurityTimeout: 30 * time.Second,
			MLTimeout:       30 * time.Second,
		},
		Lint: LintConfig{
			PythonLinters: []string{"pylint", "ruff"},
		},
		Security: SecurityConfig{
			BuiltinRules:  true,
			ExternalTools: true,
		},
		Classifier: ClassifierConfig{
			Backend:    "hf",
			URL:        "http://localhost:8081/predict",
			IssueLabel: "LABEL_1",
			APIKeyEnv:  "REVIEW_CLASSIFIER_API_KEY",
			Timeout:    30 * time.Second,
		},
		Telemetry: telemetry.DefaultConfig(),
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.aleutian/review.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".aleutian", "review.yaml"), nil
}

// Load reads the config at path over the defaults, applies environment
// overrides and validates the result.
//
// An empty path means DefaultPath, and a missing default file is not an
// error. An explicit path must exist.
func Load(path string) (ReviewConfig, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("failed to read the config file: %w", err)
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// WriteDefault writes DefaultConfig as YAML, creating parent directories.
// An existing file is left untouched and reported as an error.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks struct tags, the classifier endpoint and the tip entries.
func Validate(cfg ReviewConfig) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.Classifier.Backend == "hf" && cfg.Classifier.URL == "" {
		return fmt.Errorf("%w: classifier.url is required for the hf backend", ErrInvalidConfig)
	}
	if _, err := lint.NewTipCatalog(cfg.Lint.Tips()); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func applyEnv(cfg *ReviewConfig, lookup func(string) (string, bool)) error {
	if v, ok := lookup("REVIEW_HOST"); ok {
		cfg.Server.Host = v
	}
	if v, ok := lookup("REVIEW_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: REVIEW_PORT=%q: %v", ErrInvalidConfig, v, err)
		}
		cfg.Server.Port = port
	}
	if v, ok := lookup("REVIEW_CLASSIFIER_URL"); ok {
		cfg.Classifier.URL = v
	}
	if v, ok := lookup("REVIEW_CLASSIFIER_BACKEND"); ok {
		cfg.Classifier.Backend = v
	}
	if v, ok := lookup("REVIEW_LOG_LEVEL"); ok {
		cfg.Logging.Level = v
	}
	if v, ok := lookup("OTEL_SERVICE_NAME"); ok {
		cfg.Telemetry.ServiceName = v
	}
	if v, ok := lookup("OTEL_EXPORTER_OTLP_ENDPOINT"); ok {
		cfg.Telemetry.OTLPEndpoint = v
		if cfg.Telemetry.TraceExporter == "" || cfg.Telemetry.TraceExporter == telemetry.ExporterNone {
			cfg.Telemetry.TraceExporter = telemetry.ExporterOTLP
		}
	}
	return nil
}
