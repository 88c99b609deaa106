// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classifier scores snippets with a remote text-classification model.
//
// # Description
//
// A Classifier returns the probability that a snippet belongs to the
// "issue" class. Interpret maps that probability to one of three canned
// assessments using two fixed thresholds. The model never runs in-process:
// backends call an inference server over HTTP.
//
// # Backends
//
//   - hf: a HuggingFace text-classification server (TEI /predict or the
//     Inference API), reading the score of a configurable issue label.
//   - openai: an OpenAI-compatible chat completion endpoint asked to
//     return {"issue_probability": x}.
//
// # Thread Safety
//
// Classifiers are immutable after construction and safe for concurrent use.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Sentinel errors.
var (
	// ErrInvalidConfig indicates the classifier configuration is unusable.
	ErrInvalidConfig = errors.New("invalid classifier config")

	// ErrUpstream indicates the inference server returned an error.
	ErrUpstream = errors.New("inference server error")

	// ErrLabelNotFound indicates the response had no score for the issue label.
	ErrLabelNotFound = errors.New("issue label not in response")

	// ErrInvalidScore indicates a score outside [0, 1].
	ErrInvalidScore = errors.New("invalid score")
)

// Classifier produces an issue-class probability for a snippet.
type Classifier interface {
	// Classify returns the probability in [0, 1] that code has issues.
	Classify(ctx context.Context, code string) (float64, error)

	// Name identifies the backend and model for logs and reports.
	Name() string
}

// Backend names accepted by Config.Backend.
const (
	BackendHF     = "hf"
	BackendOpenAI = "openai"
	BackendNone   = "none"
)

// Config selects and configures a backend.
type Config struct {
	// Backend is one of "hf", "openai", or "none".
	Backend string

	// URL is the inference endpoint. For openai it is the API base URL.
	URL string

	// Model names the model. Required for openai.
	Model string

	// IssueLabel is the label whose score is the issue probability (hf only).
	IssueLabel string

	// APIKey authenticates to the endpoint. Moved into an enclave and
	// wiped from this struct by New.
	APIKey string

	// Timeout bounds a single request.
	Timeout time.Duration
}

// New builds the configured classifier.
//
// # Description
//
// Returns (nil, nil) for the "none" backend so callers can treat a
// missing classifier as "not configured".
//
// # Outputs
//
//   - Classifier: The backend, or nil for "none".
//   - error: ErrInvalidConfig on unknown backend or bad settings.
func New(cfg *Config) (Classifier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}

	key := NewSecret(cfg.APIKey)
	cfg.APIKey = ""

	switch strings.ToLower(cfg.Backend) {
	case BackendNone, "":
		return nil, nil
	case BackendHF:
		opts := []HFOption{WithIssueLabel(cfg.IssueLabel), WithToken(key), WithModelName(cfg.Model)}
		if cfg.Timeout > 0 {
			opts = append(opts, WithTimeout(cfg.Timeout))
		}
		return NewHFClient(cfg.URL, opts...)
	case BackendOpenAI:
		return NewOpenAIClassifier(cfg.URL, cfg.Model, key, cfg.Timeout)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, cfg.Backend)
	}
}

// validateScore rejects NaN and values outside [0, 1].
func validateScore(score float64) (float64, error) {
	if math.IsNaN(score) || score < 0 || score > 1 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidScore, score)
	}
	return score, nil
}
