// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package review

// AnalyzeRequest is the request body for POST /analyze and
// POST /v1/review/analyze.
type AnalyzeRequest struct {
	// Code is the snippet to review. An empty snippet is allowed.
	Code string `json:"code"`

	// Language is an optional hint (python, javascript, typescript, go, or
	// an alias such as py, js, ts, golang). Empty means detect.
	Language string `json:"language" validate:"omitempty,review_language"`
}

// ErrorResponse is returned for requests that could not be analyzed.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the machine-readable error code.
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}

// HealthResponse is the response for GET /v1/review/health.
type HealthResponse struct {
	// Status is always "healthy" while the process serves requests.
	Status string `json:"status"`

	// Version is the service version.
	Version string `json:"version"`
}

// ReadyResponse is the response for GET /v1/review/ready.
type ReadyResponse struct {
	// Ready is true when at least one check can run.
	Ready bool `json:"ready"`

	// Syntax lists languages the parse-only checker supports.
	Syntax []string `json:"syntax"`

	// Compilers maps external syntax compiler name to whether it was found.
	Compilers map[string]bool `json:"compilers"`

	// Linters maps "language/linter" to whether the binary was found.
	Linters map[string]bool `json:"linters"`

	// Scanners maps external scanner name to whether it was found.
	Scanners map[string]bool `json:"scanners"`

	// Classifier names the ML backend, or "" when none is configured.
	Classifier string `json:"classifier"`
}

// Usable reports whether any check could produce a result.
func (r ReadyResponse) Usable() bool {
	if len(r.Syntax) > 0 || r.Classifier != "" {
		return true
	}
	for _, ok := range r.Linters {
		if ok {
			return true
		}
	}
	for _, ok := range r.Scanners {
		if ok {
			return true
		}
	}
	return false
}
