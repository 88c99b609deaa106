// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package review exposes the code review pipeline over HTTP.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianReview/services/review/pipeline"
)

// ServiceVersion is the review service version. Overridden at build time
// with -ldflags "-X github.com/AleutianAI/AleutianReview/services/review.ServiceVersion=...".
var ServiceVersion = "0.1.0"

// DefaultMaxCodeBytes bounds the snippet size accepted over HTTP.
const DefaultMaxCodeBytes = 256 * 1024

// bodyOverhead is the room left for the JSON envelope around the code.
const bodyOverhead = 4096

// maxBodyBytes bounds the raw request body for a maxCode snippet. JSON
// escaping can spend six bytes (\u0000) on one source byte.
func maxBodyBytes(maxCode int) int64 {
	return int64(maxCode)*6 + bodyOverhead
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("review_language", func(fl validator.FieldLevel) bool {
		_, ok := pipeline.NormalizeLanguage(fl.Field().String())
		return ok
	})
	return v
}

// Analyzer produces a report for a submission.
type Analyzer interface {
	Analyze(ctx context.Context, sub pipeline.Submission) *pipeline.Report
}

// Handlers contains the HTTP handlers for code review.
type Handlers struct {
	analyzer     Analyzer
	maxCodeBytes int
	readiness    func() ReadyResponse
}

// NewHandlers creates handlers for the given analyzer.
//
// Inputs:
//
//	analyzer - The pipeline.
//	maxCodeBytes - Largest accepted snippet. Zero uses DefaultMaxCodeBytes.
//	readiness - Reports collaborator availability. May be nil.
func NewHandlers(analyzer Analyzer, maxCodeBytes int, readiness func() ReadyResponse) *Handlers {
	if maxCodeBytes <= 0 {
		maxCodeBytes = DefaultMaxCodeBytes
	}
	return &Handlers{
		analyzer:     analyzer,
		maxCodeBytes: maxCodeBytes,
		readiness:    readiness,
	}
}

// getOrCreateRequestID extracts or generates a request ID and echoes it back.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetString(requestIDKey); id != "" {
		return id
	}
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	c.Set(requestIDKey, requestID)
	return requestID
}

// HandleAnalyze handles POST /analyze and POST /v1/review/analyze.
//
// Description:
//
//	Runs every check against the snippet and returns the composite report.
//	Check failures are reported inside the body, never as HTTP errors.
//
// Request Body:
//
//	AnalyzeRequest
//
// Response:
//
//	200 OK: pipeline.Report
//	400 Bad Request: Malformed JSON, oversized code, or unknown language
func (h *Handlers) HandleAnalyze(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAnalyze")

	limit := maxBodyBytes(h.maxCodeBytes)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn("Request body too large", "max", limit)
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "Code too large",
				Code:    "INVALID_REQUEST",
				Details: fmt.Sprintf("request body exceeds %d bytes; the code limit is %d", limit, h.maxCodeBytes),
			})
			return
		}
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	if err := validate.Struct(&req); err != nil {
		logger.Warn("Request validation failed", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Unsupported language",
			Code:    "INVALID_REQUEST",
			Details: fmt.Sprintf("language %q is not one of %v", req.Language, pipeline.SupportedLanguages),
		})
		return
	}

	if len(req.Code) > h.maxCodeBytes {
		logger.Warn("Code too large", "bytes", len(req.Code), "max", h.maxCodeBytes)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Code too large",
			Code:    "INVALID_REQUEST",
			Details: fmt.Sprintf("code is %d bytes; the limit is %d", len(req.Code), h.maxCodeBytes),
		})
		return
	}

	report := h.analyzer.Analyze(c.Request.Context(), pipeline.Submission{
		Code:     req.Code,
		Language: req.Language,
	})

	logger.Info("Analysis complete",
		"language", report.Language,
		"verdict", report.Verdict,
		"code_bytes", len(req.Code))

	c.JSON(http.StatusOK, report)
}

// HandleHealth handles GET /v1/review/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// HandleReady handles GET /v1/review/ready.
//
// Description:
//
//	Returns the collaborator availability matrix. Responds 503 when no
//	check could produce a result.
func (h *Handlers) HandleReady(c *gin.Context) {
	var resp ReadyResponse
	if h.readiness != nil {
		resp = h.readiness()
	}
	resp.Ready = resp.Usable()

	if !resp.Ready {
		c.Header("Retry-After", "30")
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
