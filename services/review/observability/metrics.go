// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the review service.
//
// # Description
//
// Metrics include:
//   - Request counters (by route and HTTP status)
//   - Per-check counters and latency histograms (syntax, lint, security, ml)
//   - Verdict counters
//   - In-flight analysis gauge
//   - Rate-limit rejections and singleflight deduplication hits
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
// Every method is nil-safe so callers can run without metrics.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "aleutian"
	reviewSubsystem  = "review"
)

// ReviewMetrics holds all Prometheus metrics for code review.
//
// # Fields
//
//   - RequestsTotal: HTTP requests by route and status code
//   - ChecksTotal: Check executions by check name and status (ok, error, skipped)
//   - CheckDurationSeconds: Check latency by check name
//   - VerdictsTotal: Reports by verdict
//   - InFlight: Analyses currently running
//   - RateLimitedTotal: Requests rejected by the rate limiter
//   - DedupedTotal: Requests served by a concurrent identical analysis
type ReviewMetrics struct {
	RequestsTotal        *prometheus.CounterVec
	ChecksTotal          *prometheus.CounterVec
	CheckDurationSeconds *prometheus.HistogramVec
	VerdictsTotal        *prometheus.CounterVec
	InFlight             prometheus.Gauge
	RateLimitedTotal     prometheus.Counter
	DedupedTotal         prometheus.Counter
}

// DefaultMetrics is the process-wide instance. Set by InitMetrics.
var DefaultMetrics *ReviewMetrics

// InitMetrics registers metrics with the default Prometheus registry.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *ReviewMetrics {
	DefaultMetrics = NewReviewMetrics(prometheus.DefaultRegisterer)
	return DefaultMetrics
}

// NewReviewMetrics creates metrics registered with reg.
//
// # Inputs
//
//   - reg: Registerer to use. Tests pass prometheus.NewRegistry().
func NewReviewMetrics(reg prometheus.Registerer) *ReviewMetrics {
	factory := promauto.With(reg)

	return &ReviewMetrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: reviewSubsystem,
				Name:      "requests_total",
				Help:      "Total number of review HTTP requests by route and status",
			},
			[]string{"route", "status"},
		),
		ChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: reviewSubsystem,
				Name:      "checks_total",
				Help:      "Total number of check executions by check and status",
			},
			[]string{"check", "status"},
		),
		CheckDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: reviewSubsystem,
				Name:      "check_duration_seconds",
				Help:      "Check execution time in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"check"},
		),
		VerdictsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: reviewSubsystem,
				Name:      "verdicts_total",
				Help:      "Total number of reports by verdict",
			},
			[]string{"verdict"},
		),
		InFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: reviewSubsystem,
				Name:      "in_flight",
				Help:      "Number of analyses currently running",
			},
		),
		RateLimitedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: reviewSubsystem,
				Name:      "rate_limited_total",
				Help:      "Total number of requests rejected by the rate limiter",
			},
		),
		DedupedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: reviewSubsystem,
				Name:      "deduplicated_total",
				Help:      "Total number of requests that shared an in-flight identical analysis",
			},
		),
	}
}

// RecordRequest counts an HTTP request.
func (m *ReviewMetrics) RecordRequest(route, status string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(route, status).Inc()
}

// RecordCheck counts a check execution and observes its latency.
func (m *ReviewMetrics) RecordCheck(check, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ChecksTotal.WithLabelValues(check, status).Inc()
	m.CheckDurationSeconds.WithLabelValues(check).Observe(d.Seconds())
}

// RecordVerdict counts a finished report.
func (m *ReviewMetrics) RecordVerdict(verdict string) {
	if m == nil {
		return
	}
	m.VerdictsTotal.WithLabelValues(verdict).Inc()
}

// AnalysisStarted increments the in-flight gauge.
func (m *ReviewMetrics) AnalysisStarted() {
	if m == nil {
		return
	}
	m.InFlight.Inc()
}

// AnalysisFinished decrements the in-flight gauge.
func (m *ReviewMetrics) AnalysisFinished() {
	if m == nil {
		return
	}
	m.InFlight.Dec()
}

// RecordRateLimited counts a rejected request.
func (m *ReviewMetrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.RateLimitedTotal.Inc()
}

// RecordDeduplicated counts a request that joined an in-flight analysis.
func (m *ReviewMetrics) RecordDeduplicated() {
	if m == nil {
		return
	}
	m.DedupedTotal.Inc()
}
