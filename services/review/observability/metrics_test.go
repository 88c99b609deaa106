// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestReviewMetrics_RecordCheck(t *testing.T) {
	m := NewReviewMetrics(prometheus.NewRegistry())

	m.RecordCheck("lint", "ok", 120*time.Millisecond)
	m.RecordCheck("lint", "ok", 80*time.Millisecond)
	m.RecordCheck("security", "skipped", 0)

	if got := testutil.ToFloat64(m.ChecksTotal.WithLabelValues("lint", "ok")); got != 2 {
		t.Errorf("lint ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ChecksTotal.WithLabelValues("security", "skipped")); got != 1 {
		t.Errorf("security skipped = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.CheckDurationSeconds); got != 2 {
		t.Errorf("duration series = %d, want 2", got)
	}
}

func TestReviewMetrics_Counters(t *testing.T) {
	m := NewReviewMetrics(prometheus.NewRegistry())

	m.RecordRequest("/v1/review/analyze", "200")
	m.RecordVerdict("clean")
	m.RecordVerdict("clean")
	m.RecordRateLimited()
	m.RecordDeduplicated()

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/v1/review/analyze", "200")); got != 1 {
		t.Errorf("requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.VerdictsTotal.WithLabelValues("clean")); got != 2 {
		t.Errorf("verdicts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RateLimitedTotal); got != 1 {
		t.Errorf("rate limited = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.DedupedTotal); got != 1 {
		t.Errorf("deduped = %v, want 1", got)
	}
}

func TestReviewMetrics_InFlight(t *testing.T) {
	m := NewReviewMetrics(prometheus.NewRegistry())

	m.AnalysisStarted()
	m.AnalysisStarted()
	m.AnalysisFinished()

	if got := testutil.ToFloat64(m.InFlight); got != 1 {
		t.Errorf("in flight = %v, want 1", got)
	}
}

func TestReviewMetrics_NilSafe(t *testing.T) {
	var m *ReviewMetrics

	m.RecordRequest("r", "200")
	m.RecordCheck("lint", "ok", time.Second)
	m.RecordVerdict("clean")
	m.AnalysisStarted()
	m.AnalysisFinished()
	m.RecordRateLimited()
	m.RecordDeduplicated()
}
