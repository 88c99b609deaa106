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

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianReview/services/review/observability"
	"github.com/AleutianAI/AleutianReview/services/review/pipeline"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAnalyzer struct {
	mu   sync.Mutex
	subs []pipeline.Submission
}

func (f *fakeAnalyzer) Analyze(_ context.Context, sub pipeline.Submission) *pipeline.Report {
	f.mu.Lock()
	f.subs = append(f.subs, sub)
	f.mu.Unlock()

	msg := "SyntaxError detected: invalid syntax at line 1, column 1"
	return &pipeline.Report{
		SyntaxError:      &msg,
		BestPractices:    "",
		LinterResults:    "",
		MLResults:        "The code appears clean with a confidence of 0.80.",
		SecurityAnalysis: "Skipping bandit due to syntax errors.",
		Language:         pipeline.ResolveLanguage(sub),
		Verdict:          pipeline.VerdictSyntaxError,
		Checks:           map[string]pipeline.CheckResult{},
	}
}

func newTestRouter(t *testing.T, cfg RouterConfig, maxBytes int) (*gin.Engine, *fakeAnalyzer) {
	t.Helper()
	a := &fakeAnalyzer{}
	h := NewHandlers(a, maxBytes, func() ReadyResponse {
		return ReadyResponse{Syntax: []string{"python"}, Linters: map[string]bool{"python/pylint": false}}
	})
	return NewRouter(cfg, h), a
}

func post(router http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleAnalyze_ReturnsAllFields(t *testing.T) {
	router, a := newTestRouter(t, RouterConfig{}, 0)

	for _, path := range []string{"/analyze", "/v1/review/analyze"} {
		w := post(router, path, `{"code": "print(1"}`)
		require.Equal(t, http.StatusOK, w.Code, path)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		for _, key := range []string{"syntax_error", "best_practices", "linter_results", "ml_results", "security_analysis", "verdict", "language"} {
			assert.Contains(t, body, key, path)
		}
		assert.Equal(t, "Skipping bandit due to syntax errors.", body["security_analysis"])
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	}
	assert.Len(t, a.subs, 2)
}

func TestHandleAnalyze_PassesLanguageHint(t *testing.T) {
	router, a := newTestRouter(t, RouterConfig{}, 0)

	w := post(router, "/v1/review/analyze", `{"code": "x := 1", "language": "golang"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, a.subs, 1)
	assert.Equal(t, "golang", a.subs[0].Language)
}

func TestHandleAnalyze_EmptyCodeIsAccepted(t *testing.T) {
	router, _ := newTestRouter(t, RouterConfig{}, 0)
	w := post(router, "/analyze", `{}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleAnalyze_BadRequests(t *testing.T) {
	router, a := newTestRouter(t, RouterConfig{}, 16)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"code": `},
		{"wrong type", `{"code": 42}`},
		{"empty body", ``},
		{"unknown language", `{"code": "x", "language": "cobol"}`},
		{"too large", `{"code": "` + strings.Repeat("a", 17) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(router, "/v1/review/analyze", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "INVALID_REQUEST", resp.Code)
		})
	}
	assert.Empty(t, a.subs)
}

func TestHandleAnalyze_OversizedBodyRejectedBeforeDecode(t *testing.T) {
	router, a := newTestRouter(t, RouterConfig{}, 16)

	body := `{"code": "` + strings.Repeat("a", int(maxBodyBytes(16))) + `"}`
	w := post(router, "/v1/review/analyze", body)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Code too large", resp.Error)
	assert.Contains(t, resp.Details, "request body exceeds")
	assert.Empty(t, a.subs)
}

func TestHandleAnalyze_EscapedCodeAtLimitAccepted(t *testing.T) {
	router, a := newTestRouter(t, RouterConfig{}, 16)

	// 16 control bytes, each escaped to six bytes on the wire.
	w := post(router, "/v1/review/analyze", `{"code": "`+strings.Repeat(`\u0001`, 16)+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, a.subs, 1)
	assert.Len(t, a.subs[0].Code, 16)
}

func TestHandleAnalyze_RequestIDEchoed(t *testing.T) {
	router, _ := newTestRouter(t, RouterConfig{}, 0)

	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{"code":"x"}`))
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
}

func TestRateLimit(t *testing.T) {
	m := observability.NewReviewMetrics(prometheus.NewRegistry())
	router, _ := newTestRouter(t, RouterConfig{RateLimitRPS: 0.001, RateLimitBurst: 1, Metrics: m}, 0)

	w := post(router, "/analyze", `{"code":"x"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = post(router, "/analyze", `{"code":"x"}`)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "RATE_LIMITED", resp.Code)

	// Health is not rate limited.
	req := httptest.NewRequest(http.MethodGet, "/v1/review/health", nil)
	hw := httptest.NewRecorder()
	router.ServeHTTP(hw, req)
	assert.Equal(t, http.StatusOK, hw.Code)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RateLimitedTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/analyze", "429")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/analyze", "200")))
}

func TestHandleHealth(t *testing.T) {
	router, _ := newTestRouter(t, RouterConfig{}, 0)

	req := httptest.NewRequest(http.MethodGet, "/v1/review/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, ServiceVersion, resp.Version)
}

func TestHandleReady(t *testing.T) {
	router, _ := newTestRouter(t, RouterConfig{}, 0)

	req := httptest.NewRequest(http.MethodGet, "/v1/review/ready", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp ReadyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Ready)
	assert.Equal(t, []string{"python"}, resp.Syntax)
}

func TestHandleReady_NothingUsable(t *testing.T) {
	h := NewHandlers(&fakeAnalyzer{}, 0, func() ReadyResponse {
		return ReadyResponse{Linters: map[string]bool{"python/pylint": false}}
	})
	router := NewRouter(RouterConfig{}, h)

	req := httptest.NewRequest(http.MethodGet, "/v1/review/ready", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
}

func TestMetricsRoute(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("aleutian_review_verdicts_total 1\n"))
	})
	router, _ := newTestRouter(t, RouterConfig{MetricsHandler: handler}, 0)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "aleutian_review_verdicts_total")
}

func TestReadyResponse_Usable(t *testing.T) {
	assert.False(t, ReadyResponse{}.Usable())
	assert.True(t, ReadyResponse{Classifier: "hf"}.Usable())
	assert.True(t, ReadyResponse{Scanners: map[string]bool{"python": true}}.Usable())
	assert.True(t, ReadyResponse{Linters: map[string]bool{"go/golangci-lint": true}}.Usable())
}
