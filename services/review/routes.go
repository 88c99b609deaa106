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
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianReview/services/review/observability"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// ServiceName labels otelgin spans.
	ServiceName string

	// RateLimitRPS is the sustained request rate. Zero disables limiting.
	RateLimitRPS float64

	// RateLimitBurst is the bucket size. Defaults to 1 when limiting is on.
	RateLimitBurst int

	// Metrics receives request metrics. May be nil.
	Metrics *observability.ReviewMetrics

	// MetricsHandler serves GET /metrics. Nil omits the route.
	MetricsHandler http.Handler
}

// NewRouter builds a gin engine with the review middleware stack and routes.
//
// Middleware order: recovery, otelgin, request ID, metrics, rate limit.
// The limiter applies to the analyze endpoints only.
func NewRouter(cfg RouterConfig, handlers *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.ServiceName == "" {
		cfg.ServiceName = "review-service"
	}
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(RequestIDMiddleware())
	router.Use(MetricsMiddleware(cfg.Metrics))

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	if cfg.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	RegisterRoutes(router, handlers, RateLimitMiddleware(limiter, cfg.Metrics))
	return router
}

// RegisterRoutes registers the review endpoints.
//
// Endpoints:
//
//	POST /analyze             - Analyze a snippet (legacy path)
//	POST /v1/review/analyze   - Analyze a snippet
//	GET  /v1/review/health    - Health check
//	GET  /v1/review/ready     - Readiness with collaborator matrix
//
// Inputs:
//
//	router - Gin engine
//	handlers - The handlers instance
//	analyzeMiddleware - Extra middleware for the analyze endpoints (e.g., rate limiting)
func RegisterRoutes(router *gin.Engine, handlers *Handlers, analyzeMiddleware ...gin.HandlerFunc) {
	analyze := append(append([]gin.HandlerFunc{}, analyzeMiddleware...), handlers.HandleAnalyze)

	router.POST("/analyze", analyze...)

	v1 := router.Group("/v1/review")
	{
		v1.POST("/analyze", analyze...)
		v1.GET("/health", handlers.HandleHealth)
		v1.GET("/ready", handlers.HandleReady)
	}
}
