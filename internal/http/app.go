// Package http provides HTTP server infrastructure including module registration.
package http

import (
	"context"
	"net/http"

	"buyer_crm_backend/platform/config"
	"buyer_crm_backend/platform/logger"
	"buyer_crm_backend/platform/ratelimit"

	"github.com/gin-gonic/gin"
)

// RouterConfig combines the config interfaces needed by the HTTP router.
type RouterConfig interface {
	config.HTTPConfig
	config.RateLimitConfig
}

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App holds the fully initialized application dependencies.
// This is populated by main.go (the composition root) and passed to the router.
type App struct {
	// Config holds the router configuration (HTTP and rate limit settings only).
	Config RouterConfig
	// Logger is the structured logger.
	Logger *logger.Logger
	// Health is used for readiness/health checks (e.g., DB ping). May be nil.
	Health HealthChecker
	// Auth rejects unauthenticated requests on the protected group.
	Auth gin.HandlerFunc
	// Limiter backs the write and import budgets. Nil disables rate limiting.
	Limiter ratelimit.Limiter
	// Metrics serves the prometheus scrape endpoint. Nil disables /metrics.
	Metrics http.Handler
	// Modules contains all HTTP-facing domain modules.
	Modules []Module
}
