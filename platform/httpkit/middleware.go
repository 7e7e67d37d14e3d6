// Package httpkit provides HTTP middleware infrastructure.
// This is part of the platform layer and contains no business logic.
package httpkit

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"buyer_crm_backend/platform/logger"
	"buyer_crm_backend/platform/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderRequestID carries the request id in and out of the service.
const HeaderRequestID = "X-Request-ID"

// RequestID assigns every request an id and stores it in the request context for logging.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, id)
		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// RequestLogger logs HTTP requests with timing.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		clientIP := c.ClientIP()

		reqLog := log.WithContext(c.Request.Context())
		reqLog.HTTPRequest(c.Request.Method, path, status, float64(latency.Milliseconds()), clientIP)
		if status >= http.StatusInternalServerError {
			if last := c.Errors.Last(); last != nil {
				reqLog.HTTPError(c.Request.Method, path, status, last.Err, clientIP)
			}
		}
	}
}

// SecurityHeaders adds security headers to responses.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'self'")

		// Only add HSTS in production
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}

// RateLimiter spends one unit of a per-subject budget on every request it guards.
type RateLimiter struct {
	limiter ratelimit.Limiter
	limit   int
	window  time.Duration
	log     *logger.Logger
}

// NewRateLimiter creates a middleware factory allowing limit requests per window per subject.
func NewRateLimiter(limiter ratelimit.Limiter, limit int, window time.Duration, log *logger.Logger) *RateLimiter {
	return &RateLimiter{limiter: limiter, limit: limit, window: window, log: log}
}

// RateLimit returns a middleware keyed by the authenticated subject, or the client IP
// when no subject is set. scope separates budgets of different route groups.
// A limiter failure lets the request through.
func (r *RateLimiter) RateLimit(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, ok := Subject(c)
		if !ok {
			subject = "ip:" + c.ClientIP()
		}
		key := scope + ":" + subject

		decision, err := r.limiter.Allow(c.Request.Context(), key, r.limit, r.window)
		if err != nil {
			if r.log != nil {
				r.log.WithContext(c.Request.Context()).Warn("rate limiter unavailable", "error", err, "key", key)
			}
			c.Next()
			return
		}

		if !decision.Allowed {
			if r.log != nil {
				r.log.RateLimitExceeded(key, c.Request.URL.Path)
			}
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(decision.RetryAfter)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "rate limit exceeded",
				Kind:  "RateLimited",
			})
			return
		}

		c.Next()
	}
}

func retryAfterSeconds(d time.Duration) int {
	seconds := int((d + time.Second - 1) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}

	rawToken := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if rawToken == "" {
		return "", false
	}

	return rawToken, true
}
