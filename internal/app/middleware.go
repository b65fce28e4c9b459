package app

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyellow/anan-assistant-go/internal/ctxutil"
	"github.com/garyellow/anan-assistant-go/internal/logger"
	"github.com/garyellow/anan-assistant-go/internal/metrics"
	"github.com/garyellow/anan-assistant-go/internal/ratelimit"
)

// requestIDHeader is echoed on every response.
const requestIDHeader = "X-Request-Id"

// securityHeadersMiddleware adds security headers to responses. The index
// page relaxes the CSP for its own inline script and style.
func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'none'")
		c.Header("X-Permitted-Cross-Domain-Policies", "none")
		c.Next()
	}
}

// requestContextMiddleware assigns a request id (taken from X-Request-Id
// or generated), tags the context as a web request and logs the result
// with a status-based level: 5xx=Error, 4xx=Warn, rest=Debug.
func requestContextMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		ctx := ctxutil.WithRequestID(c.Request.Context(), requestID)
		ctx = ctxutil.WithSource(ctx, ctxutil.SourceWeb)
		ctx = ctxutil.WithUserID(ctx, c.ClientIP())
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		entry := log.WithRequestID(requestID).
			WithField("http_method", c.Request.Method).
			WithField("http_path", c.FullPath()).
			WithField("http_status", status).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			WithField("client_ip", c.ClientIP())

		switch {
		case status >= 500:
			entry.Error("HTTP request failed")
		case status >= 400 && status != http.StatusNotFound:
			entry.Warn("HTTP request rejected")
		default:
			entry.Debug("HTTP request completed")
		}
	}
}

// globalRateLimitMiddleware sheds load above the process-wide rate.
func globalRateLimitMiddleware(limiter *ratelimit.Limiter, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			m.RecordRateLimiterDrop("global")
			m.RecordHTTPError("rate_limited", c.FullPath())
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

// clientRateLimitMiddleware applies the per-client bucket and daily quota
// keyed by client IP.
func clientRateLimitMiddleware(limiter *ratelimit.KeyedLimiter, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if !limiter.Allow(key) {
			m.RecordHTTPError("rate_limited", c.FullPath())
			retry := "60"
			if limiter.DailyRemaining(key) == 0 {
				retry = strconv.Itoa(int(ratelimit.DailyWindow.Seconds()))
			}
			c.Header("Retry-After", retry)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "質問が多すぎます。しばらくしてから再度お試しください。"})
			return
		}
		c.Next()
	}
}

// readinessMiddleware rejects webhook requests with 503 until the initial
// warmup completes. LINE retries them.
func (a *Application) readinessMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.readinessState.IsReady() {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error":       "service warming up",
				"retry_after": 60,
			})
			return
		}
		c.Next()
	}
}
