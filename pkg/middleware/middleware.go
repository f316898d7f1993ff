package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"frameworks/klaxon/pkg/ctxkeys"
	"frameworks/klaxon/pkg/logging"
)

// Context aliases the gin request context so handlers outside this package
// do not import gin directly.
type Context = *gin.Context

// HandlerFunc aliases the gin handler signature.
type HandlerFunc = gin.HandlerFunc

// H aliases gin's JSON body shorthand.
type H = gin.H

// defaultRequestTimeout bounds a whole request, upstream retries included.
const defaultRequestTimeout = 30 * time.Second

// LoggingMiddleware provides structured request logging. Health and metrics
// probes are skipped; the fleet scrapes both every few seconds and the lines
// drown out real traffic.
func LoggingMiddleware(logger logging.Logger) HandlerFunc {
	return func(c Context) {
		start := time.Now()

		c.Next()

		path := c.Request.URL.Path
		if path == "/health" || path == "/metrics" {
			return
		}

		logger.WithFields(logging.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"duration":   time.Since(start),
			"request_id": GetRequestID(c),
			"client_ip":  c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
			"tenant_id":  c.GetString(string(ctxkeys.KeyTenantID)),
			"user_id":    c.GetString(string(ctxkeys.KeyUserID)),
		}).Info("HTTP request")
	}
}

// CORSMiddleware answers console preflights. The session cookie only flows
// when the response names a concrete origin, so the request origin is echoed
// back rather than a wildcard.
func CORSMiddleware() HandlerFunc {
	return func(c Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Header("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RecoveryMiddleware converts handler panics into a 500 with the common
// error envelope instead of a dropped connection.
func RecoveryMiddleware(logger logging.Logger) HandlerFunc {
	return func(c Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.WithFields(logging.Fields{
					"error":      err,
					"request_id": GetRequestID(c),
					"method":     c.Request.Method,
					"path":       c.Request.URL.Path,
				}).Error("Request handler panic")

				c.AbortWithStatusJSON(http.StatusInternalServerError, H{"error": "internal server error"})
			}
		}()

		c.Next()
	}
}

// RequestIDMiddleware accepts an upstream X-Request-ID or mints one, and
// makes it available on both the gin context and the response header so the
// console can correlate its calls with klaxon's logs.
func RequestIDMiddleware() HandlerFunc {
	return func(c Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(string(ctxkeys.KeyRequestID), requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// TimeoutMiddleware bounds request processing. The deadline propagates
// through the request context into the upstream aldis and mayday calls, so
// a hung upstream turns into a 504 here instead of a stuck console tab.
func TimeoutMiddleware(timeout time.Duration) HandlerFunc {
	return func(c Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		finished := make(chan struct{})
		go func() {
			defer close(finished)
			c.Next()
		}()

		select {
		case <-finished:
		case <-ctx.Done():
			c.AbortWithStatus(http.StatusGatewayTimeout)
		}
	}
}
