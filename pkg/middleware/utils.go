package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"frameworks/klaxon/pkg/ctxkeys"
	"frameworks/klaxon/pkg/logging"
)

// SetupCommonMiddleware adds the fleet middleware stack to a router. Recovery
// sits downstream of the timeout so a panicking handler unwinds inside the
// timeout goroutine rather than killing it.
func SetupCommonMiddleware(r *gin.Engine, logger logging.Logger) {
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(defaultRequestTimeout))
	r.Use(RecoveryMiddleware(logger))
	r.Use(CORSMiddleware())
}

// GetRequestID reads the request id stamped by RequestIDMiddleware.
func GetRequestID(c *gin.Context) string {
	id, ok := c.Get(string(ctxkeys.KeyRequestID))
	if !ok {
		return ""
	}
	s, _ := id.(string)
	return s
}

// GetContextLogger returns a logger annotated with the request's identity,
// for handlers that log more than the access line.
func GetContextLogger(c *gin.Context, logger logging.Logger) *logrus.Entry {
	return logger.WithFields(logging.Fields{
		"request_id": GetRequestID(c),
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"tenant_id":  c.GetString(string(ctxkeys.KeyTenantID)),
		"user_id":    c.GetString(string(ctxkeys.KeyUserID)),
	})
}
