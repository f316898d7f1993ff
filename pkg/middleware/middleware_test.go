package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"frameworks/klaxon/pkg/logging"
)

func serve(r *gin.Engine, method, path string, header map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRequestIDGeneratedAndExposed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := serve(r, "GET", "/ping", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	requestID := w.Header().Get("X-Request-ID")
	if requestID == "" {
		t.Fatal("expected X-Request-ID header")
	}
	if _, err := uuid.Parse(requestID); err != nil {
		t.Fatalf("expected generated id to be a UUID, got %q", requestID)
	}
}

func TestRequestIDPassthrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		if got := GetRequestID(c); got != "req-123" {
			t.Errorf("expected context request id req-123, got %q", got)
		}
		c.String(http.StatusOK, "pong")
	})

	w := serve(r, "GET", "/ping", map[string]string{"X-Request-ID": "req-123"})
	if got := w.Header().Get("X-Request-ID"); got != "req-123" {
		t.Fatalf("expected incoming id echoed, got %q", got)
	}
}

func TestCORSEchoesOriginForCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := serve(r, "GET", "/ping", map[string]string{"Origin": "https://console.example.com"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://console.example.com" {
		t.Fatalf("expected origin echoed, got %q", got)
	}
	if w.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatal("expected credentials allowed for cookie sessions")
	}
	if w.Header().Get("Vary") != "Origin" {
		t.Fatal("expected Vary: Origin on per-origin response")
	}
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handlerRan := false
	r := gin.New()
	r.Use(CORSMiddleware())
	r.OPTIONS("/ping", func(c *gin.Context) { handlerRan = true })

	w := serve(r, "OPTIONS", "/ping", map[string]string{"Origin": "https://console.example.com"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", w.Code)
	}
	if handlerRan {
		t.Fatal("expected preflight to stop before the handler")
	}
}

func TestCORSWithoutOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := serve(r, "GET", "/ping", nil)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow-origin for same-origin request, got %q", got)
	}
}

func TestTimeoutMiddlewareCancelsSlowHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TimeoutMiddleware(10 * time.Millisecond))
	r.GET("/slow", func(c *gin.Context) {
		select {
		case <-time.After(time.Second):
			c.String(http.StatusOK, "done")
		case <-c.Request.Context().Done():
			c.AbortWithStatus(http.StatusGatewayTimeout)
		}
	})

	w := serve(r, "GET", "/slow", nil)
	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", w.Code)
	}
}

func TestRecoveryMiddlewareRendersEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RecoveryMiddleware(logging.NewLogger()))
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := serve(r, "GET", "/panic", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON error envelope, got %q", w.Body.String())
	}
	if body["error"] == "" {
		t.Fatal("expected error message in envelope")
	}
}

func TestLoggingMiddlewareSkipsProbes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := logging.NewLogger()
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	r := gin.New()
	r.Use(LoggingMiddleware(logger))
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/api/v1/backends", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	serve(r, "GET", "/health", nil)
	serve(r, "GET", "/api/v1/backends", nil)

	logs := buf.String()
	if strings.Contains(logs, "/health") {
		t.Fatalf("expected health probe left out of request logs, got %q", logs)
	}
	if !strings.Contains(logs, "/api/v1/backends") {
		t.Fatalf("expected API request logged, got %q", logs)
	}
}
