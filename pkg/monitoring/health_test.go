package monitoring

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestHealthCheckerStampsIdentity(t *testing.T) {
	hc := NewHealthChecker("klaxon", "0.7.0")

	status := hc.CheckHealth()
	if status.Status != StatusHealthy {
		t.Fatalf("checker with no checks reported %q", status.Status)
	}
	if status.Service != "klaxon" || status.Version != "0.7.0" {
		t.Errorf("identity not stamped: service=%q version=%q", status.Service, status.Version)
	}
	if status.Timestamp == 0 {
		t.Error("timestamp not set")
	}
}

func TestHealthCheckerWorstResultWins(t *testing.T) {
	tests := []struct {
		name    string
		results []string
		want    string
	}{
		{"all green", []string{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"degraded beats healthy", []string{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy beats degraded", []string{StatusDegraded, StatusUnhealthy}, StatusUnhealthy},
		{"unknown status counts as unhealthy", []string{StatusHealthy, "confused"}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker("klaxon", "test")
			for i, result := range tt.results {
				hc.AddCheck(fmt.Sprintf("dep-%d", i), func() CheckResult {
					return CheckResult{Status: result}
				})
			}

			status := hc.CheckHealth()
			if status.Status != tt.want {
				t.Fatalf("aggregate = %q, want %q", status.Status, tt.want)
			}
			if len(status.Checks) != len(tt.results) {
				t.Errorf("expected %d check results, got %d", len(tt.results), len(status.Checks))
			}
		})
	}
}

func TestHealthHandlerStatusCodes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	serve := func(result string) int {
		hc := NewHealthChecker("klaxon", "test")
		hc.AddCheck("aldis", func() CheckResult { return CheckResult{Status: result} })

		r := gin.New()
		r.GET("/health", hc.Handler())

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		return w.Code
	}

	if code := serve(StatusHealthy); code != http.StatusOK {
		t.Fatalf("healthy served %d, want 200", code)
	}
	// Degraded still serves 200 so load balancers keep routing to it.
	if code := serve(StatusDegraded); code != http.StatusOK {
		t.Fatalf("degraded served %d, want 200", code)
	}
	if code := serve(StatusUnhealthy); code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy served %d, want 503", code)
	}
}

func TestHTTPServiceHealthCheckUpstreamStatuses(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer up.Close()

	if res := HTTPServiceHealthCheck("aldis", up.URL)(); res.Status != StatusHealthy {
		t.Fatalf("2xx upstream reported %q (%s)", res.Status, res.Message)
	}

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()

	res := HTTPServiceHealthCheck("mayday", broken.URL)()
	if res.Status != StatusUnhealthy {
		t.Fatalf("5xx upstream reported %q", res.Status)
	}
	if !strings.Contains(res.Message, "502") {
		t.Errorf("message should carry the upstream status code, got %q", res.Message)
	}
}

func TestHTTPServiceHealthCheckUnreachableUpstream(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	s.Close() // the port now refuses connections

	res := HTTPServiceHealthCheck("aldis", s.URL)()
	if res.Status != StatusUnhealthy {
		t.Fatalf("dead upstream reported %q", res.Status)
	}
	if !strings.Contains(res.Message, "unreachable") {
		t.Errorf("unexpected message: %q", res.Message)
	}
}

func TestKafkaHealthChecksWithoutClient(t *testing.T) {
	if res := KafkaProducerHealthCheck(nil)(); res.Status != StatusUnhealthy {
		t.Fatalf("nil producer client reported %q", res.Status)
	}

	res := KafkaConsumerHealthCheck(nil)()
	if res.Status != StatusUnhealthy {
		t.Fatalf("nil consumer client reported %q", res.Status)
	}
	if !strings.Contains(res.Message, "consumer") {
		t.Errorf("message should name the client role, got %q", res.Message)
	}
}

func TestCacheHealthCheck(t *testing.T) {
	res := CacheHealthCheck(nil)()
	if res.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy for nil size func, got %q", res.Status)
	}

	res = CacheHealthCheck(func() int { return 3 })()
	if res.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %q", res.Status)
	}
	if !strings.Contains(res.Message, "3 entries") {
		t.Errorf("unexpected message: %q", res.Message)
	}
}

func TestConfigurationHealthCheck(t *testing.T) {
	res := ConfigurationHealthCheck(map[string]string{"ALDIS_URL": "http://aldis:18019"})()
	if res.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %q", res.Status)
	}

	res = ConfigurationHealthCheck(map[string]string{"ALDIS_URL": ""})()
	if res.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy for missing config, got %q", res.Status)
	}
	if !strings.Contains(res.Message, "ALDIS_URL") {
		t.Errorf("message should name the missing key, got %q", res.Message)
	}
}
