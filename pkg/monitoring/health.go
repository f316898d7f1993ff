package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus is the aggregate health document served on /health.
type HealthStatus struct {
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Status    string                 `json:"status"`
	Timestamp int64                  `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult is the outcome of a single dependency check.
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// HealthCheck probes one dependency.
type HealthCheck func() CheckResult

// HealthChecker runs the registered checks and reduces them to one status.
type HealthChecker struct {
	name    string
	version string
	checks  map[string]HealthCheck
}

// NewHealthChecker creates a checker for the named service.
func NewHealthChecker(service, version string) *HealthChecker {
	return &HealthChecker{
		name:    service,
		version: version,
		checks:  make(map[string]HealthCheck),
	}
}

// AddCheck registers a named check. Not safe to call once serving.
func (hc *HealthChecker) AddCheck(name string, check HealthCheck) {
	hc.checks[name] = check
}

// statusRank orders statuses by severity. Unknown strings count as
// unhealthy so a misbehaving check can never report green.
func statusRank(status string) int {
	switch status {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// CheckHealth runs every check; the worst individual result wins.
func (hc *HealthChecker) CheckHealth() HealthStatus {
	status := HealthStatus{
		Status:    StatusHealthy,
		Service:   hc.name,
		Version:   hc.version,
		Timestamp: time.Now().Unix(),
		Checks:    make(map[string]CheckResult),
	}

	worst := 0
	for name, check := range hc.checks {
		result := check()
		status.Checks[name] = result
		if rank := statusRank(result.Status); rank > worst {
			worst = rank
		}
	}

	switch worst {
	case 1:
		status.Status = StatusDegraded
	case 2:
		status.Status = StatusUnhealthy
	}

	return status
}

// Handler serves the health document. Unhealthy renders as 503 so load
// balancers and the fleet dashboard treat it the same way.
func (hc *HealthChecker) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		health := hc.CheckHealth()
		code := http.StatusOK
		if health.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, health)
	}
}

// kafkaPing probes broker connectivity for either client role.
func kafkaPing(role string, client *kgo.Client) CheckResult {
	start := time.Now()

	if client == nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("kafka %s not configured", role),
			Latency: time.Since(start).String(),
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("kafka %s ping failed: %v", role, err),
			Latency: time.Since(start).String(),
		}
	}

	return CheckResult{
		Status:  StatusHealthy,
		Message: fmt.Sprintf("kafka %s reachable", role),
		Latency: time.Since(start).String(),
	}
}

// KafkaProducerHealthCheck pings the brokers through the producer client.
func KafkaProducerHealthCheck(client *kgo.Client) HealthCheck {
	return func() CheckResult { return kafkaPing("producer", client) }
}

// KafkaConsumerHealthCheck pings the brokers through the consumer client.
func KafkaConsumerHealthCheck(client *kgo.Client) HealthCheck {
	return func() CheckResult { return kafkaPing("consumer", client) }
}

// HTTPServiceHealthCheck probes an upstream's health endpoint. Any response
// below 400 counts as up; the upstream's own health document is not parsed.
func HTTPServiceHealthCheck(serviceName, url string) HealthCheck {
	client := &http.Client{Timeout: 5 * time.Second}
	return func() CheckResult {
		start := time.Now()

		resp, err := client.Get(url)
		latency := time.Since(start)
		if err != nil {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: fmt.Sprintf("%s unreachable: %v", serviceName, err),
				Latency: latency.String(),
			}
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: fmt.Sprintf("%s returned %d", serviceName, resp.StatusCode),
				Latency: latency.String(),
			}
		}

		return CheckResult{
			Status:  StatusHealthy,
			Message: fmt.Sprintf("%s responding", serviceName),
			Latency: latency.String(),
		}
	}
}

// ConfigurationHealthCheck fails when any of the given settings is empty.
// Values are captured at startup, so this catches a replica that booted
// before its environment was fully provisioned.
func ConfigurationHealthCheck(configs map[string]string) HealthCheck {
	return func() CheckResult {
		start := time.Now()

		var missing []string
		for key, value := range configs {
			if value == "" {
				missing = append(missing, key)
			}
		}

		if len(missing) > 0 {
			// Sorted so the message is stable across probes.
			sort.Strings(missing)
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: fmt.Sprintf("missing configuration: %v", missing),
				Latency: time.Since(start).String(),
			}
		}

		return CheckResult{
			Status:  StatusHealthy,
			Message: "required configuration present",
			Latency: time.Since(start).String(),
		}
	}
}

// CacheHealthCheck reports on the response cache. An empty cache is still
// healthy; it only means no queries have warmed it yet.
func CacheHealthCheck(size func() int) HealthCheck {
	return func() CheckResult {
		start := time.Now()

		if size == nil {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: "cache is not configured",
				Latency: time.Since(start).String(),
			}
		}

		return CheckResult{
			Status:  StatusHealthy,
			Message: fmt.Sprintf("cache holding %d entries", size()),
			Latency: time.Since(start).String(),
		}
	}
}
