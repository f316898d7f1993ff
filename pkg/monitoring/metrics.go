package monitoring

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector owns a service's Prometheus metrics. Every metric name
// is prefixed with the service name so fleet dashboards can group by it.
type MetricsCollector struct {
	serviceName string

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	activeConnections   prometheus.Gauge
	serviceInfo         *prometheus.GaugeVec

	customMetrics map[string]prometheus.Collector
}

// NewMetricsCollector builds the collector and registers the standard HTTP
// metric set on the default registry. Hyphens in the service name become
// underscores since Prometheus rejects them in metric names.
func NewMetricsCollector(serviceName, version, commit string) *MetricsCollector {
	mc := &MetricsCollector{
		serviceName:   strings.ReplaceAll(serviceName, "-", "_"),
		customMetrics: make(map[string]prometheus.Collector),
	}

	mc.httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: mc.prefixed("http_requests_total"),
		Help: "Requests served, by method, route and status",
	}, []string{"method", "endpoint", "status"})

	mc.httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    mc.prefixed("http_request_duration_seconds"),
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	mc.activeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: mc.prefixed("active_connections"),
		Help: "Requests currently in flight",
	})

	mc.serviceInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: mc.prefixed("service_info"),
		Help: "Build information carried as labels",
	}, []string{"version", "commit"})
	mc.serviceInfo.WithLabelValues(version, commit).Set(1)

	prometheus.MustRegister(mc.httpRequestsTotal, mc.httpRequestDuration, mc.activeConnections, mc.serviceInfo)

	return mc
}

func (mc *MetricsCollector) prefixed(name string) string {
	return mc.serviceName + "_" + name
}

// RegisterCustomMetric registers a collector on the default registry and
// remembers it under name. Panics on duplicate registration, same as
// prometheus.MustRegister.
func (mc *MetricsCollector) RegisterCustomMetric(name string, metric prometheus.Collector) {
	mc.customMetrics[name] = metric
	prometheus.MustRegister(metric)
}

// MetricsMiddleware records request count and latency per route. The route
// template is used as the endpoint label; unmatched paths collapse into
// "unknown" so scanners cannot mint unbounded label values.
func (mc *MetricsCollector) MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		mc.activeConnections.Inc()
		defer mc.activeConnections.Dec()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		mc.httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
		mc.httpRequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler adapts the promhttp scrape handler to gin.
func (mc *MetricsCollector) Handler() gin.HandlerFunc {
	handler := promhttp.Handler()
	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

// NewCounter registers a service-prefixed counter vector.
func (mc *MetricsCollector) NewCounter(name, help string, labels []string) *prometheus.CounterVec {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: mc.prefixed(name),
		Help: help,
	}, labels)
	mc.RegisterCustomMetric(name, counter)
	return counter
}

// NewGauge registers a service-prefixed gauge vector.
func (mc *MetricsCollector) NewGauge(name, help string, labels []string) *prometheus.GaugeVec {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: mc.prefixed(name),
		Help: help,
	}, labels)
	mc.RegisterCustomMetric(name, gauge)
	return gauge
}

// NewHistogram registers a service-prefixed histogram vector. Nil buckets
// select the Prometheus defaults.
func (mc *MetricsCollector) NewHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	histogram := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    mc.prefixed(name),
		Help:    help,
		Buckets: buckets,
	}, labels)
	mc.RegisterCustomMetric(name, histogram)
	return histogram
}

// CreateCacheMetrics creates the response cache metric set: a lookup counter
// labelled by outcome (hit, miss, stale, error), an invalidation counter
// labelled by tag and origin, and a gauge tracking resident entries when an
// entries func is supplied.
func (mc *MetricsCollector) CreateCacheMetrics(entries func() int) (
	*prometheus.CounterVec, // cache_lookups_total
	*prometheus.CounterVec, // cache_invalidations_total
) {
	lookups := mc.NewCounter("cache_lookups_total", "Total response cache lookups", []string{"outcome"})
	invalidations := mc.NewCounter("cache_invalidations_total", "Total cache tag invalidations", []string{"tag", "origin"})

	if entries != nil {
		mc.RegisterCustomMetric("cache_entries", prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: mc.prefixed("cache_entries"),
			Help: "Entries resident in the response cache",
		}, func() float64 { return float64(entries()) }))
	}

	return lookups, invalidations
}
