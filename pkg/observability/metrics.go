package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Permission metrics
	PermissionChecksTotal   *prometheus.CounterVec
	PermissionCheckDuration *prometheus.HistogramVec
	GrantsIssuedTotal       *prometheus.CounterVec
	GrantsRevokedTotal      prometheus.Counter

	// Grant cache metrics
	GrantCacheHitsTotal   prometheus.Counter
	GrantCacheMissesTotal prometheus.Counter

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	// Business metrics
	OrganizationsTotal prometheus.Gauge
	MembershipsTotal   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crewhub_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crewhub_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		PermissionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crewhub_permission_checks_total",
				Help: "Total number of permission checks by check name and outcome",
			},
			[]string{"check", "outcome"},
		),
		PermissionCheckDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crewhub_permission_check_duration_seconds",
				Help:    "Permission check duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"check"},
		),
		GrantsIssuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crewhub_grants_issued_total",
				Help: "Total number of permission grants issued",
			},
			[]string{"resource_type", "permission_type"},
		),
		GrantsRevokedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crewhub_grants_revoked_total",
				Help: "Total number of permission grants revoked",
			},
		),
		GrantCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crewhub_grant_cache_hits_total",
				Help: "Total number of grant cache hits",
			},
		),
		GrantCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crewhub_grant_cache_misses_total",
				Help: "Total number of grant cache misses",
			},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crewhub_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crewhub_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		OrganizationsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crewhub_organizations_total",
				Help: "Total number of organizations",
			},
		),
		MembershipsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crewhub_memberships_total",
				Help: "Total number of organization memberships",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PermissionChecksTotal,
		m.PermissionCheckDuration,
		m.GrantsIssuedTotal,
		m.GrantsRevokedTotal,
		m.GrantCacheHitsTotal,
		m.GrantCacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.OrganizationsTotal,
		m.MembershipsTotal,
	)

	return m
}

// ObservePermissionCheck records one permission check decision
func (m *Metrics) ObservePermissionCheck(check string, allowed bool, duration time.Duration) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	m.PermissionChecksTotal.WithLabelValues(check, outcome).Inc()
	m.PermissionCheckDuration.WithLabelValues(check).Observe(duration.Seconds())
}

// Handler returns the Prometheus metrics HTTP handler for a registry
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// HTTPMiddleware instruments HTTP handlers with request metrics
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration.Seconds())
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
