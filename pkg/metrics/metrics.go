package metrics

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amoylab/wshub/internal/common/config"
)

// Metrics owns a private registry; create one per process and pass it around
type Metrics struct {
	registry      *prometheus.Registry
	namespace     string
	httpReqCnt    *prometheus.CounterVec
	httpDur       *prometheus.HistogramVec
	httpInfl      *prometheus.GaugeVec
	activityFail  *prometheus.CounterVec
	membershipOps *prometheus.CounterVec
	envTests      *prometheus.CounterVec
	authEvents    *prometheus.CounterVec
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}
	r := prometheus.NewRegistry()
	// Register standard process and Go collectors
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: buckets}, []string{"method", "route", "status"})
	httpInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "http_requests_inflight"}, []string{"route"})
	r.MustRegister(httpReqCnt, httpDur, httpInfl)

	activityFail := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "activity_write_failures_total"}, []string{"type"})
	membershipOps := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "membership_operations_total"}, []string{"operation", "result"})
	envTests := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "environment_tests_total"}, []string{"kind", "status"})
	authEvents := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "auth_events_total"}, []string{"event"})
	r.MustRegister(activityFail, membershipOps, envTests, authEvents)

	return &Metrics{
		registry:      r,
		namespace:     ns,
		httpReqCnt:    httpReqCnt,
		httpDur:       httpDur,
		httpInfl:      httpInfl,
		activityFail:  activityFail,
		membershipOps: membershipOps,
		envTests:      envTests,
		authEvents:    authEvents,
	}
}

// ActivityWriteFailed counts an activity that could not be persisted
func (m *Metrics) ActivityWriteFailed(activityType string) {
	m.activityFail.WithLabelValues(activityType).Inc()
}

// MembershipOp counts a membership mutation by outcome
func (m *Metrics) MembershipOp(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.membershipOps.WithLabelValues(operation, result).Inc()
}

// EnvironmentTested counts a connection test by driver kind and resulting status
func (m *Metrics) EnvironmentTested(kind, status string) {
	m.envTests.WithLabelValues(kind, status).Inc()
}

// AuthEvent counts login, refresh and logout outcomes
func (m *Metrics) AuthEvent(event string) {
	m.authEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = routeFromURL(c.Request.URL.Path)
		} else {
			route = routeFromPattern(route)
		}
		m.httpInfl.WithLabelValues(route).Inc()
		start := time.Now()
		c.Next()
		status := httpStatus(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpInfl.WithLabelValues(route).Dec()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

var idSegment = regexp.MustCompile(`^(\d+|[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})$`)

// routeFromURL is used for unmatched requests; numeric and uuid segments become {id}
func routeFromURL(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if idSegment.MatchString(p) {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

// routeFromPattern rewrites gin parameters such as :slug into {slug}
func routeFromPattern(pattern string) string {
	parts := strings.Split(pattern, "/")
	for i, p := range parts {
		if strings.HasPrefix(p, ":") || strings.HasPrefix(p, "*") {
			parts[i] = "{" + p[1:] + "}"
		}
	}
	return strings.Join(parts, "/")
}

func httpStatus(code int) string { return strconv.Itoa(code) }
