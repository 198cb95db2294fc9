package metrics

import (
	"expvar"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eduwaly_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eduwaly_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// AccessDecisions counts gate outcomes by gate (permission, feature, limit, tenant) and result.
	AccessDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eduwaly_access_decisions_total",
			Help: "Authorization and entitlement gate decisions",
		},
		[]string{"gate", "result"},
	)

	PlanCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eduwaly_plan_cache_requests_total",
			Help: "Plan catalog cache lookups by backend and result (hit, miss)",
		},
		[]string{"backend", "result"},
	)

	SubscriptionEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eduwaly_subscription_events_total",
			Help: "Billing webhook events by status and outcome (applied, ignored, rejected)",
		},
		[]string{"status", "outcome"},
	)
)

// Decision records the outcome of an access gate.
func Decision(gate string, allowed bool) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	AccessDecisions.WithLabelValues(gate, result).Inc()
}

// NewServer creates the debug HTTP server serving /metrics (Prometheus), /debug/vars (expvar) and /healthz.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/vars", expvar.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &http.Server{
		Addr:    addr,
		Handler: mux,
	}
}
