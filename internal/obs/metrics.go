package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Session lifecycle and claim workflow metrics.
var (
	loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_logins_total",
			Help: "Login attempts by outcome.",
		},
		[]string{"outcome"},
	)

	refreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_refresh_total",
			Help: "Token refresh attempts by outcome.",
		},
		[]string{"outcome"},
	)

	refreshAttempts = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "session_refresh_attempts",
		Help: "Consecutive refresh attempts since the last success.",
	})

	claimsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "claims_active",
		Help: "Customers currently claimed by this session.",
	})

	claimOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claim_operations_total",
			Help: "Claim workflow operations by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Backend API request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "status"},
	)
)

// Init registers the metric set in the default registry. Call once from main.
func Init() {
	prometheus.MustRegister(
		loginsTotal,
		refreshTotal,
		refreshAttempts,
		claimsActive,
		claimOpsTotal,
		apiRequestDuration,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveLogin records a login attempt outcome ("ok", "denied", "error").
func ObserveLogin(outcome string) {
	loginsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRefresh records a refresh outcome ("ok", "expired", "transient",
// "exhausted", "invalid").
func ObserveRefresh(outcome string) {
	refreshTotal.WithLabelValues(outcome).Inc()
}

// SetRefreshAttempts mirrors the scheduler's attempt counter.
func SetRefreshAttempts(n int) {
	refreshAttempts.Set(float64(n))
}

// SetClaimsActive mirrors the size of the local claimed set.
func SetClaimsActive(n int) {
	claimsActive.Set(float64(n))
}

// ObserveClaimOp records a claim workflow operation.
func ObserveClaimOp(action, outcome string) {
	claimOpsTotal.WithLabelValues(action, outcome).Inc()
}

// ObserveAPIRequest records one backend round trip.
func ObserveAPIRequest(endpoint, status string, seconds float64) {
	apiRequestDuration.WithLabelValues(endpoint, status).Observe(seconds)
}
