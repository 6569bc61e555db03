package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/msu-life/auth-service/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OTP flow

	CodesRequestedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authsvc",
		Name:      "codes_requested_total",
		Help:      "Login code issuance attempts, by outcome.",
	}, []string{"outcome"})

	CodesVerifiedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authsvc",
		Name:      "codes_verified_total",
		Help:      "Login code verification attempts, by outcome.",
	}, []string{"outcome"})

	SessionsIssuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "authsvc",
		Name:      "sessions_issued_total",
		Help:      "Signed session tokens handed out.",
	})

	// Janitor

	CodesPurgedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "authsvc",
		Name:      "codes_purged_total",
		Help:      "Stale one-time code rows deleted by the janitor.",
	})

	PurgeCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "authsvc",
		Name:      "purge_cycle_duration_seconds",
		Help:      "Time taken for one janitor purge cycle.",
		Buckets:   prometheus.DefBuckets,
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "authsvc",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authsvc",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		CodesRequestedTotal,
		CodesVerifiedTotal,
		SessionsIssuedTotal,
		CodesPurgedTotal,
		PurgeCycleDuration,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// NewServer serves /metrics plus the liveness/readiness probes on a
// separate port from the API.
func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Liveness(r.Context()))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Readiness(r.Context()))
	})
	return &http.Server{Addr: addr, Handler: mux}
}

func writeHealth(w http.ResponseWriter, result health.HealthResult) {
	w.Header().Set("Content-Type", "application/json")
	if result.Status != "up" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(result)
}
