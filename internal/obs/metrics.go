package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	invitationsIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "share_invitations_issued_total",
		Help: "Share invitations issued.",
	})

	invitationsRedeemed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "share_invitations_redeemed_total",
		Help: "Share invitations redeemed into grants.",
	})

	retentionPurges = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retention_purges_total",
		Help: "Deleted-account purges executed.",
	})
)

// Init registers metrics in the default registry. Call once at startup.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		invitationsIssued,
		invitationsRedeemed,
		retentionPurges,
	)
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// CountInvitationIssued increments the issued-invitations counter.
func CountInvitationIssued() { invitationsIssued.Inc() }

// CountInvitationRedeemed increments the redeemed-invitations counter.
func CountInvitationRedeemed() { invitationsRedeemed.Inc() }

// CountRetentionPurge increments the purge counter.
func CountRetentionPurge() { retentionPurges.Inc() }

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpInFlight.Dec()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
