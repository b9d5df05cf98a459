package obs

import (
	"net/http"
	"strconv"
	"strings"
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

	magicLinksIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_magic_links_issued_total",
		Help: "Magic link tokens issued.",
	})

	magicLinksRedeemed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_magic_links_redeemed_total",
			Help: "Magic link redemption attempts by outcome.",
		},
		[]string{"outcome"},
	)

	loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Successful logins by method.",
		},
		[]string{"method"},
	)
)

// Init registers metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		magicLinksIssued, magicLinksRedeemed, loginsTotal,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// CountMagicLinkIssued records one issued magic link token.
func CountMagicLinkIssued() { magicLinksIssued.Inc() }

// CountMagicLinkRedeemed records a redemption attempt. Outcome is one of
// "ok", "replay", "invalid" or "expired".
func CountMagicLinkRedeemed(outcome string) {
	magicLinksRedeemed.WithLabelValues(outcome).Inc()
}

// CountLogin records a successful login by method (magic-link, google,
// microsoft, refresh).
func CountLogin(method string) { loginsTotal.WithLabelValues(method).Inc() }

// CanonicalPath collapses resource identifiers in known routes to keep metric
// label cardinality bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	segments := strings.Split(path, "/")
	for i := 2; i < len(segments); i++ {
		switch segments[i-1] {
		case "teams", "standards", "topics", "fda-organizations", "members":
			if segments[i] != "" && segments[i] != "members" {
				segments[i] = ":id"
			}
		}
	}
	return strings.Join(segments, "/")
}

// Instrument wraps a handler with RPS/latency/in-flight measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code written downstream.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
