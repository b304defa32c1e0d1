package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Métricas HTTP comunes
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
			Buckets: prometheus.DefBuckets, // [0.005..10]
		},
		[]string{"method", "path", "status"},
	)
)

// Métricas del dominio electoral
var (
	usersRegistered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sufragio_users_registered_total",
		Help: "Accounts that entered the admission queue.",
	})

	electionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sufragio_elections_created_total",
		Help: "Elections added to the registry.",
	})

	admissionsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sufragio_admissions_processed_total",
			Help: "Admission queue decisions, split by outcome.",
		},
		[]string{"outcome"},
	)

	votesCast = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sufragio_votes_cast_total",
		Help: "Ballots accepted by the tally.",
	})
)

// Registro de métricas en el registro por defecto.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		usersRegistered, electionsCreated, admissionsProcessed, votesCast,
	)
}

// Handler de Prometheus.
func Handler() http.Handler {
	return promhttp.Handler()
}

// CountUserRegistered records one new admission-queue entry.
func CountUserRegistered() { usersRegistered.Inc() }

// CountElectionCreated records one new election.
func CountElectionCreated() { electionsCreated.Inc() }

// CountAdmission records a queue decision; outcome is "accepted" or "rejected".
func CountAdmission(accepted bool) {
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
	}
	admissionsProcessed.WithLabelValues(outcome).Inc()
}

// CountVoteCast records one accepted ballot.
func CountVoteCast() { votesCast.Inc() }

// CanonicalPath collapses per-election path segments so metric labels
// stay low-cardinality.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(path, "/")
	// /v1/elections/<id>[/sub[/num]]
	if len(parts) >= 4 && parts[1] == "v1" && parts[2] == "elections" && parts[3] != "" {
		parts[3] = ":id"
		if len(parts) == 6 && parts[4] == "candidates" {
			parts[5] = ":number"
		}
		if len(parts) > 6 {
			return path
		}
		return strings.Join(parts, "/")
	}
	// /v1/users/<address>
	if len(parts) == 4 && parts[1] == "v1" && parts[2] == "users" && parts[3] != "" {
		parts[3] = ":address"
		return strings.Join(parts, "/")
	}
	return path
}

// Envoltura para medir RPS/latencia/en vuelo.
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

// statusWriter conserva el código de la respuesta.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
