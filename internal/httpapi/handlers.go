package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"sufragio.org/api/spec"
	"sufragio.org/internal/ledger"
	"sufragio.org/internal/obs"
	"sufragio.org/internal/stream"
)

// ReadyProbe: comprobación simple de readiness (p. ej. ping a la BD).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API: capa HTTP sobre el padrón electoral.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string
	ledger     ledger.Service
	stream     *stream.Stream
	journal    Journal

	rateBurst  int
	ratePerSec int
}

func New(rp ReadyProbe, version string, svc ledger.Service, st *stream.Stream, jr Journal) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		ledger:     svc,
		stream:     st,
		journal:    jr,
		rateBurst:  100,
		ratePerSec: 50,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// OpenAPI YAML
	a.mux.HandleFunc("/openapi.yaml", a.OpenAPISpec)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// tokens
	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)

	// admission queue and user directory
	a.mux.HandleFunc("/v1/registration", a.handleRegistration)
	a.mux.HandleFunc("/v1/registration/enable", a.handleRegistrationEnable)
	a.mux.HandleFunc("/v1/registration/disable", a.handleRegistrationDisable)
	a.mux.HandleFunc("/v1/registration/next", a.handleRegistrationQueue)
	a.mux.HandleFunc("/v1/users/", a.handleUserResource)

	// administration
	a.mux.HandleFunc("/v1/admin/transfer", a.handleAdminTransfer)
	a.mux.HandleFunc("/v1/admin/report-generator", a.handleAssignGenerator)

	// election registry and per-election resources
	a.mux.HandleFunc("/v1/elections", a.handleElections)
	a.mux.HandleFunc("/v1/elections/", a.handleElectionResource)

	// live ballots
	a.mux.HandleFunc("/v1/stream", a.Stream)

	// raíz: 404
	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler devuelve el http.Handler con toda la cadena de middleware.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "sufragio-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "sufragio-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func (a *API) OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	_, _ = w.Write(spec.OpenAPI)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
