// Package health provides the bot's HTTP surface: a liveness endpoint for
// platform probes, a readiness endpoint backed by named dependency checks,
// and the Prometheus metrics scrape endpoint.
//
// Routes:
//
//   - GET /health: liveness; always 200 with service identity and uptime.
//   - GET /readyz: readiness; 200 only when all registered [Checker]
//     functions pass.
//   - GET /metrics: Prometheus scrape endpoint.
//
// Any other path returns 404.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// checkTimeout is the maximum time a single readiness check may take before
// the context is cancelled.
const checkTimeout = 5 * time.Second

// Checker is a named readiness check. Check returns nil when the dependency
// is healthy and a non-nil error describing the failure otherwise.
type Checker struct {
	// Name is a short label for this check (e.g. "telegram", "auth_store").
	// It appears as a key in the JSON response.
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// healthBody is the JSON response for the liveness endpoint.
type healthBody struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version,omitempty"`
	Uptime  string `json:"uptime"`
}

// readyBody is the JSON response for the readiness endpoint.
type readyBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the health, readiness, and metrics routes. It is safe for
// concurrent use; the checker list is fixed at construction time.
type Handler struct {
	service  string
	version  string
	started  time.Time
	checkers []Checker
}

// New creates a [Handler] identifying itself as the given service. The
// checkers are evaluated sequentially on each readiness request, in the
// order provided.
func New(service, version string, checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{
		service:  service,
		version:  version,
		started:  time.Now(),
		checkers: c,
	}
}

// Health is the liveness probe. A running process that can serve HTTP is
// considered healthy.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthBody{
		Status:  "healthy",
		Service: h.service,
		Version: h.version,
		Uptime:  time.Since(h.started).Round(time.Second).String(),
	})
}

// Readyz is the readiness probe. It returns 200 only when every registered
// [Checker] passes; each check runs under a [checkTimeout] deadline derived
// from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers))
	allOK := true

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			allOK = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	res := readyBody{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Router builds the HTTP router with all routes mounted. Middlewares are
// applied to every route, metrics scrapes included.
func (h *Handler) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	for _, mw := range middlewares {
		r.Use(mw)
	}
	r.Get("/health", h.Health)
	r.Get("/readyz", h.Readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
