// Package health provides HTTP liveness and readiness handlers for the
// speechhook server.
//
//   - /healthz — liveness probe; always returns 200 OK.
//   - /readyz  — readiness probe; returns 200 only when every registered
//     check passes. The server registers a detector self-test that constructs
//     a detector from the configured preset and runs one silent frame
//     through it.
//
// Responses are JSON objects with a top-level "status" field ("ok" or "fail")
// and a "checks" map with the result of each named check.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Check probes one dependency. It must return nil when healthy and respect
// context cancellation.
type Check func(ctx context.Context) error

// Handler serves the health endpoints. Register all checks before mounting;
// the check set is not safe to mutate once requests are being served.
type Handler struct {
	checks map[string]Check
}

// New creates an empty Handler.
func New() *Handler {
	return &Handler{checks: make(map[string]Check)}
}

// Register adds a named readiness check. Registering the same name twice
// replaces the earlier check.
func (h *Handler) Register(name string, check Check) {
	h.checks[name] = check
}

type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz is the liveness probe. A running process that can serve HTTP is
// considered alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz evaluates every registered check with a bounded deadline and
// returns 200 only when all pass.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checks))
	allOK := true

	for name, check := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := check(ctx)
		cancel()

		if err != nil {
			checks[name] = "fail: " + err.Error()
			allOK = false
		} else {
			checks[name] = "ok"
		}
	}

	status := http.StatusOK
	res := result{Status: "ok", Checks: checks}
	if !allOK {
		status = http.StatusServiceUnavailable
		res.Status = "fail"
	}
	writeJSON(w, status, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
