package api

import (
	"context"
	"net/http"
)

// ReadinessCheck reports whether a dependency the API needs is reachable.
type ReadinessCheck func(ctx context.Context) error

// HealthzHandler handles GET /healthz.
// Always returns 200 OK with {"status":"ok"}.
func HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler handles GET /readyz.
// Returns 200 when check succeeds (or is nil), 503 with a Retry-After header
// otherwise.
func ReadyzHandler(check ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				w.Header().Set("Retry-After", "30")
				respondError(w, http.StatusServiceUnavailable, "queue unavailable")
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
