package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger is a dependency readiness depends on.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler handles health check requests.
type HealthHandler struct {
	checks map[string]Pinger
}

// NewHealthHandler creates a new HealthHandler. Nil checks are skipped so
// the in-memory mode reports ready without postgres or redis.
func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	live := make(map[string]Pinger, len(checks))
	for name, c := range checks {
		if c != nil {
			live[name] = c
		}
	}
	return &HealthHandler{checks: live}
}

// Liveness returns 200 if the service is alive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness returns 200 if every dependency answers.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := map[string]string{"status": "ready"}
	for name, c := range h.checks {
		if err := c.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, name+" unhealthy", err.Error())
			return
		}
		resp[name] = "ok"
	}

	writeJSON(w, http.StatusOK, resp)
}
