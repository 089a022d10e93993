package server

import (
	"net/http"

	"github.com/R0zhkov/wrf/internal/health"
)

// StateSource reports circuit states by upstream name.
type StateSource interface {
	AllStates() map[string]health.State
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Upstreams map[string]string `json:"upstreams,omitempty"`
	Status    string            `json:"status"`
}

// HealthHandler answers 200 while the process serves requests. Open
// circuits are reported but do not fail the check, since stale counters
// are still served.
func HealthHandler(states StateSource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Status: "ok"}
		if states != nil {
			all := states.AllStates()
			if len(all) > 0 {
				resp.Upstreams = make(map[string]string, len(all))
				for name, state := range all {
					resp.Upstreams[name] = state.String()
					if state != health.StateClosed {
						resp.Status = "degraded"
					}
				}
			}
		}
		writeJSON(w, http.StatusOK, resp)
	})
}
