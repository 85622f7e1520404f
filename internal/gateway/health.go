// ABOUTME: HTTP liveness and readiness endpoints
// ABOUTME: Readiness reports per-component initialization and returns 503 until all are ready

package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/2389/dbp-gateway/internal/components"
)

// ReadyResponse is the body of GET /health/ready.
type ReadyResponse struct {
	Ready      bool                `json:"ready"`
	Components []components.Status `json:"components"`
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 once every component is initialized, 503 before.
func (g *Gateway) handleReady(w http.ResponseWriter, _ *http.Request) {
	resp := ReadyResponse{
		Ready:      g.container.Ready(),
		Components: g.container.Status(),
	}
	code := http.StatusOK
	if !resp.Ready {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
