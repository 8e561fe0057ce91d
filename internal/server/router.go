package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skaisay/capycode-frontend-sub002/internal/handlers"
	"github.com/skaisay/capycode-frontend-sub002/internal/httputil"
	"github.com/skaisay/capycode-frontend-sub002/internal/middleware"
	"github.com/skaisay/capycode-frontend-sub002/internal/relay"
)

// NewRouter constructs a ServeMux with the relay routes registered.
func NewRouter(rs *relay.Server, nh *handlers.NotifyHandler) http.Handler {
	mux := http.NewServeMux()

	// Client-facing WebSocket endpoint
	mux.HandleFunc("/ws", rs.HandleWS)

	// Internal producer surface
	mux.HandleFunc("/api/v1/notify", nh.HandleNotify)
	mux.HandleFunc("/api/v1/stats", nh.HandleStats)

	// Health endpoints
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleHealth)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
