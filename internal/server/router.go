package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/watchdesk-systems/watchdesk/internal/handlers"
	"github.com/watchdesk-systems/watchdesk/internal/middleware"
)

// NewRouter constructs a ServeMux with the webhook API routes registered.
func NewRouter(h *handlers.AlertHandler) http.Handler {
	mux := http.NewServeMux()

	// Detector webhook endpoints
	mux.HandleFunc("/alerts", h.HandleAlert)
	mux.HandleFunc("/wazuh/alerts", h.HandleAlert)

	// Operator endpoints
	mux.HandleFunc("/summary", h.HandleSummary)

	// Health endpoints
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", h.Ready)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
