package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/watchdesk-systems/watchdesk/internal/httputil"
	"github.com/watchdesk-systems/watchdesk/internal/logging"
	"github.com/watchdesk-systems/watchdesk/internal/metrics"
	"github.com/watchdesk-systems/watchdesk/internal/models"
	"github.com/watchdesk-systems/watchdesk/internal/ratelimit"
	"github.com/watchdesk-systems/watchdesk/internal/service"
	"github.com/watchdesk-systems/watchdesk/internal/summary"
)

// AlertProcessor is the pipeline surface the handler depends on.
type AlertProcessor interface {
	Process(ctx context.Context, alert *models.Alert) service.Outcome
}

// AlertHandler terminates the detector webhook. Requests are authenticated
// with a shared-secret header and validated before anything reaches the
// pipeline; a malformed payload never enters the core.
type AlertHandler struct {
	pipeline AlertProcessor
	compiler *summary.Compiler
	limiter  ratelimit.RateLimiter
	apiKey   string
	window   time.Duration
	logger   *logging.Logger
}

// NewAlertHandler creates the webhook handler. window is the digest span
// used by the on-demand summary route.
func NewAlertHandler(pipeline AlertProcessor, compiler *summary.Compiler, limiter ratelimit.RateLimiter, apiKey string, window time.Duration, logger *logging.Logger) *AlertHandler {
	if limiter == nil {
		limiter = &ratelimit.NoOpRateLimiter{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	if window <= 0 {
		window = time.Hour
	}
	return &AlertHandler{
		pipeline: pipeline,
		compiler: compiler,
		limiter:  limiter,
		apiKey:   apiKey,
		window:   window,
		logger:   logger,
	}
}

// HandleAlert implements POST /alerts and POST /wazuh/alerts.
func (h *AlertHandler) HandleAlert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if !h.authorized(r) {
		metrics.AlertsTotal.WithLabelValues("unauthorized").Inc()
		httputil.WriteError(w, http.StatusUnauthorized, "invalid or missing API key")
		return
	}

	allowed, err := h.limiter.Allow(r.Context(), "alerts")
	if err != nil {
		// A broken limiter must not drop genuine alerts.
		h.logger.WarnContext(r.Context(), "rate limiter unavailable, allowing request", "error", err)
	} else if !allowed {
		httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		metrics.AlertsTotal.WithLabelValues("malformed").Inc()
		httputil.WriteError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	defer r.Body.Close()

	if len(body) == 0 {
		metrics.AlertsTotal.WithLabelValues("empty").Inc()
		httputil.WriteError(w, http.StatusBadRequest, "content missing")
		return
	}

	var alert models.Alert
	if err := json.Unmarshal(body, &alert); err != nil {
		metrics.AlertsTotal.WithLabelValues("malformed").Inc()
		httputil.WriteError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	if err := alert.Validate(); err != nil {
		metrics.AlertsTotal.WithLabelValues("invalid").Inc()
		h.logger.WarnContext(r.Context(), "rejected malformed alert",
			"srcip", alert.SourceIP, "rule_id", alert.RuleID, "error", err)
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	alert.Normalize()

	metrics.AlertsTotal.WithLabelValues("accepted").Inc()
	outcome := h.pipeline.Process(r.Context(), &alert)

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"outcome": outcome,
	})
}

// HandleSummary implements GET /summary: the on-demand digest.
func (h *AlertHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.authorized(r) {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid or missing API key")
		return
	}

	digest, err := h.compiler.Compile(r.Context(), h.window)
	if err != nil {
		metrics.SummaryRuns.WithLabelValues("error").Inc()
		// The digest text already says the data is unavailable; the
		// status makes the failure machine-visible too.
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"summary": digest})
		return
	}
	metrics.SummaryRuns.WithLabelValues("ok").Inc()
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"summary": digest})
}

// Health implements GET /healthz.
func (h *AlertHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready implements GET /readyz.
func (h *AlertHandler) Ready(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *AlertHandler) authorized(r *http.Request) bool {
	return h.apiKey != "" && r.Header.Get("x-api-key") == h.apiKey
}
