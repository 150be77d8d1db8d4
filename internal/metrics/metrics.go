package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Webhook ingestion metrics
	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchdesk_alerts_total",
			Help: "Total number of alerts received on the webhook",
		},
		[]string{"status"},
	)

	AlertsNovel = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchdesk_alerts_novel_total",
			Help: "Alerts the correlation engine marked novel",
		},
	)

	// Escalation metrics
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchdesk_decisions_total",
			Help: "Escalation decisions by terminal action",
		},
		[]string{"action"},
	)

	// Reputation provider metrics
	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchdesk_provider_calls_total",
			Help: "Reputation provider calls by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	QuotaExhaustions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchdesk_provider_quota_exhaustions_total",
			Help: "Times a provider signalled quota exhaustion",
		},
		[]string{"provider"},
	)

	ReportsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchdesk_reports_submitted_total",
			Help: "Auto-reports submitted to the abuse database by outcome",
		},
		[]string{"outcome"},
	)

	// Alert store metrics
	StoreErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchdesk_store_errors_total",
			Help: "Key-value store failures (pipeline degrades fail-open)",
		},
	)

	// Notification metrics
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchdesk_notifications_total",
			Help: "Outbound notifications by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	// Summary metrics
	SummaryRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchdesk_summary_runs_total",
			Help: "Periodic summary compilations by outcome",
		},
		[]string{"outcome"},
	)

	// Rate limiting
	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchdesk_rate_limit_hits_total",
			Help: "Webhook requests rejected by the inbound rate limiter",
		},
	)
)
