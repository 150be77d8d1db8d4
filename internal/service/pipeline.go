// Package service orchestrates one alert's path through the core:
// ingest -> classify -> reputation-check -> decide -> side effects.
// Work for the same source IP is serialized; alerts for unrelated IPs run
// independently, and a failure in one alert never affects another.
package service

import (
	"context"
	"fmt"

	"github.com/watchdesk-systems/watchdesk/internal/correlation"
	"github.com/watchdesk-systems/watchdesk/internal/logging"
	"github.com/watchdesk-systems/watchdesk/internal/metrics"
	"github.com/watchdesk-systems/watchdesk/internal/models"
	"github.com/watchdesk-systems/watchdesk/internal/notify"
	"github.com/watchdesk-systems/watchdesk/internal/policy"
)

// DefaultSubject is the routing subject for alert notifications.
const DefaultSubject = "security-alerts"

// ReportGateway is the auto-report path the pipeline invokes after a
// decision.
type ReportGateway interface {
	Report(ctx context.Context, alert *models.Alert, categories []int) error
}

// Outcome summarizes what happened to one ingested alert.
type Outcome struct {
	Novel          bool   `json:"novel"`
	WindowCount    int    `json:"window_count"`
	WindowMaxLevel int    `json:"window_max_level"`
	Action         string `json:"action"`
}

// Pipeline wires the correlation engine, escalation policy, reputation
// gateway and notification channel together.
type Pipeline struct {
	engine  *correlation.Engine
	policy  *policy.Engine
	gateway ReportGateway
	channel notify.Channel
	logger  *logging.Logger
	ipLocks *keyedMutex
	subject string
}

// NewPipeline builds the alert-processing pipeline.
func NewPipeline(engine *correlation.Engine, pol *policy.Engine, gateway ReportGateway, channel notify.Channel, logger *logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.Default()
	}
	return &Pipeline{
		engine:  engine,
		policy:  pol,
		gateway: gateway,
		channel: channel,
		logger:  logger,
		ipLocks: newKeyedMutex(),
		subject: DefaultSubject,
	}
}

// Process runs one validated alert through the pipeline. It always returns
// an outcome: store and provider failures degrade behavior (logged, fail
// open) rather than failing the ingestion.
func (p *Pipeline) Process(ctx context.Context, alert *models.Alert) Outcome {
	// Per-IP serialization: two alerts for the same IP must not both
	// observe the pre-append window, and their decisions must be ordered.
	p.ipLocks.Lock(alert.SourceIP)
	defer p.ipLocks.Unlock(alert.SourceIP)

	corr, err := p.engine.Ingest(ctx, alert)
	if err != nil {
		metrics.StoreErrors.Inc()
		p.logger.ErrorContext(ctx, "alert store degraded, continuing fail-open",
			"srcip", alert.SourceIP, "rule_id", alert.RuleID,
			"timestamp", alert.Timestamp, "error", err)
	}
	if corr.IsNovel {
		metrics.AlertsNovel.Inc()
	}

	// Severity alone justifies alerting a human, and the message must go
	// out before the reputation check: a provider stuck at its timeout
	// would otherwise hold the notification for the full retry budget.
	if p.policy.ShouldNotify(corr) {
		p.notify(ctx, alert, corr)
	}

	decision := p.policy.Evaluate(ctx, alert, corr)
	metrics.DecisionsTotal.WithLabelValues(string(decision.Action())).Inc()

	// Auto-report is an independent best-effort side effect; its failure
	// never affects the notification already sent.
	if decision.AutoReport {
		p.report(ctx, alert, decision.Categories)
	}

	p.logger.InfoContext(ctx, "alert processed",
		"srcip", alert.SourceIP, "rule_id", alert.RuleID,
		"rule_level", alert.RuleLevel, "novel", corr.IsNovel,
		"window_count", corr.WindowCount, "action", decision.Action())

	return Outcome{
		Novel:          corr.IsNovel,
		WindowCount:    corr.WindowCount,
		WindowMaxLevel: corr.WindowMaxLevel,
		Action:         string(decision.Action()),
	}
}

func (p *Pipeline) notify(ctx context.Context, alert *models.Alert, corr correlation.Result) {
	text := formatAlert(alert, corr)
	if err := p.channel.Send(ctx, p.subject, text); err != nil {
		metrics.NotificationsSent.WithLabelValues(p.channel.Type(), "error").Inc()
		p.logger.ErrorContext(ctx, "notification delivery failed",
			"srcip", alert.SourceIP, "rule_id", alert.RuleID, "error", err)
		return
	}
	metrics.NotificationsSent.WithLabelValues(p.channel.Type(), "ok").Inc()
}

func (p *Pipeline) report(ctx context.Context, alert *models.Alert, categories []int) {
	if err := p.gateway.Report(ctx, alert, categories); err != nil {
		metrics.ReportsSubmitted.WithLabelValues("error").Inc()
		p.logger.ErrorContext(ctx, "auto-report submission failed",
			"srcip", alert.SourceIP, "rule_id", alert.RuleID, "error", err)
		return
	}
	metrics.ReportsSubmitted.WithLabelValues("ok").Inc()
	p.logger.InfoContext(ctx, "auto-report submitted",
		"srcip", alert.SourceIP, "categories", categories)
}

func formatAlert(alert *models.Alert, corr correlation.Result) string {
	text := fmt.Sprintf(
		"Security alert: %s\nSource IP: %s\nRule: %d (level %d)\nAlerts from this IP in the last hour: %d",
		alert.RuleDescription, alert.SourceIP, alert.RuleID, alert.RuleLevel, corr.WindowCount)
	if alert.AgentName != "" {
		text += "\nAgent: " + alert.AgentName
	}
	return text
}
