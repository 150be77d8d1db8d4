// Package policy implements the per-alert escalation state machine:
// received -> classified -> reputation-checked -> decided. Severity alone
// is enough to notify a human; auto-reporting additionally needs a
// malicious verdict, a quota slot, and a public source address.
package policy

import (
	"context"
	"net"

	"github.com/watchdesk-systems/watchdesk/internal/correlation"
	"github.com/watchdesk-systems/watchdesk/internal/logging"
	"github.com/watchdesk-systems/watchdesk/internal/models"
)

// ReputationGateway is the slice of the reputation gateway the policy
// consumes.
type ReputationGateway interface {
	CheckReputation(ctx context.Context, ip string) models.ReputationVerdict
	ClassifyCategories(alert *models.Alert) []int
	ReserveReportSlot() bool
}

// Engine evaluates alerts against the notify threshold and the reputation
// gateway.
type Engine struct {
	gateway         ReputationGateway
	notifyThreshold int
	logger          *logging.Logger
}

// NewEngine creates an escalation policy engine. The notify threshold
// defaults to rule level 5.
func NewEngine(gateway ReputationGateway, notifyThreshold int, logger *logging.Logger) *Engine {
	if notifyThreshold <= 0 {
		notifyThreshold = 5
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		gateway:         gateway,
		notifyThreshold: notifyThreshold,
		logger:          logger,
	}
}

// ShouldNotify reports whether severity alone justifies alerting a human
// for this window state. Exposed separately from Evaluate so callers can
// dispatch the notification before the reputation check runs; a slow
// provider must never delay the notify side effect.
func (e *Engine) ShouldNotify(corr correlation.Result) bool {
	return corr.IsNovel && corr.WindowMaxLevel >= e.notifyThreshold
}

// Evaluate runs one alert through the state machine and returns the
// decision. The severity check is evaluated before any reputation call so
// a slow provider can never delay the notify side effect. Non-novel alerts
// skip the reputation check entirely to bound provider call volume.
func (e *Engine) Evaluate(ctx context.Context, alert *models.Alert, corr correlation.Result) models.EscalationDecision {
	decision := models.EscalationDecision{
		// Classification is cheap and always performed, even for
		// non-novel alerts: categories are needed later if the IP
		// crosses a threshold.
		Categories: e.gateway.ClassifyCategories(alert),
	}

	// Non-novel alerts decide straight to suppression: the window was
	// already surfaced when it first crossed a threshold, and skipping
	// the reputation check bounds provider call volume.
	if !corr.IsNovel {
		decision.ReasonCodes = append(decision.ReasonCodes, "not_novel")
		return decision
	}

	if e.ShouldNotify(corr) {
		decision.Notify = true
		decision.ReasonCodes = append(decision.ReasonCodes, "severity_threshold")
	}

	verdict := e.gateway.CheckReputation(ctx, alert.SourceIP)
	if verdict.QueryError {
		decision.ReasonCodes = append(decision.ReasonCodes, "reputation_query_error")
	}

	if !verdict.IsMalicious {
		return decision
	}
	decision.ReasonCodes = append(decision.ReasonCodes, "reputation_malicious")

	// Private and reserved addresses are never reported to a public
	// reputation database. Hard invariant, not a policy knob.
	if isReservedAddr(alert.SourceAddr()) {
		decision.ReasonCodes = append(decision.ReasonCodes, "private_ip_not_reported")
		return decision
	}

	if !e.gateway.ReserveReportSlot() {
		decision.ReasonCodes = append(decision.ReasonCodes, "report_quota_unavailable")
		e.logger.InfoContext(ctx, "auto-report skipped, no quota",
			"srcip", alert.SourceIP, "rule_id", alert.RuleID)
		return decision
	}

	decision.AutoReport = true
	return decision
}

// isReservedAddr reports whether the IP is loopback, RFC1918, link-local,
// or otherwise not publicly routable.
func isReservedAddr(ip net.IP) bool {
	if ip == nil {
		return true
	}
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}
