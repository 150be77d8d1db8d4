// Package reputation queries the external IP-reputation providers and maps
// alerts to abuse-database categories. Provider failures are contained
// here: callers always get a verdict, never an error.
package reputation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/watchdesk-systems/watchdesk/internal/logging"
	"github.com/watchdesk-systems/watchdesk/internal/models"
)

// Checker is one reputation provider's read path.
type Checker interface {
	Check(ctx context.Context, ip string) (*ProviderResult, error)
	Quota() *Quota
}

// Reporter is the report-submission path of the abuse provider.
type Reporter interface {
	Report(ctx context.Context, ip string, categories []int, comment string) error
}

// Config configures verdict combination.
type Config struct {
	// ConfidenceThreshold is the score at or above which an IP is
	// considered malicious. Default 50.
	ConfidenceThreshold int
	// PreferIOC makes the IOC provider's confidence win when both
	// providers respond; it carries malware-family context the generic
	// score does not.
	PreferIOC bool
}

// Gateway combines the two providers into a single verdict and owns their
// quota states.
type Gateway struct {
	abuse      Checker
	ioc        Checker
	reporter   Reporter
	classifier *Classifier
	cfg        Config
	logger     *logging.Logger
}

// NewGateway builds a gateway over the given providers. The reporter may
// be nil when auto-reporting is not configured.
func NewGateway(abuse Checker, ioc Checker, reporter Reporter, classifier *Classifier, cfg Config, logger *logging.Logger) *Gateway {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 50
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Gateway{
		abuse:      abuse,
		ioc:        ioc,
		reporter:   reporter,
		classifier: classifier,
		cfg:        cfg,
		logger:     logger,
	}
}

// CheckReputation queries both providers in parallel and combines their
// answers. A provider marked quota-exhausted is skipped. Any provider
// failure is recorded in the verdict, never raised: a fully failed check
// yields confidence nil, IsMalicious false, QueryError true.
func (g *Gateway) CheckReputation(ctx context.Context, ip string) models.ReputationVerdict {
	verdict := models.ReputationVerdict{
		SourceIP:      ip,
		RawByProvider: make(map[string]json.RawMessage),
	}

	type outcome struct {
		result *ProviderResult
		err    error
	}

	results := make(map[string]outcome, 2)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for name, p := range map[string]Checker{ProviderAbuse: g.abuse, ProviderIOC: g.ioc} {
		if p == nil || !p.Quota().Available() {
			continue
		}
		wg.Add(1)
		go func(name string, p Checker) {
			defer wg.Done()
			res, err := p.Check(ctx, ip)
			mu.Lock()
			results[name] = outcome{result: res, err: err}
			mu.Unlock()
		}(name, p)
	}
	wg.Wait()

	if len(results) == 0 {
		// Both providers skipped (unconfigured or quota-exhausted): no
		// data was gathered. Mark the verdict so "nothing was asked" is
		// never mistaken for "checked, clean".
		verdict.QueryError = true
		return verdict
	}

	var abuseConf, iocConf *int
	for name, out := range results {
		if out.err != nil {
			g.logger.WarnContext(ctx, "reputation provider failed",
				"provider", name, "srcip", ip, "error", out.err)
			verdict.QueryError = true
			continue
		}
		verdict.Sources = append(verdict.Sources, name)
		verdict.RawByProvider[name] = out.result.Raw
		switch name {
		case ProviderAbuse:
			abuseConf = out.result.Confidence
		case ProviderIOC:
			iocConf = out.result.Confidence
		}
	}

	switch {
	case g.cfg.PreferIOC && iocConf != nil:
		verdict.ConfidenceScore = iocConf
	case abuseConf != nil:
		verdict.ConfidenceScore = abuseConf
	case iocConf != nil:
		verdict.ConfidenceScore = iocConf
	}

	verdict.IsMalicious = verdict.ConfidenceScore != nil &&
		*verdict.ConfidenceScore >= g.cfg.ConfidenceThreshold
	return verdict
}

// CheckQuota reports whether the named provider currently has budget. It
// never consumes a submission call.
func (g *Gateway) CheckQuota(provider string) bool {
	switch provider {
	case ProviderAbuse:
		return g.abuse != nil && g.abuse.Quota().Available()
	case ProviderIOC:
		return g.ioc != nil && g.ioc.Quota().Available()
	default:
		return false
	}
}

// ReserveReportSlot atomically claims one report submission against the
// abuse provider's quota.
func (g *Gateway) ReserveReportSlot() bool {
	if g.reporter == nil || g.abuse == nil {
		return false
	}
	return g.abuse.Quota().Reserve()
}

// Report files an auto-report for the alert with the given categories.
func (g *Gateway) Report(ctx context.Context, alert *models.Alert, categories []int) error {
	if g.reporter == nil {
		return fmt.Errorf("no report provider configured")
	}
	comment := fmt.Sprintf("Rule %d (level %d): %s, detected %s",
		alert.RuleID, alert.RuleLevel, alert.RuleDescription,
		alert.Timestamp.UTC().Format(time.RFC3339))
	return g.reporter.Report(ctx, alert.SourceIP, categories, comment)
}

// ClassifyCategories maps the alert to abuse categories. Total: always
// returns a non-empty set.
func (g *Gateway) ClassifyCategories(alert *models.Alert) []int {
	return g.classifier.Classify(alert)
}
