// Package correlation decides whether each incoming alert is novel for its
// source IP and maintains the per-IP window aggregates used by the
// escalation policy and the summary compiler.
package correlation

import (
	"context"
	"errors"

	"github.com/watchdesk-systems/watchdesk/internal/models"
	"github.com/watchdesk-systems/watchdesk/internal/store"
)

// Result carries the window aggregates for one ingested alert.
type Result struct {
	IsNovel        bool
	WindowCount    int
	WindowMaxLevel int
	// Degraded is set when the store was unreachable and the result is a
	// fail-open approximation built from the alert alone.
	Degraded bool
}

// Engine performs dedup/correlation against the alert store.
type Engine struct {
	store store.AlertStore
}

// NewEngine creates a correlation engine over the given store.
func NewEngine(s store.AlertStore) *Engine {
	return &Engine{store: s}
}

// Ingest appends the alert to its IP's window unconditionally (the history
// records every alert, novel or not) and computes the window aggregates.
//
// An alert is novel when it is the first in the window for its IP, or when
// its level strictly exceeds every previously seen level for that IP. A
// retransmission, detected as the same (ruleId, timestamp) tuple as the
// immediately preceding entry, is appended but never novel.
//
// When the store is unreachable the alert cannot be remembered; Ingest
// returns a degraded fail-open result treating the alert as novel so a
// genuine attack is not silently dropped, along with the store error for
// the caller to log.
func (e *Engine) Ingest(ctx context.Context, alert *models.Alert) (Result, error) {
	if err := e.store.Append(ctx, alert); err != nil {
		if errors.Is(err, store.ErrStoreUnavailable) {
			return Result{
				IsNovel:        true,
				WindowCount:    1,
				WindowMaxLevel: alert.RuleLevel,
				Degraded:       true,
			}, err
		}
		return Result{}, err
	}

	window, err := e.store.ReadWindow(ctx, alert.SourceIP)
	if err != nil {
		return Result{
			IsNovel:        true,
			WindowCount:    1,
			WindowMaxLevel: alert.RuleLevel,
			Degraded:       true,
		}, err
	}

	res := Result{WindowCount: len(window)}
	for _, a := range window {
		if a.RuleLevel > res.WindowMaxLevel {
			res.WindowMaxLevel = a.RuleLevel
		}
	}

	// The window includes the alert just appended; novelty is judged
	// against what came before it.
	prior := window
	if len(prior) > 0 {
		prior = prior[:len(prior)-1]
	}

	if len(prior) == 0 {
		res.IsNovel = true
		return res, nil
	}

	last := prior[len(prior)-1]
	if last.RuleID == alert.RuleID && last.Timestamp.Equal(alert.Timestamp) {
		// Byte-identical retransmission of the previous entry.
		return res, nil
	}

	priorMax := 0
	for _, a := range prior {
		if a.RuleLevel > priorMax {
			priorMax = a.RuleLevel
		}
	}
	res.IsNovel = alert.RuleLevel > priorMax
	return res, nil
}
