package models

import "encoding/json"

// ReputationVerdict is the combined result of querying the reputation
// providers for one IP. It is computed per escalation decision and never
// persisted; the providers remain the source of truth.
type ReputationVerdict struct {
	SourceIP        string                     `json:"srcip"`
	ConfidenceScore *int                       `json:"confidence_score,omitempty"`
	Sources         []string                   `json:"sources,omitempty"`
	IsMalicious     bool                       `json:"is_malicious"`
	QueryError      bool                       `json:"query_error"`
	RawByProvider   map[string]json.RawMessage `json:"-"`
}

// Action is the terminal outcome of the escalation state machine.
type Action string

const (
	ActionNotify     Action = "notify"
	ActionAutoReport Action = "auto_report"
	ActionSuppress   Action = "suppress"
)

// EscalationDecision is the policy output for one alert. Notify and
// auto-report are independent best-effort side effects: a decision may
// carry both.
type EscalationDecision struct {
	Notify      bool     `json:"notify"`
	AutoReport  bool     `json:"auto_report"`
	Categories  []int    `json:"categories,omitempty"`
	ReasonCodes []string `json:"reason_codes,omitempty"`
}

// Action reduces the decision to its dominant label. Auto-report subsumes
// notify for labeling purposes; a decision with neither side effect is a
// suppression.
func (d EscalationDecision) Action() Action {
	switch {
	case d.AutoReport:
		return ActionAutoReport
	case d.Notify:
		return ActionNotify
	default:
		return ActionSuppress
	}
}
