package models

import (
	"fmt"
	"net"
	"time"
	"unicode/utf8"
)

// MaxFullLogBytes bounds the raw log text kept per alert. Detector payloads
// are untrusted and occasionally enormous; everything past this limit is cut
// before the alert reaches the store.
const MaxFullLogBytes = 4096

// Alert is one security event received from the external detector.
// Alerts are append-only: once ingested they are never mutated, and they
// age out of the store via TTL.
type Alert struct {
	SourceIP        string    `json:"srcip"`
	AgentName       string    `json:"agent_name,omitempty"`
	RuleID          int       `json:"rule_id"`
	RuleDescription string    `json:"rule_description"`
	RuleLevel       int       `json:"rule_level"`
	RuleGroups      []string  `json:"rule_groups,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	FullLog         string    `json:"full_log,omitempty"`
}

// Validate checks the alert is well-formed enough to enter the pipeline.
// The source IP must parse as IPv4 or IPv6; everything keyed in the store
// hangs off it.
func (a *Alert) Validate() error {
	if a.SourceIP == "" {
		return fmt.Errorf("alert missing srcip")
	}
	if net.ParseIP(a.SourceIP) == nil {
		return fmt.Errorf("alert srcip %q is not a valid IP address", a.SourceIP)
	}
	if a.RuleLevel < 0 {
		return fmt.Errorf("alert rule_level %d is negative", a.RuleLevel)
	}
	return nil
}

// Normalize fills in defaults and truncates unbounded fields. Called once
// at the webhook boundary, before the alert is stored.
func (a *Alert) Normalize() {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	if len(a.FullLog) > MaxFullLogBytes {
		// Back the cut up to a rune boundary so a multi-byte character is
		// never split into invalid UTF-8.
		cut := MaxFullLogBytes
		for cut > 0 && !utf8.RuneStart(a.FullLog[cut]) {
			cut--
		}
		a.FullLog = a.FullLog[:cut]
	}
}

// SourceAddr returns the parsed source IP. Callers must have validated the
// alert first; a nil return indicates a programming error upstream.
func (a *Alert) SourceAddr() net.IP {
	return net.ParseIP(a.SourceIP)
}
