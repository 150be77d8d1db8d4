// Package summary renders the periodic/on-demand digest of tracked
// offenders from the alert store. It makes no external calls, so it can
// fail only if the store itself is unreachable.
package summary

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/watchdesk-systems/watchdesk/internal/store"
)

// TopN is how many offending IPs the digest ranks.
const TopN = 5

// UnavailableDigest is returned when the store cannot be read. It is
// deliberately distinct from the zero-alert digest so an operator never
// mistakes an outage for a quiet hour.
const UnavailableDigest = "Alert summary unavailable: alert store could not be reached."

// ipStat aggregates one IP's window for ranking.
type ipStat struct {
	IP       string
	Count    int
	MaxLevel int
}

// Compiler builds digests from the alert store.
type Compiler struct {
	store store.AlertStore
}

// NewCompiler creates a summary compiler over the given store.
func NewCompiler(s store.AlertStore) *Compiler {
	return &Compiler{store: s}
}

// Compile renders the digest for the given window. On store failure it
// returns UnavailableDigest along with the error; the text is safe to send
// to the operator channel as-is.
func (c *Compiler) Compile(ctx context.Context, window time.Duration) (string, error) {
	ips, err := c.store.ListAll(ctx)
	if err != nil {
		return UnavailableDigest, err
	}

	var stats []ipStat
	total := 0
	for _, ip := range ips {
		alerts, err := c.store.ReadWindow(ctx, ip)
		if err != nil {
			return UnavailableDigest, err
		}
		if len(alerts) == 0 {
			// Key expired between the scan and the read.
			continue
		}
		st := ipStat{IP: ip, Count: len(alerts)}
		for _, a := range alerts {
			if a.RuleLevel > st.MaxLevel {
				st.MaxLevel = a.RuleLevel
			}
		}
		stats = append(stats, st)
		total += st.Count
	}

	if len(stats) == 0 {
		return fmt.Sprintf(
			"Alert summary (last %s)\nTotal alerts: 0\nUnique source IPs: 0\nNo alerts in the window.",
			formatWindow(window)), nil
	}

	// Rank by count, then max level: the order an operator triages by.
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].MaxLevel > stats[j].MaxLevel
	})

	top := stats
	if len(top) > TopN {
		top = top[:TopN]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Alert summary (last %s)\n", formatWindow(window))
	fmt.Fprintf(&b, "Total alerts: %d\n", total)
	fmt.Fprintf(&b, "Unique source IPs: %d\n", len(stats))
	fmt.Fprintf(&b, "Top offenders:\n")
	for i, st := range top {
		fmt.Fprintf(&b, "  %d. %s  (%d alerts, max level %d)\n", i+1, st.IP, st.Count, st.MaxLevel)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func formatWindow(window time.Duration) string {
	if window <= 0 {
		window = time.Hour
	}
	if window%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(window.Hours()))
	}
	return fmt.Sprintf("%dm", int(window.Minutes()))
}
