// Package notify delivers detected opportunities to an operator-facing
// channel. All sinks are equivalent from the core's point of view: a function
// from Opportunity to a delivery outcome. Delivery failures are reported to
// the caller but must never abort a scan.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mhutchins/arbmon/internal/arb"
)

// Sink is implemented by each notification channel.
type Sink interface {
	Send(ctx context.Context, opp *arb.Opportunity) error
	Name() string
}

// FormatMessage renders an opportunity as a plain-text alert shared by the
// console and chat sinks.
func FormatMessage(opp *arb.Opportunity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ARBITRAGE OPPORTUNITY (%s)\n", opp.Strategy)
	fmt.Fprintf(&b, "Time: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Source: %s\n", truncate(opp.Pair.SourceText, 120))
	fmt.Fprintf(&b, "Target: %s\n", truncate(opp.Pair.TargetText, 120))
	fmt.Fprintf(&b, "Action: %s\n", opp.Action)
	fmt.Fprintf(&b, "Leg prices: source $%.4f / target $%.4f\n", opp.SourceLegPrice, opp.TargetLegPrice)
	fmt.Fprintf(&b, "Total cost: $%.4f\n", opp.TotalCost)
	fmt.Fprintf(&b, "Gross margin: %.2f%%\n", opp.GrossMargin*100)
	fmt.Fprintf(&b, "Net margin: %.2f%%\n", opp.NetMargin*100)
	fmt.Fprintf(&b, "Similarity: %.1f%%", opp.Pair.Similarity*100)
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
