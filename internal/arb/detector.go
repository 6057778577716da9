package arb

import (
	"context"
	"errors"
	"fmt"

	"github.com/mhutchins/arbmon/internal/logging"
	"github.com/mhutchins/arbmon/internal/store"
	"github.com/mhutchins/arbmon/internal/venues"
)

// Strategy names which side is bought on which venue.
type Strategy string

const (
	// StrategyYesNo buys YES on the source venue and NO on the target venue.
	StrategyYesNo Strategy = "YES_NO"
	// StrategyNoYes buys NO on the source venue and YES on the target venue.
	StrategyNoYes Strategy = "NO_YES"
)

// Skip reasons surfaced by CheckOpportunity. The scan treats any of these as
// "no opportunity for this pair this cycle" and moves on.
var (
	ErrQuoteUnavailable = errors.New("price quote unavailable")
	ErrInvalidPrices    = errors.New("price outside [0,1]")
)

// Opportunity is a detected, fee-adjusted profitable combination of
// opposite-side positions across a matched pair. Ephemeral; handed straight
// to the notification sinks, never persisted.
type Opportunity struct {
	Pair           store.MatchedPair
	Strategy       Strategy
	SourceLegPrice float64
	TargetLegPrice float64
	GrossMargin    float64
	NetMargin      float64
	TotalCost      float64
	Action         string
}

// Config carries the fee model and profit floor. The percentage fee applies
// to the target venue's cost basis; the fixed fee is amortized over an
// assumed reference position. Both come from configuration, not from any live
// fee schedule.
type Config struct {
	MinProfitMargin float64
	FeeRate         float64
	FixedFeeUSD     float64
	PositionSizeUSD float64
}

// Detector evaluates stored pairs against live prices from both venues.
type Detector struct {
	source venues.Gateway
	target venues.Gateway
	cfg    Config
}

func NewDetector(source, target venues.Gateway, cfg Config) (*Detector, error) {
	if source == nil || target == nil {
		return nil, fmt.Errorf("arb: both gateways are required")
	}
	if cfg.MinProfitMargin <= 0 {
		cfg.MinProfitMargin = 0.02
	}
	if cfg.PositionSizeUSD <= 0 {
		cfg.PositionSizeUSD = 100
	}
	return &Detector{source: source, target: target, cfg: cfg}, nil
}

// CheckOpportunity re-quotes both legs of a pair and computes whether a
// riskless profitable combination exists net of fees. A non-nil error is a
// per-pair skip reason, never fatal to a batch; (nil, nil) means prices were
// fine but no opportunity clears the profit floor.
func (d *Detector) CheckOpportunity(ctx context.Context, pair store.MatchedPair) (*Opportunity, error) {
	srcQuote, err := d.source.GetPrice(ctx, pair.SourceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrQuoteUnavailable, d.source.Name(), pair.SourceID, err)
	}
	tgtQuote, err := d.target.GetPrice(ctx, pair.TargetID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrQuoteUnavailable, d.target.Name(), pair.TargetID, err)
	}

	if !validPrices(srcQuote.YesPrice, srcQuote.NoPrice, tgtQuote.YesPrice, tgtQuote.NoPrice) {
		return nil, fmt.Errorf("%w: source(Y:%.4f N:%.4f) target(Y:%.4f N:%.4f)",
			ErrInvalidPrices, srcQuote.YesPrice, srcQuote.NoPrice, tgtQuote.YesPrice, tgtQuote.NoPrice)
	}

	// Each gross margin is computed independently as 1 - cost of its legs.
	yesNoCost := srcQuote.YesPrice + tgtQuote.NoPrice
	yesNoGross := 1.0 - yesNoCost
	noYesCost := srcQuote.NoPrice + tgtQuote.YesPrice
	noYesGross := 1.0 - noYesCost

	// The comparison is strict, so equal gross margins fall through to
	// NO_YES.
	var (
		strategy       Strategy
		gross, cost    float64
		srcLeg, tgtLeg float64
		action         string
	)
	switch {
	case yesNoGross > noYesGross && yesNoGross > 0:
		strategy = StrategyYesNo
		gross, cost = yesNoGross, yesNoCost
		srcLeg, tgtLeg = srcQuote.YesPrice, tgtQuote.NoPrice
		action = fmt.Sprintf("Buy YES on %s, NO on %s", d.source.Name(), d.target.Name())
	case noYesGross > 0:
		strategy = StrategyNoYes
		gross, cost = noYesGross, noYesCost
		srcLeg, tgtLeg = srcQuote.NoPrice, tgtQuote.YesPrice
		action = fmt.Sprintf("Buy NO on %s, YES on %s", d.source.Name(), d.target.Name())
	default:
		logging.Debugf("[detector] pair %d no positive margin (YES_NO: %.4f, NO_YES: %.4f)",
			pair.ID, yesNoGross, noYesGross)
		return nil, nil
	}

	net := d.netMargin(gross, cost)
	if net < d.cfg.MinProfitMargin {
		logging.Debugf("[detector] pair %d %s below floor: net=%.4f min=%.4f",
			pair.ID, strategy, net, d.cfg.MinProfitMargin)
		return nil, nil
	}

	logging.Infof("[detector] opportunity pair=%d %s net=%.4f gross=%.4f cost=%.4f",
		pair.ID, strategy, net, gross, cost)
	return &Opportunity{
		Pair:           pair,
		Strategy:       strategy,
		SourceLegPrice: srcLeg,
		TargetLegPrice: tgtLeg,
		GrossMargin:    gross,
		NetMargin:      net,
		TotalCost:      cost,
		Action:         action,
	}, nil
}

// ScanAll checks every pair in order. Skip errors are logged per pair and
// never abort the batch; the result holds only found opportunities, in pair
// iteration order.
func (d *Detector) ScanAll(ctx context.Context, pairs []store.MatchedPair) []*Opportunity {
	logging.Infof("[detector] scanning %d matched pairs", len(pairs))
	var opportunities []*Opportunity
	for i, pair := range pairs {
		opp, err := d.CheckOpportunity(ctx, pair)
		if err != nil {
			logging.Errorf("[detector] skip pair %s/%s: %v", pair.SourceID, pair.TargetID, err)
			continue
		}
		if opp != nil {
			opportunities = append(opportunities, opp)
		}
		if (i+1)%10 == 0 {
			logging.Infof("[detector] scanned %d/%d pairs", i+1, len(pairs))
		}
	}
	logging.Infof("[detector] scan complete: %d opportunities out of %d pairs", len(opportunities), len(pairs))
	return opportunities
}

// netMargin subtracts the percentage fee on the cost basis and the fixed fee
// amortized over the reference position, flooring at zero so a negative net
// never leaves this package.
func (d *Detector) netMargin(gross, cost float64) float64 {
	net := gross - cost*d.cfg.FeeRate - d.cfg.FixedFeeUSD/d.cfg.PositionSizeUSD
	if net < 0 {
		return 0
	}
	return net
}

func validPrices(prices ...float64) bool {
	for _, p := range prices {
		if p < 0 || p > 1 {
			return false
		}
	}
	return true
}
