package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mhutchins/arbmon/internal/arb"
	"github.com/mhutchins/arbmon/internal/cache"
	"github.com/mhutchins/arbmon/internal/logging"
	"github.com/mhutchins/arbmon/internal/matcher"
	"github.com/mhutchins/arbmon/internal/notify"
	"github.com/mhutchins/arbmon/internal/store"
	"github.com/mhutchins/arbmon/internal/venues"
)

// ErrNoMarkets aborts a cycle when either venue returned an empty listing.
// Fatal for the cycle, never for the process.
var ErrNoMarkets = errors.New("venue returned no markets")

// Config controls scheduling and matching for the orchestrator.
type Config struct {
	Threshold float64
	Interval  time.Duration
}

// Orchestrator runs the match phase and the scan phase sequentially on a
// fixed interval. All collaborators are injected at construction; there is no
// ambient state.
type Orchestrator struct {
	source    venues.Gateway
	target    venues.Gateway
	matcher   *matcher.Matcher
	pairs     *store.Store
	detector  *arb.Detector
	sink      notify.Sink
	alerts    cache.AlertCache // optional; nil disables suppression
	threshold float64
	interval  time.Duration

	// Serializes cycles so a slow scan never overlaps the next tick.
	mu sync.Mutex
}

func New(source, target venues.Gateway, m *matcher.Matcher, pairs *store.Store, d *arb.Detector, sink notify.Sink, alerts cache.AlertCache, cfg Config) (*Orchestrator, error) {
	if source == nil || target == nil {
		return nil, fmt.Errorf("orchestrator: both gateways are required")
	}
	if m == nil || pairs == nil || d == nil {
		return nil, fmt.Errorf("orchestrator: matcher, store, and detector are required")
	}
	if sink == nil {
		return nil, fmt.Errorf("orchestrator: notification sink is required")
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Orchestrator{
		source:    source,
		target:    target,
		matcher:   m,
		pairs:     pairs,
		detector:  d,
		sink:      sink,
		alerts:    alerts,
		threshold: cfg.Threshold,
		interval:  interval,
	}, nil
}

// Run executes cycles until the context is cancelled. The first cycle starts
// immediately; cancellation is observed between cycles, never mid-write.
func (o *Orchestrator) Run(ctx context.Context) {
	logging.Infof("[orchestrator] starting, interval=%s", o.interval)

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	o.runCycleLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			logging.Infof("[orchestrator] stopping: %v", ctx.Err())
			return
		case <-ticker.C:
			o.runCycleLogged(ctx)
		}
	}
}

func (o *Orchestrator) runCycleLogged(ctx context.Context) {
	if err := o.RunCycle(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		logging.Errorf("[orchestrator] cycle aborted: %v", err)
	}
}

// RunCycle executes one match phase followed by one scan phase under the run
// lock. Any returned error aborted the cycle.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	started := time.Now()
	if _, err := o.runMatchPhase(ctx); err != nil {
		return fmt.Errorf("match phase: %w", err)
	}
	if err := o.runScanPhase(ctx); err != nil {
		return fmt.Errorf("scan phase: %w", err)
	}
	logging.Infof("[orchestrator] cycle complete in %s", time.Since(started).Round(time.Millisecond))
	return nil
}

// RunMatchOnce runs only the match phase, for the one-shot matching binary.
func (o *Orchestrator) RunMatchOnce(ctx context.Context) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runMatchPhase(ctx)
}

// RunScanOnce runs only the scan phase, for the one-shot scanning binary.
func (o *Orchestrator) RunScanOnce(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runScanPhase(ctx)
}

// runMatchPhase fetches both venue listings, matches them, and persists the
// candidates. Returns the number of newly stored pairs.
func (o *Orchestrator) runMatchPhase(ctx context.Context) (int, error) {
	sourceMarkets, err := o.source.ListMarkets(ctx)
	if err != nil {
		return 0, fmt.Errorf("list %s markets: %w", o.source.Name(), err)
	}
	targetMarkets, err := o.target.ListMarkets(ctx)
	if err != nil {
		return 0, fmt.Errorf("list %s markets: %w", o.target.Name(), err)
	}
	if len(sourceMarkets) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoMarkets, o.source.Name())
	}
	if len(targetMarkets) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoMarkets, o.target.Name())
	}

	candidates, err := o.matcher.FindMatches(ctx, sourceMarkets, targetMarkets, o.threshold)
	if err != nil {
		return 0, fmt.Errorf("find matches: %w", err)
	}

	inserted, err := o.pairs.StoreMatches(ctx, candidates)
	if err != nil {
		return 0, fmt.Errorf("store matches: %w", err)
	}
	total, err := o.pairs.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count matches: %w", err)
	}
	logging.Infof("[orchestrator] match phase: %d candidates, %d new, %d total stored",
		len(candidates), inserted, total)
	return inserted, nil
}

// runScanPhase loads all stored pairs and dispatches every detected
// opportunity. An empty store triggers a match phase first, then one retry.
func (o *Orchestrator) runScanPhase(ctx context.Context) error {
	pairs, err := o.pairs.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load pairs: %w", err)
	}
	if len(pairs) == 0 {
		logging.Infof("[orchestrator] match store empty, running match phase first")
		if _, err := o.runMatchPhase(ctx); err != nil {
			return err
		}
		if pairs, err = o.pairs.GetAll(ctx); err != nil {
			return fmt.Errorf("load pairs: %w", err)
		}
		if len(pairs) == 0 {
			logging.Infof("[orchestrator] still no matched pairs, nothing to scan")
			return nil
		}
	}

	opportunities := o.detector.ScanAll(ctx, pairs)
	for _, opp := range opportunities {
		o.dispatch(ctx, opp)
	}
	return nil
}

// dispatch sends one opportunity through the sink unless the alert cache
// shows it was already announced at the same or better margin. Sink and cache
// failures are logged and swallowed; they must not reach the scan loop.
func (o *Orchestrator) dispatch(ctx context.Context, opp *arb.Opportunity) {
	key := opp.Pair.Key()
	if o.alerts != nil {
		record, ok, err := o.alerts.Get(ctx, key)
		if err != nil {
			logging.Errorf("[orchestrator] alert cache get %s: %v", key, err)
		}
		if ok && record.NetMargin >= opp.NetMargin {
			logging.Debugf("[orchestrator] suppressing repeat alert for pair %s (net=%.4f cached=%.4f)",
				key, opp.NetMargin, record.NetMargin)
			return
		}
	}

	if err := o.sink.Send(ctx, opp); err != nil {
		logging.Errorf("[orchestrator] %s sink failed for pair %s: %v", o.sink.Name(), key, err)
		return
	}

	if o.alerts != nil {
		record := cache.AlertRecord{
			NetMargin: opp.NetMargin,
			Strategy:  string(opp.Strategy),
			UpdatedAt: time.Now().UTC(),
		}
		if err := o.alerts.Set(ctx, key, record); err != nil {
			logging.Errorf("[orchestrator] alert cache set %s: %v", key, err)
		}
	}
}
