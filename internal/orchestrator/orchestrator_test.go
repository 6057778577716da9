package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/mhutchins/arbmon/internal/arb"
	"github.com/mhutchins/arbmon/internal/cache"
	"github.com/mhutchins/arbmon/internal/embed"
	"github.com/mhutchins/arbmon/internal/matcher"
	"github.com/mhutchins/arbmon/internal/store"
	"github.com/mhutchins/arbmon/internal/venues"
)

type fakeGateway struct {
	venue   venues.Venue
	markets []venues.MarketDescriptor
	quotes  map[string]venues.PriceQuote
	listErr error
}

func (g *fakeGateway) Name() venues.Venue {
	return g.venue
}

func (g *fakeGateway) ListMarkets(ctx context.Context) ([]venues.MarketDescriptor, error) {
	if g.listErr != nil {
		return nil, g.listErr
	}
	return g.markets, nil
}

func (g *fakeGateway) GetPrice(ctx context.Context, externalID string) (venues.PriceQuote, error) {
	q, ok := g.quotes[externalID]
	if !ok {
		return venues.PriceQuote{}, fmt.Errorf("no quote for %s", externalID)
	}
	return q, nil
}

type recordingSink struct {
	sent []*arb.Opportunity
	fail bool
}

func (s *recordingSink) Send(ctx context.Context, opp *arb.Opportunity) error {
	if s.fail {
		return errors.New("simulated delivery failure")
	}
	s.sent = append(s.sent, opp)
	return nil
}

func (s *recordingSink) Name() string { return "recording" }

type memoryAlertCache struct {
	data map[string]cache.AlertRecord
}

func newMemoryAlertCache() *memoryAlertCache {
	return &memoryAlertCache{data: map[string]cache.AlertRecord{}}
}

func (c *memoryAlertCache) Get(ctx context.Context, pairKey string) (*cache.AlertRecord, bool, error) {
	record, ok := c.data[pairKey]
	if !ok {
		return nil, false, nil
	}
	return &record, true, nil
}

func (c *memoryAlertCache) Set(ctx context.Context, pairKey string, record cache.AlertRecord) error {
	c.data[pairKey] = record
	return nil
}

func (c *memoryAlertCache) Close() error { return nil }

// The priced pair carries identical text on both venues so the local embedder
// matches it with similarity 1.0; the distractor shares no vocabulary.
const (
	fedText      = "Will the Fed cut interest rates in September"
	snowText     = "Denver snowfall total above six inches on Christmas"
	wantNetFed   = 0.05 - 0.95*0.007 - 0.10/100
	testInterval = time.Hour
)

func newTestGateways() (*fakeGateway, *fakeGateway) {
	source := &fakeGateway{
		venue: venues.VenuePolymarket,
		markets: []venues.MarketDescriptor{
			{Venue: venues.VenuePolymarket, ExternalID: "pm-fed", Text: fedText},
		},
		quotes: map[string]venues.PriceQuote{
			"pm-fed": {YesPrice: 0.40, NoPrice: 0.60},
		},
	}
	target := &fakeGateway{
		venue: venues.VenueKalshi,
		markets: []venues.MarketDescriptor{
			{Venue: venues.VenueKalshi, ExternalID: "kx-snow", Text: snowText},
			{Venue: venues.VenueKalshi, ExternalID: "kx-fed", Text: fedText},
		},
		quotes: map[string]venues.PriceQuote{
			"kx-fed":  {YesPrice: 0.45, NoPrice: 0.55},
			"kx-snow": {YesPrice: 0.50, NoPrice: 0.50},
		},
	}
	return source, target
}

func newTestOrchestrator(t *testing.T, source, target venues.Gateway, sink *recordingSink, alerts cache.AlertCache) (*Orchestrator, *store.Store) {
	t.Helper()
	pairs, err := store.Open(filepath.Join(t.TempDir(), "matches.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { pairs.Close() })

	m, err := matcher.New(matcher.Config{Embedder: embed.NewLocalEmbedder(0), Threshold: 0.85})
	if err != nil {
		t.Fatalf("matcher.New: %v", err)
	}
	d, err := arb.NewDetector(source, target, arb.Config{
		MinProfitMargin: 0.02,
		FeeRate:         0.007,
		FixedFeeUSD:     0.10,
		PositionSizeUSD: 100,
	})
	if err != nil {
		t.Fatalf("arb.NewDetector: %v", err)
	}
	o, err := New(source, target, m, pairs, d, sink, alerts, Config{Threshold: 0.85, Interval: testInterval})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o, pairs
}

func TestRunCycleEndToEnd(t *testing.T) {
	source, target := newTestGateways()
	sink := &recordingSink{}
	o, pairs := newTestOrchestrator(t, source, target, sink, nil)
	ctx := context.Background()

	if err := o.RunCycle(ctx); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	n, err := pairs.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("stored pairs = %d, want 1 (distractor must not match)", n)
	}
	if len(sink.sent) != 1 {
		t.Fatalf("sink received %d alerts, want 1", len(sink.sent))
	}
	opp := sink.sent[0]
	if opp.Strategy != arb.StrategyYesNo {
		t.Errorf("strategy = %s, want %s", opp.Strategy, arb.StrategyYesNo)
	}
	if opp.Pair.SourceID != "pm-fed" || opp.Pair.TargetID != "kx-fed" {
		t.Errorf("alerted pair %s/%s, want pm-fed/kx-fed", opp.Pair.SourceID, opp.Pair.TargetID)
	}
	if math.Abs(opp.NetMargin-wantNetFed) > 1e-12 {
		t.Errorf("net margin = %.6f, want %.6f", opp.NetMargin, wantNetFed)
	}
}

func TestRunCycleIdempotentAcrossCycles(t *testing.T) {
	source, target := newTestGateways()
	sink := &recordingSink{}
	o, pairs := newTestOrchestrator(t, source, target, sink, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := o.RunCycle(ctx); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
	}
	if n, _ := pairs.Count(ctx); n != 1 {
		t.Errorf("stored pairs after 3 cycles = %d, want 1", n)
	}
	// Without an alert cache every cycle re-announces.
	if len(sink.sent) != 3 {
		t.Errorf("sink received %d alerts, want 3", len(sink.sent))
	}
}

func TestRunCycleAbortsWhenVenueEmpty(t *testing.T) {
	source, target := newTestGateways()
	source.markets = nil
	sink := &recordingSink{}
	o, pairs := newTestOrchestrator(t, source, target, sink, nil)
	ctx := context.Background()

	err := o.RunCycle(ctx)
	if !errors.Is(err, ErrNoMarkets) {
		t.Fatalf("err = %v, want ErrNoMarkets", err)
	}
	if n, _ := pairs.Count(ctx); n != 0 {
		t.Errorf("stored pairs = %d, want 0 after aborted cycle", n)
	}
	if len(sink.sent) != 0 {
		t.Errorf("sink received %d alerts, want 0", len(sink.sent))
	}
}

func TestRunCycleAbortsOnListError(t *testing.T) {
	source, target := newTestGateways()
	target.listErr = errors.New("venue down")
	sink := &recordingSink{}
	o, _ := newTestOrchestrator(t, source, target, sink, nil)

	if err := o.RunCycle(context.Background()); err == nil {
		t.Fatal("expected cycle to abort on listing error")
	}
}

// A scan against an empty store runs a match phase first and then scans the
// fresh pairs.
func TestRunScanOnceBootstrapsEmptyStore(t *testing.T) {
	source, target := newTestGateways()
	sink := &recordingSink{}
	o, pairs := newTestOrchestrator(t, source, target, sink, nil)
	ctx := context.Background()

	if err := o.RunScanOnce(ctx); err != nil {
		t.Fatalf("RunScanOnce: %v", err)
	}
	if n, _ := pairs.Count(ctx); n != 1 {
		t.Errorf("stored pairs = %d, want 1 after bootstrap", n)
	}
	if len(sink.sent) != 1 {
		t.Errorf("sink received %d alerts, want 1", len(sink.sent))
	}
}

func TestRunScanOnceNothingToScan(t *testing.T) {
	source, target := newTestGateways()
	// Markets exist but nothing crosses the similarity threshold, so the
	// bootstrap match phase stores zero pairs.
	target.markets = target.markets[:1]
	sink := &recordingSink{}
	o, pairs := newTestOrchestrator(t, source, target, sink, nil)
	ctx := context.Background()

	if err := o.RunScanOnce(ctx); err != nil {
		t.Fatalf("RunScanOnce: %v", err)
	}
	if n, _ := pairs.Count(ctx); n != 0 {
		t.Errorf("stored pairs = %d, want 0", n)
	}
	if len(sink.sent) != 0 {
		t.Errorf("sink received %d alerts, want 0", len(sink.sent))
	}
}

func TestRunMatchOnce(t *testing.T) {
	source, target := newTestGateways()
	sink := &recordingSink{}
	o, _ := newTestOrchestrator(t, source, target, sink, nil)
	ctx := context.Background()

	inserted, err := o.RunMatchOnce(ctx)
	if err != nil {
		t.Fatalf("RunMatchOnce: %v", err)
	}
	if inserted != 1 {
		t.Errorf("inserted = %d, want 1", inserted)
	}

	inserted, err = o.RunMatchOnce(ctx)
	if err != nil {
		t.Fatalf("RunMatchOnce repeat: %v", err)
	}
	if inserted != 0 {
		t.Errorf("repeat inserted = %d, want 0", inserted)
	}
	if len(sink.sent) != 0 {
		t.Errorf("match phase must not alert, sink got %d", len(sink.sent))
	}
}

func TestSinkFailureDoesNotAbortCycle(t *testing.T) {
	source, target := newTestGateways()
	sink := &recordingSink{fail: true}
	o, _ := newTestOrchestrator(t, source, target, sink, nil)

	if err := o.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle must swallow sink failures, got %v", err)
	}
}

func TestAlertSuppression(t *testing.T) {
	source, target := newTestGateways()
	sink := &recordingSink{}
	alerts := newMemoryAlertCache()
	o, _ := newTestOrchestrator(t, source, target, sink, alerts)
	ctx := context.Background()

	if err := o.RunCycle(ctx); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if len(sink.sent) != 1 {
		t.Fatalf("first cycle sent %d alerts, want 1", len(sink.sent))
	}

	// Same opportunity, same margin: suppressed.
	if err := o.RunCycle(ctx); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if len(sink.sent) != 1 {
		t.Errorf("unchanged margin re-alerted, sent = %d", len(sink.sent))
	}

	// Prices move and the margin improves: the pair is announced again.
	source.quotes["pm-fed"] = venues.PriceQuote{YesPrice: 0.35, NoPrice: 0.65}
	if err := o.RunCycle(ctx); err != nil {
		t.Fatalf("third cycle: %v", err)
	}
	if len(sink.sent) != 2 {
		t.Errorf("improved margin not re-alerted, sent = %d", len(sink.sent))
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	source, target := newTestGateways()
	sink := &recordingSink{}
	o, _ := newTestOrchestrator(t, source, target, sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		o.Run(ctx)
		close(done)
	}()

	// The first cycle runs immediately; cancel and wait for Run to return.
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
