package venues

import (
	"context"
	"fmt"
)

// MockGateway serves a fixed market list and quote table. It backs mock mode
// so the whole pipeline can run without venue credentials.
type MockGateway struct {
	venue   Venue
	markets []MarketDescriptor
	quotes  map[string]PriceQuote
}

func NewMockGateway(venue Venue, markets []MarketDescriptor, quotes map[string]PriceQuote) *MockGateway {
	return &MockGateway{venue: venue, markets: markets, quotes: quotes}
}

func (g *MockGateway) Name() Venue {
	return g.venue
}

func (g *MockGateway) ListMarkets(ctx context.Context) ([]MarketDescriptor, error) {
	out := make([]MarketDescriptor, len(g.markets))
	copy(out, g.markets)
	return out, nil
}

func (g *MockGateway) GetPrice(ctx context.Context, externalID string) (PriceQuote, error) {
	q, ok := g.quotes[externalID]
	if !ok {
		return PriceQuote{}, fmt.Errorf("%s: no quote for market %s", g.venue, externalID)
	}
	return q, nil
}
