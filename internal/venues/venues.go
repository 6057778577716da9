package venues

import "context"

// Venue identifies the platform a market belongs to.
type Venue string

const (
	VenuePolymarket Venue = "polymarket"
	VenueKalshi     Venue = "kalshi"
)

// MarketDescriptor is a single binary market as listed by a venue.
// Text is the human-readable question (plus subtitle when the venue has one)
// and is what the matcher embeds; ExternalID is what the gateway accepts for
// later price lookups.
type MarketDescriptor struct {
	Venue      Venue
	ExternalID string
	Text       string
}

// PriceQuote holds the venue-implied probabilities for both sides of a
// binary contract. Both values are normalized into [0,1].
type PriceQuote struct {
	YesPrice float64
	NoPrice  float64
}

// Gateway is implemented by venue-specific clients (Polymarket, Kalshi, ...).
// ListMarkets walks the venue's full pagination and returns every open
// market; a retry starts over from the first page. GetPrice returns an error
// rather than a quote with missing fields.
type Gateway interface {
	Name() Venue
	ListMarkets(ctx context.Context) ([]MarketDescriptor, error)
	GetPrice(ctx context.Context, externalID string) (PriceQuote, error)
}
