package app

import "github.com/mhutchins/arbmon/internal/venues"

// Fixture gateways for mock mode. The first pair of markets shares enough
// vocabulary to clear the similarity threshold and is priced with a YES_NO
// edge, so a full cycle produces one stored pair and one alert.
func mockSource() venues.Gateway {
	markets := []venues.MarketDescriptor{
		{
			Venue:      venues.VenuePolymarket,
			ExternalID: "0xmock-fed-cut",
			Text:       "Will the Fed cut interest rates at the December meeting?",
		},
		{
			Venue:      venues.VenuePolymarket,
			ExternalID: "0xmock-btc-100k",
			Text:       "Will Bitcoin close above $100k this year?",
		},
	}
	quotes := map[string]venues.PriceQuote{
		"0xmock-fed-cut":  {YesPrice: 0.40, NoPrice: 0.60},
		"0xmock-btc-100k": {YesPrice: 0.55, NoPrice: 0.45},
	}
	return venues.NewMockGateway(venues.VenuePolymarket, markets, quotes)
}

func mockTarget() venues.Gateway {
	markets := []venues.MarketDescriptor{
		{
			Venue:      venues.VenueKalshi,
			ExternalID: "MOCK-FEDCUT-DEC",
			Text:       "Will the Fed cut interest rates at the December meeting?",
		},
		{
			Venue:      venues.VenueKalshi,
			ExternalID: "MOCK-SNOW-NYC",
			Text:       "Will it snow in New York on Christmas Day?",
		},
	}
	quotes := map[string]venues.PriceQuote{
		"MOCK-FEDCUT-DEC": {YesPrice: 0.45, NoPrice: 0.55},
		"MOCK-SNOW-NYC":   {YesPrice: 0.20, NoPrice: 0.80},
	}
	return venues.NewMockGateway(venues.VenueKalshi, markets, quotes)
}
