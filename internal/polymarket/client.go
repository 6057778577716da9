package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mhutchins/arbmon/internal/logging"
	"github.com/mhutchins/arbmon/internal/venues"
)

const (
	defaultBaseURL = "https://clob.polymarket.com/markets"

	// The CLOB API signals the final page with this cursor sentinel.
	endCursor = "LTE="
)

// Client fetches Polymarket CLOB markets. Token prices are already quoted as
// [0,1] probabilities.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config controls optional overrides for the client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient builds a Polymarket client with sane defaults.
func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Name() venues.Venue {
	return venues.VenuePolymarket
}

// ListMarkets walks the cursor pagination from the first page and returns
// every open binary market. The market question is the embedding text.
func (c *Client) ListMarkets(ctx context.Context) ([]venues.MarketDescriptor, error) {
	var out []venues.MarketDescriptor
	cursor := ""
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		page, err := c.listPage(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("list polymarket markets: %w", err)
		}
		logging.Debugf("[polymarket] page of %d markets (cursor: %q)", len(page.Data), cursor)

		for _, m := range page.Data {
			if m.ConditionID == "" || m.Question == "" || m.Closed {
				continue
			}
			out = append(out, venues.MarketDescriptor{
				Venue:      venues.VenuePolymarket,
				ExternalID: m.ConditionID,
				Text:       m.Question,
			})
		}

		if page.NextCursor == "" || page.NextCursor == endCursor {
			break
		}
		cursor = page.NextCursor
	}
	logging.Infof("[polymarket] fetched %d markets", len(out))
	return out, nil
}

// GetPrice returns the YES/NO token prices of a market. A market without both
// tokens is an error, not a zero quote.
func (c *Client) GetPrice(ctx context.Context, externalID string) (venues.PriceQuote, error) {
	u := fmt.Sprintf("%s/%s", strings.TrimRight(c.baseURL, "/"), url.PathEscape(externalID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return venues.PriceQuote{}, err
	}
	var m market
	if err := c.do(req, &m); err != nil {
		return venues.PriceQuote{}, fmt.Errorf("fetch polymarket market %s: %w", externalID, err)
	}

	yes, no, ok := splitTokens(m.Tokens)
	if !ok {
		return venues.PriceQuote{}, fmt.Errorf("polymarket market %s missing price tokens", externalID)
	}
	return venues.PriceQuote{YesPrice: yes, NoPrice: no}, nil
}

// splitTokens resolves the YES/NO token prices, preferring outcome labels and
// falling back to token order for markets without them.
func splitTokens(tokens []token) (yes, no float64, ok bool) {
	if len(tokens) < 2 {
		return 0, 0, false
	}
	yesTok, noTok := tokens[0], tokens[1]
	for _, t := range tokens {
		switch strings.ToLower(t.Outcome) {
		case "yes":
			yesTok = t
		case "no":
			noTok = t
		}
	}
	return yesTok.Price, noTok.Price, true
}

func (c *Client) listPage(ctx context.Context, cursor string) (*marketsPage, error) {
	u, _ := url.Parse(c.baseURL)
	if cursor != "" {
		q := u.Query()
		q.Set("next_cursor", cursor)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	var page marketsPage
	if err := c.do(req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) do(req *http.Request, dst any) error {
	var attempt int
	for {
		attempt++
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if shouldRetry(attempt, 0) {
				sleep(attempt)
				continue
			}
			return err
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			defer resp.Body.Close()
			return json.NewDecoder(resp.Body).Decode(dst)
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()

		if shouldRetry(attempt, resp.StatusCode) {
			sleep(attempt)
			continue
		}
		return fmt.Errorf("polymarket API %s: %s", resp.Status, string(body))
	}
}

type marketsPage struct {
	Data       []market `json:"data"`
	NextCursor string   `json:"next_cursor"`
}

type market struct {
	ConditionID string  `json:"condition_id"`
	Question    string  `json:"question"`
	Active      bool    `json:"active"`
	Closed      bool    `json:"closed"`
	Tokens      []token `json:"tokens"`
}

type token struct {
	TokenID string  `json:"token_id"`
	Outcome string  `json:"outcome"`
	Price   float64 `json:"price"`
}

func shouldRetry(attempt int, status int) bool {
	if attempt >= 5 {
		return false
	}
	if status == 0 {
		return true
	}
	if status == http.StatusTooManyRequests || status >= 500 {
		return true
	}
	return false
}

func sleep(attempt int) {
	backoff := time.Duration(1<<uint(attempt-1)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	time.Sleep(backoff)
}
