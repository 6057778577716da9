package kalshi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mhutchins/arbmon/internal/logging"
	"github.com/mhutchins/arbmon/internal/venues"
)

const defaultBaseURL = "https://api.elections.kalshi.com/trade-api/v2/markets"

// Client talks to the Kalshi Trade API markets endpoint. Prices come back in
// cents and are normalized to [0,1] probabilities.
type Client struct {
	baseURL    string
	pageSize   int
	httpClient *http.Client
}

// Config provides optional overrides.
type Config struct {
	BaseURL  string
	PageSize int
	Timeout  time.Duration
}

// NewClient builds a configured Kalshi API client.
func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 100
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL:  base,
		pageSize: pageSize,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Name() venues.Venue {
	return venues.VenueKalshi
}

// ListMarkets walks the cursor pagination from the first page and returns
// every open market. The embedding text combines the market title with its
// subtitle when present.
func (c *Client) ListMarkets(ctx context.Context) ([]venues.MarketDescriptor, error) {
	var out []venues.MarketDescriptor
	cursor := ""
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		resp, err := c.listPage(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("list kalshi markets: %w", err)
		}
		logging.Debugf("[kalshi] page of %d markets (cursor: %q)", len(resp.Markets), cursor)

		for _, m := range resp.Markets {
			if m.Ticker == "" || m.Title == "" {
				continue
			}
			text := m.Title
			if m.Subtitle != "" {
				text += " " + m.Subtitle
			}
			out = append(out, venues.MarketDescriptor{
				Venue:      venues.VenueKalshi,
				ExternalID: m.Ticker,
				Text:       text,
			})
		}

		if resp.Cursor == "" {
			break
		}
		cursor = resp.Cursor
	}
	logging.Infof("[kalshi] fetched %d markets", len(out))
	return out, nil
}

// GetPrice returns the ask prices for both sides of a market, converted from
// cents. Missing fields are an error, not a zero quote.
func (c *Client) GetPrice(ctx context.Context, externalID string) (venues.PriceQuote, error) {
	u := fmt.Sprintf("%s/%s", strings.TrimRight(c.baseURL, "/"), url.PathEscape(externalID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return venues.PriceQuote{}, err
	}
	var out marketResponse
	if err := c.do(req, &out); err != nil {
		return venues.PriceQuote{}, fmt.Errorf("fetch kalshi market %s: %w", externalID, err)
	}
	if out.Market.YesAsk == nil || out.Market.NoAsk == nil {
		return venues.PriceQuote{}, fmt.Errorf("kalshi market %s missing price data", externalID)
	}
	return venues.PriceQuote{
		YesPrice: centsToFloat(*out.Market.YesAsk),
		NoPrice:  centsToFloat(*out.Market.NoAsk),
	}, nil
}

func (c *Client) listPage(ctx context.Context, cursor string) (*marketsResponse, error) {
	u, _ := url.Parse(c.baseURL)
	q := u.Query()
	q.Set("limit", strconv.Itoa(c.pageSize))
	q.Set("status", "open")
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	var out marketsResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
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
		return fmt.Errorf("kalshi API %s: %s", resp.Status, string(body))
	}
}

type marketsResponse struct {
	Markets []market `json:"markets"`
	Cursor  string   `json:"cursor"`
}

type marketResponse struct {
	Market market `json:"market"`
}

type market struct {
	Ticker   string `json:"ticker"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Status   string `json:"status"`
	YesAsk   *int64 `json:"yes_ask"`
	YesBid   *int64 `json:"yes_bid"`
	NoAsk    *int64 `json:"no_ask"`
	NoBid    *int64 `json:"no_bid"`
}

func centsToFloat(v int64) float64 {
	return float64(v) / 100.0
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
