package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mhutchins/arbmon/internal/arb"
)

// DiscordSink delivers alerts via a Discord webhook as a rich embed.
type DiscordSink struct {
	webhookURL string
	client     *http.Client
}

func NewDiscordSink(webhookURL string) (*DiscordSink, error) {
	if webhookURL == "" {
		return nil, fmt.Errorf("discord: webhook URL is required")
	}
	return &DiscordSink{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (s *DiscordSink) Send(ctx context.Context, opp *arb.Opportunity) error {
	color := 15844367 // amber
	if opp.NetMargin > 0.05 {
		color = 3066993 // green
	}
	embed := map[string]any{
		"title":       "Arbitrage Opportunity",
		"description": fmt.Sprintf("**%s**", opp.Strategy),
		"color":       color,
		"fields": []map[string]any{
			{"name": "Source", "value": truncate(opp.Pair.SourceText, 100), "inline": false},
			{"name": "Target", "value": truncate(opp.Pair.TargetText, 100), "inline": false},
			{"name": "Action", "value": opp.Action, "inline": false},
			{"name": "Leg prices", "value": fmt.Sprintf("$%.4f / $%.4f", opp.SourceLegPrice, opp.TargetLegPrice), "inline": true},
			{"name": "Net margin", "value": fmt.Sprintf("%.2f%%", opp.NetMargin*100), "inline": true},
			{"name": "Total cost", "value": fmt.Sprintf("$%.4f", opp.TotalCost), "inline": true},
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"footer": map[string]any{
			"text": fmt.Sprintf("Similarity: %.1f%%", opp.Pair.Similarity*100),
		},
	}

	body, err := json.Marshal(map[string]any{"embeds": []any{embed}})
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send request: %w", err)
	}
	defer resp.Body.Close()

	// Discord returns 204 No Content on success.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func (s *DiscordSink) Name() string {
	return "discord"
}
