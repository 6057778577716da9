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

// TelegramSink delivers alerts via the Telegram Bot API.
type TelegramSink struct {
	token  string
	chatID string
	client *http.Client
}

func NewTelegramSink(token, chatID string) (*TelegramSink, error) {
	if token == "" || chatID == "" {
		return nil, fmt.Errorf("telegram: bot token and chat id are required")
	}
	return &TelegramSink{
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (s *TelegramSink) Send(ctx context.Context, opp *arb.Opportunity) error {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", s.token)

	payload := map[string]string{
		"chat_id": s.chatID,
		"text":    FormatMessage(opp),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func (s *TelegramSink) Name() string {
	return "telegram"
}
