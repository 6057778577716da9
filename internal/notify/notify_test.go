package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mhutchins/arbmon/internal/arb"
	"github.com/mhutchins/arbmon/internal/store"
)

func sampleOpportunity() *arb.Opportunity {
	return &arb.Opportunity{
		Pair: store.MatchedPair{
			ID:         1,
			SourceText: "Will the Fed cut rates in September?",
			TargetText: "Fed cuts rates at September meeting",
			SourceID:   "0xfed",
			TargetID:   "FED-25SEP",
			Similarity: 0.93,
		},
		Strategy:       arb.StrategyYesNo,
		SourceLegPrice: 0.40,
		TargetLegPrice: 0.55,
		GrossMargin:    0.05,
		NetMargin:      0.0425,
		TotalCost:      0.95,
		Action:         "Buy YES on polymarket at $0.4000, buy NO on kalshi at $0.5500",
	}
}

func TestFormatMessage(t *testing.T) {
	msg := FormatMessage(sampleOpportunity())

	for _, want := range []string{
		"ARBITRAGE OPPORTUNITY (YES_NO)",
		"Will the Fed cut rates in September?",
		"Fed cuts rates at September meeting",
		"Total cost: $0.9500",
		"Gross margin: 5.00%",
		"Net margin: 4.25%",
		"Similarity: 93.0%",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatMessageTruncatesLongText(t *testing.T) {
	opp := sampleOpportunity()
	opp.Pair.SourceText = strings.Repeat("x", 500)
	msg := FormatMessage(opp)
	if !strings.Contains(msg, strings.Repeat("x", 120)+"...") {
		t.Error("long source text not truncated")
	}
	if strings.Contains(msg, strings.Repeat("x", 121)) {
		t.Error("truncation kept more than the limit")
	}
}

func TestConsoleSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf)
	if sink.Name() != "console" {
		t.Errorf("name = %s", sink.Name())
	}
	if err := sink.Send(context.Background(), sampleOpportunity()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.Contains(buf.String(), "ARBITRAGE OPPORTUNITY") {
		t.Errorf("console output missing alert header:\n%s", buf.String())
	}
}

func TestDiscordSinkSendsEmbed(t *testing.T) {
	var got struct {
		Embeds []struct {
			Title  string `json:"title"`
			Color  int    `json:"color"`
			Fields []struct {
				Name  string `json:"name"`
				Value string `json:"value"`
			} `json:"fields"`
		} `json:"embeds"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %s", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink, err := NewDiscordSink(srv.URL)
	if err != nil {
		t.Fatalf("NewDiscordSink: %v", err)
	}
	if err := sink.Send(context.Background(), sampleOpportunity()); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(got.Embeds) != 1 {
		t.Fatalf("got %d embeds, want 1", len(got.Embeds))
	}
	embed := got.Embeds[0]
	if embed.Title != "Arbitrage Opportunity" {
		t.Errorf("title = %q", embed.Title)
	}
	// Net margin 4.25% is below the 5% green cutoff.
	if embed.Color != 15844367 {
		t.Errorf("color = %d, want amber for sub-5%% margins", embed.Color)
	}
	var sawAction bool
	for _, f := range embed.Fields {
		if f.Name == "Action" && strings.Contains(f.Value, "Buy YES on polymarket") {
			sawAction = true
		}
	}
	if !sawAction {
		t.Error("embed missing action field")
	}
}

func TestDiscordSinkErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid webhook", http.StatusBadRequest)
	}))
	defer srv.Close()

	sink, err := NewDiscordSink(srv.URL)
	if err != nil {
		t.Fatalf("NewDiscordSink: %v", err)
	}
	if err := sink.Send(context.Background(), sampleOpportunity()); err == nil {
		t.Fatal("expected error on 400 response")
	}
}

func TestSinkConstructorsRejectMissingConfig(t *testing.T) {
	if _, err := NewDiscordSink(""); err == nil {
		t.Error("discord sink accepted empty webhook URL")
	}
	if _, err := NewTelegramSink("", "chat"); err == nil {
		t.Error("telegram sink accepted empty token")
	}
	if _, err := NewTelegramSink("token", ""); err == nil {
		t.Error("telegram sink accepted empty chat id")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	if got := truncate("abcdefghij", 10); got != "abcdefghij" {
		t.Errorf("truncate at exact limit = %q", got)
	}
	if got := truncate("abcdefghijk", 10); got != "abcdefghij..." {
		t.Errorf("truncate over limit = %q", got)
	}
}
