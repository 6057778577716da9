package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/mhutchins/arbmon/internal/app"
	"github.com/mhutchins/arbmon/internal/config"
	"github.com/mhutchins/arbmon/internal/logging"
)

// Runs a single match phase: fetch both venues, match, persist.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	logging.InitFromEnv()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logging.Fatalf("[match-once] %v", err)
	}

	a, err := app.Build(ctx, cfg)
	if err != nil {
		logging.Fatalf("[match-once] build: %v", err)
	}
	defer a.Close()

	inserted, err := a.Orchestrator.RunMatchOnce(ctx)
	if err != nil {
		logging.Fatalf("[match-once] %v", err)
	}
	total, err := a.Store.Count(ctx)
	if err != nil {
		logging.Fatalf("[match-once] count: %v", err)
	}
	logging.Infof("[match-once] done: %d new pairs stored, %d total", inserted, total)
}
