package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/mhutchins/arbmon/internal/app"
	"github.com/mhutchins/arbmon/internal/config"
	"github.com/mhutchins/arbmon/internal/logging"
)

// Runs a single scan phase over all stored pairs and alerts on what it finds.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	logging.InitFromEnv()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logging.Fatalf("[scan-once] %v", err)
	}

	a, err := app.Build(ctx, cfg)
	if err != nil {
		logging.Fatalf("[scan-once] build: %v", err)
	}
	defer a.Close()

	if err := a.Orchestrator.RunScanOnce(ctx); err != nil {
		logging.Fatalf("[scan-once] %v", err)
	}
	logging.Infof("[scan-once] done")
}
