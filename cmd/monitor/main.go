package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mhutchins/arbmon/internal/app"
	"github.com/mhutchins/arbmon/internal/config"
	"github.com/mhutchins/arbmon/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logging.InitFromEnv()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logging.Fatalf("[monitor] %v", err)
	}

	a, err := app.Build(ctx, cfg)
	if err != nil {
		logging.Fatalf("[monitor] build: %v", err)
	}
	defer a.Close()

	logging.Infof("[monitor] threshold=%.2f min_profit=%.2f%% interval=%s alerts=%s mock=%v",
		cfg.SimilarityThreshold, cfg.MinProfitMargin*100, cfg.ScanInterval, cfg.AlertMethod, cfg.MockMode)
	a.Orchestrator.Run(ctx)
}
