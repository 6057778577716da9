// Package app wires configuration into a ready-to-run orchestrator. All
// clients are constructed eagerly here so a bad credential or unreachable
// broker fails at startup, not mid-cycle.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/mhutchins/arbmon/internal/arb"
	"github.com/mhutchins/arbmon/internal/cache"
	"github.com/mhutchins/arbmon/internal/config"
	"github.com/mhutchins/arbmon/internal/embed"
	"github.com/mhutchins/arbmon/internal/kafka"
	"github.com/mhutchins/arbmon/internal/kalshi"
	"github.com/mhutchins/arbmon/internal/logging"
	"github.com/mhutchins/arbmon/internal/matcher"
	"github.com/mhutchins/arbmon/internal/notify"
	"github.com/mhutchins/arbmon/internal/orchestrator"
	"github.com/mhutchins/arbmon/internal/polymarket"
	"github.com/mhutchins/arbmon/internal/store"
	"github.com/mhutchins/arbmon/internal/venues"
)

// App bundles the orchestrator with everything that needs closing.
type App struct {
	Orchestrator *orchestrator.Orchestrator
	Store        *store.Store

	closers []func() error
}

// Close releases all resources in reverse construction order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logging.Errorf("[app] close: %v", err)
		}
	}
}

// Build constructs the full pipeline from configuration.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{}

	pairs, err := store.Open(cfg.SQLitePath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.Store = pairs
	a.closers = append(a.closers, pairs.Close)

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	var embCache cache.EmbeddingCache
	var alerts cache.AlertCache
	if cfg.RedisAddr != "" {
		embCache, err = cache.NewRedisEmbeddingCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL, "")
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("embedding cache: %w", err)
		}
		a.closers = append(a.closers, embCache.Close)

		alerts, err = cache.NewRedisAlertCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL, "")
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("alert cache: %w", err)
		}
		a.closers = append(a.closers, alerts.Close)
	}

	m, err := matcher.New(matcher.Config{
		Embedder:  embedder,
		Cache:     embCache,
		Threshold: cfg.SimilarityThreshold,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	source, target := buildGateways(cfg)

	detector, err := arb.NewDetector(source, target, arb.Config{
		MinProfitMargin: cfg.MinProfitMargin,
		FeeRate:         cfg.KalshiFeePercent,
		FixedFeeUSD:     cfg.PolymarketGasUSD,
		PositionSizeUSD: cfg.PositionSizeUSD,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	sink, err := buildSink(ctx, cfg, a)
	if err != nil {
		a.Close()
		return nil, err
	}

	orch, err := orchestrator.New(source, target, m, pairs, detector, sink, alerts, orchestrator.Config{
		Threshold: cfg.SimilarityThreshold,
		Interval:  cfg.ScanInterval,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Orchestrator = orch
	return a, nil
}

func buildEmbedder(cfg config.Config) (matcher.Embedder, error) {
	if cfg.MockMode {
		logging.Infof("[app] mock mode: using local hashing embedder")
		return embed.NewLocalEmbedder(64), nil
	}
	client, err := embed.New(embed.Config{
		APIKey:  cfg.EmbedAPIKey,
		BaseURL: cfg.EmbedBaseURL,
		Model:   cfg.EmbedModel,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding client: %w", err)
	}
	logging.Infof("[app] embedding model: %s", client.Model())
	return client, nil
}

func buildGateways(cfg config.Config) (venues.Gateway, venues.Gateway) {
	if cfg.MockMode {
		logging.Infof("[app] mock mode: using fixture gateways")
		return mockSource(), mockTarget()
	}
	return polymarket.NewClient(polymarket.Config{}), kalshi.NewClient(kalshi.Config{})
}

func buildSink(ctx context.Context, cfg config.Config, a *App) (notify.Sink, error) {
	switch cfg.AlertMethod {
	case "", "console":
		return notify.NewConsoleSink(nil), nil
	case "discord":
		return notify.NewDiscordSink(cfg.DiscordWebhookURL)
	case "telegram":
		return notify.NewTelegramSink(cfg.TelegramBotToken, cfg.TelegramChatID)
	case "kafka":
		brokers := kafka.ParseBrokers(cfg.KafkaBrokers)
		waitCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
		defer cancel()
		if err := kafka.WaitForBroker(waitCtx, brokers); err != nil {
			return nil, fmt.Errorf("kafka sink: %w", err)
		}
		ensureCtx, cancelEnsure := context.WithTimeout(ctx, 30*time.Second)
		defer cancelEnsure()
		if err := kafka.EnsureTopic(ensureCtx, brokers, cfg.KafkaTopic); err != nil {
			logging.Errorf("[app] ensure topic warning: %v", err)
		}
		sink, err := notify.NewKafkaSink(kafka.NewWriter(brokers, cfg.KafkaTopic))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, sink.Close)
		return sink, nil
	default:
		return nil, fmt.Errorf("unknown ALERT_METHOD %q", cfg.AlertMethod)
	}
}
