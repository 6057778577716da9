package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the immutable runtime configuration, assembled once at startup
// and passed down through constructors. No component reads the environment
// after Load returns.
type Config struct {
	// Matching
	SimilarityThreshold float64

	// Detection
	MinProfitMargin  float64
	KalshiFeePercent float64
	PolymarketGasUSD float64
	PositionSizeUSD  float64

	// Scheduling
	ScanInterval time.Duration

	// Persistence
	SQLitePath string

	// Embeddings (OpenAI-compatible endpoint)
	EmbedAPIKey  string
	EmbedBaseURL string
	EmbedModel   string

	// Redis caches (optional; empty addr disables)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Alerts
	AlertMethod       string // console, discord, telegram, kafka
	DiscordWebhookURL string
	TelegramBotToken  string
	TelegramChatID    string
	KafkaBrokers      string
	KafkaTopic        string

	// Mock mode runs against fixture gateways instead of live venues.
	MockMode bool
}

// Load reads .env (if present) and the process environment into a Config.
func Load() Config {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	return Config{
		SimilarityThreshold: envFloat("SIMILARITY_THRESHOLD", 0.85),
		MinProfitMargin:     envFloat("MIN_PROFIT_MARGIN", 0.02),
		KalshiFeePercent:    envFloat("KALSHI_FEE_PERCENT", 0.007),
		PolymarketGasUSD:    envFloat("POLYMARKET_GAS_FEE_USD", 0.10),
		PositionSizeUSD:     envFloat("POSITION_SIZE_USD", 100),
		ScanInterval:        envDuration("SCAN_INTERVAL", 5*time.Minute),
		SQLitePath:          envString("SQLITE_PATH", "data/matches.db"),
		EmbedAPIKey:         envString("NEBIUS_API_KEY", ""),
		EmbedBaseURL:        envString("EMBED_BASE_URL", ""),
		EmbedModel:          envString("EMBED_MODEL", ""),
		RedisAddr:           envString("REDIS_ADDR", ""),
		RedisPassword:       envString("REDIS_PASSWORD", ""),
		RedisDB:             envInt("REDIS_DB", 0),
		CacheTTL:            envDuration("CACHE_TTL", 240*time.Hour),
		AlertMethod:         envString("ALERT_METHOD", "console"),
		DiscordWebhookURL:   envString("DISCORD_WEBHOOK_URL", ""),
		TelegramBotToken:    envString("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:      envString("TELEGRAM_CHAT_ID", ""),
		KafkaBrokers:        envString("KAFKA_BROKERS", ""),
		KafkaTopic:          envString("OPPORTUNITY_KAFKA_TOPIC", "arb.opportunities"),
		MockMode:            envBool("MOCK_MODE", true),
	}
}

// Validate reports unrecoverable configuration errors. Called once at startup;
// anything it rejects would otherwise fail deep inside a cycle.
func (c Config) Validate() error {
	if !c.MockMode && strings.TrimSpace(c.EmbedAPIKey) == "" {
		return fmt.Errorf("config: NEBIUS_API_KEY is required when MOCK_MODE is disabled")
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("config: SIMILARITY_THRESHOLD %.4f outside (0,1]", c.SimilarityThreshold)
	}
	if c.MinProfitMargin < 0 {
		return fmt.Errorf("config: MIN_PROFIT_MARGIN must not be negative")
	}
	if c.PositionSizeUSD <= 0 {
		return fmt.Errorf("config: POSITION_SIZE_USD must be positive")
	}
	if c.ScanInterval <= 0 {
		return fmt.Errorf("config: SCAN_INTERVAL must be positive")
	}
	return nil
}

func envString(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func envInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		return strings.EqualFold(val, "true") || val == "1"
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return def
}
