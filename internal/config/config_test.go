package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.SimilarityThreshold != 0.85 {
		t.Errorf("SimilarityThreshold = %v, want 0.85", cfg.SimilarityThreshold)
	}
	if cfg.MinProfitMargin != 0.02 {
		t.Errorf("MinProfitMargin = %v, want 0.02", cfg.MinProfitMargin)
	}
	if cfg.KalshiFeePercent != 0.007 {
		t.Errorf("KalshiFeePercent = %v, want 0.007", cfg.KalshiFeePercent)
	}
	if cfg.PositionSizeUSD != 100 {
		t.Errorf("PositionSizeUSD = %v, want 100", cfg.PositionSizeUSD)
	}
	if cfg.ScanInterval != 5*time.Minute {
		t.Errorf("ScanInterval = %v, want 5m", cfg.ScanInterval)
	}
	if cfg.SQLitePath != "data/matches.db" {
		t.Errorf("SQLitePath = %q", cfg.SQLitePath)
	}
	if cfg.AlertMethod != "console" {
		t.Errorf("AlertMethod = %q, want console", cfg.AlertMethod)
	}
	if cfg.KafkaTopic != "arb.opportunities" {
		t.Errorf("KafkaTopic = %q", cfg.KafkaTopic)
	}
	if !cfg.MockMode {
		t.Error("MockMode should default to true")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SIMILARITY_THRESHOLD", "0.9")
	t.Setenv("MIN_PROFIT_MARGIN", "0.05")
	t.Setenv("SCAN_INTERVAL", "30s")
	t.Setenv("MOCK_MODE", "false")
	t.Setenv("ALERT_METHOD", "discord")
	t.Setenv("REDIS_DB", "3")

	cfg := Load()
	if cfg.SimilarityThreshold != 0.9 {
		t.Errorf("SimilarityThreshold = %v, want 0.9", cfg.SimilarityThreshold)
	}
	if cfg.MinProfitMargin != 0.05 {
		t.Errorf("MinProfitMargin = %v, want 0.05", cfg.MinProfitMargin)
	}
	if cfg.ScanInterval != 30*time.Second {
		t.Errorf("ScanInterval = %v, want 30s", cfg.ScanInterval)
	}
	if cfg.MockMode {
		t.Error("MOCK_MODE=false not honored")
	}
	if cfg.AlertMethod != "discord" {
		t.Errorf("AlertMethod = %q", cfg.AlertMethod)
	}
	if cfg.RedisDB != 3 {
		t.Errorf("RedisDB = %d, want 3", cfg.RedisDB)
	}
}

func TestLoadMalformedValuesFallBack(t *testing.T) {
	t.Setenv("SIMILARITY_THRESHOLD", "not-a-number")
	t.Setenv("SCAN_INTERVAL", "five minutes")
	t.Setenv("REDIS_DB", "abc")

	cfg := Load()
	if cfg.SimilarityThreshold != 0.85 {
		t.Errorf("malformed float should fall back, got %v", cfg.SimilarityThreshold)
	}
	if cfg.ScanInterval != 5*time.Minute {
		t.Errorf("malformed duration should fall back, got %v", cfg.ScanInterval)
	}
	if cfg.RedisDB != 0 {
		t.Errorf("malformed int should fall back, got %d", cfg.RedisDB)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			SimilarityThreshold: 0.85,
			MinProfitMargin:     0.02,
			PositionSizeUSD:     100,
			ScanInterval:        time.Minute,
			MockMode:            true,
		}
	}

	if err := base().Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing api key in live mode", func(c *Config) { c.MockMode = false }},
		{"threshold zero", func(c *Config) { c.SimilarityThreshold = 0 }},
		{"threshold above one", func(c *Config) { c.SimilarityThreshold = 1.5 }},
		{"negative profit margin", func(c *Config) { c.MinProfitMargin = -0.01 }},
		{"zero position size", func(c *Config) { c.PositionSizeUSD = 0 }},
		{"zero interval", func(c *Config) { c.ScanInterval = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	live := base()
	live.MockMode = false
	live.EmbedAPIKey = "key"
	if err := live.Validate(); err != nil {
		t.Errorf("live config with api key rejected: %v", err)
	}
}

func TestValidateThresholdOfExactlyOne(t *testing.T) {
	cfg := Config{
		SimilarityThreshold: 1.0,
		MinProfitMargin:     0.02,
		PositionSizeUSD:     100,
		ScanInterval:        time.Minute,
		MockMode:            true,
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("threshold 1.0 is inside (0,1], got %v", err)
	}
}
