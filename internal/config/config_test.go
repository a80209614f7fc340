package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Feed.Venue != "okx" || cfg.Feed.Symbol != "BTC-USDT" {
		t.Fatalf("feed defaults = %s %s", cfg.Feed.Venue, cfg.Feed.Symbol)
	}
	if cfg.Redis.Enabled {
		t.Fatal("redis should default to disabled")
	}
	if cfg.Server.Port != 8000 {
		t.Fatalf("server port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("log level = %s, want info", cfg.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("load with missing file failed: %v", err)
	}
	if cfg.Feed.Venue != "okx" {
		t.Fatalf("venue = %s, want okx", cfg.Feed.Venue)
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
log_level = "debug"

[feed]
venue = "deribit"
symbol = "BTC-PERPETUAL"

[venues.deribit]
reconnect_interval = "2s"
max_reconnect_attempts = 9

[redis]
enabled = true
addr = "redis:6379"

[server]
port = 9000
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Feed.Venue != "deribit" || cfg.Feed.Symbol != "BTC-PERPETUAL" {
		t.Fatalf("feed = %s %s", cfg.Feed.Venue, cfg.Feed.Symbol)
	}
	vc := cfg.Venues["deribit"]
	if vc.ReconnectInterval.Duration != 2*time.Second || vc.MaxReconnectAttempts != 9 {
		t.Fatalf("venue override = %+v", vc)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "redis:6379" {
		t.Fatalf("redis = %+v", cfg.Redis)
	}
	if cfg.Server.Port != 9000 {
		t.Fatalf("port = %d, want 9000", cfg.Server.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config must validate: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BOOKWATCH_FEED_VENUE", "bybit")
	t.Setenv("BOOKWATCH_FEED_SYMBOL", "ETHUSDT")
	t.Setenv("BOOKWATCH_LOG_LEVEL", "warn")
	t.Setenv("BOOKWATCH_SERVER_PORT", "8081")
	t.Setenv("BOOKWATCH_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("BOOKWATCH_VENUES_BYBIT_CONNECT_TIMEOUT", "3s")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Feed.Venue != "bybit" || cfg.Feed.Symbol != "ETHUSDT" {
		t.Fatalf("feed = %s %s", cfg.Feed.Venue, cfg.Feed.Symbol)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("log level = %s, want warn", cfg.LogLevel)
	}
	if cfg.Server.Port != 8081 {
		t.Fatalf("port = %d, want 8081", cfg.Server.Port)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("cors = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Venues["bybit"].ConnectTimeout.Duration != 3*time.Second {
		t.Fatalf("connect timeout = %s", cfg.Venues["bybit"].ConnectTimeout)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"bad venue", func(c *Config) { c.Feed.Venue = "nasdaq" }},
		{"empty symbol", func(c *Config) { c.Feed.Symbol = " " }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"zero tracked orders", func(c *Config) { c.Sim.MaxTrackedOrders = 0 }},
		{"redis enabled without addr", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }},
		{"unknown venue override", func(c *Config) { c.Venues = map[string]VenueConfig{"nyse": {}} }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
