// Package config defines the top-level configuration for the bookwatch
// daemon and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/depthlab/bookwatch/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by BOOKWATCH_* environment
// variables.
type Config struct {
	Feed     FeedConfig             `toml:"feed"`
	Venues   map[string]VenueConfig `toml:"venues"`
	Redis    RedisConfig            `toml:"redis"`
	Server   ServerConfig           `toml:"server"`
	Sim      SimConfig              `toml:"sim"`
	LogLevel string                 `toml:"log_level"`
}

// FeedConfig holds the default venue and symbols subscribed on startup.
type FeedConfig struct {
	// Venue is the venue connected on startup.
	Venue string `toml:"venue"`
	// Symbol is the instrument subscribed on startup, in the venue's native
	// notation (e.g. "BTC-USDT" on OKX, "BTCUSDT" on Bybit).
	Symbol string `toml:"symbol"`
}

// VenueConfig overrides connection parameters for a single venue. The zero
// value means "use the built-in defaults for this venue".
type VenueConfig struct {
	WSURL                string   `toml:"ws_url"`
	ReconnectInterval    duration `toml:"reconnect_interval"`
	MaxReconnectAttempts int      `toml:"max_reconnect_attempts"`
	ConnectTimeout       duration `toml:"connect_timeout"`
}

// RedisConfig holds Redis connection parameters. The mirror is optional;
// when disabled the in-memory store is the only book source.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// SimConfig holds simulation registry parameters.
type SimConfig struct {
	// MaxTrackedOrders caps the number of simulated orders the registry
	// holds at once.
	MaxTrackedOrders int `toml:"max_tracked_orders"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5s", "250ms").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5s" or "1m".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Feed: FeedConfig{
			Venue:  "okx",
			Symbol: "BTC-USDT",
		},
		Venues: map[string]VenueConfig{},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Sim: SimConfig{
			MaxTrackedOrders: 256,
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Feed
	if !domain.VenueID(c.Feed.Venue).Valid() {
		errs = append(errs, fmt.Sprintf("feed: unknown venue %q (valid: okx, bybit, deribit)", c.Feed.Venue))
	}
	if strings.TrimSpace(c.Feed.Symbol) == "" {
		errs = append(errs, "feed: symbol must not be empty")
	}

	// Venue overrides
	for name, vc := range c.Venues {
		if !domain.VenueID(name).Valid() {
			errs = append(errs, fmt.Sprintf("venues: unknown venue %q", name))
			continue
		}
		if vc.ReconnectInterval.Duration < 0 {
			errs = append(errs, fmt.Sprintf("venues.%s: reconnect_interval must not be negative", name))
		}
		if vc.MaxReconnectAttempts < 0 {
			errs = append(errs, fmt.Sprintf("venues.%s: max_reconnect_attempts must not be negative", name))
		}
		if vc.ConnectTimeout.Duration < 0 {
			errs = append(errs, fmt.Sprintf("venues.%s: connect_timeout must not be negative", name))
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	// Sim
	if c.Sim.MaxTrackedOrders < 1 {
		errs = append(errs, "sim: max_tracked_orders must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
