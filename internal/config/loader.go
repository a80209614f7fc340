package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BOOKWATCH_* environment variable overrides, and
// returns the final Config. A missing file is not an error: the daemon runs
// fine on defaults plus env vars. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BOOKWATCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators tweak deployments without touching the
// TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Feed ──
	setStr(&cfg.Feed.Venue, "BOOKWATCH_FEED_VENUE")
	setStr(&cfg.Feed.Symbol, "BOOKWATCH_FEED_SYMBOL")

	// ── Venue overrides ──
	for _, name := range []string{"okx", "bybit", "deribit"} {
		prefix := "BOOKWATCH_VENUES_" + strings.ToUpper(name) + "_"
		vc := cfg.Venues[name]
		setStr(&vc.WSURL, prefix+"WS_URL")
		setDuration(&vc.ReconnectInterval, prefix+"RECONNECT_INTERVAL")
		setInt(&vc.MaxReconnectAttempts, prefix+"MAX_RECONNECT_ATTEMPTS")
		setDuration(&vc.ConnectTimeout, prefix+"CONNECT_TIMEOUT")
		if vc != (VenueConfig{}) {
			if cfg.Venues == nil {
				cfg.Venues = map[string]VenueConfig{}
			}
			cfg.Venues[name] = vc
		}
	}

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "BOOKWATCH_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "BOOKWATCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BOOKWATCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BOOKWATCH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BOOKWATCH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BOOKWATCH_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BOOKWATCH_REDIS_TLS_ENABLED")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "BOOKWATCH_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "BOOKWATCH_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "BOOKWATCH_SERVER_CORS_ORIGINS")

	// ── Sim ──
	setInt(&cfg.Sim.MaxTrackedOrders, "BOOKWATCH_SIM_MAX_TRACKED_ORDERS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "BOOKWATCH_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
