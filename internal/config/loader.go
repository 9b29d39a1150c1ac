package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies INDEXER_* environment variable overrides,
// and returns the final Config. An empty path skips the file and uses
// defaults plus environment. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known INDEXER_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
// This lets operators inject credentials at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Postgres.DSN, "INDEXER_POSTGRES_DSN")
	setBool(&cfg.Postgres.RunMigrations, "INDEXER_POSTGRES_RUN_MIGRATIONS")

	setStr(&cfg.ClickHouse.DSN, "INDEXER_CLICKHOUSE_DSN")
	setBool(&cfg.ClickHouse.RunMigrations, "INDEXER_CLICKHOUSE_RUN_MIGRATIONS")

	setStr(&cfg.Feed.URL, "INDEXER_FEED_URL")
	setDuration(&cfg.Feed.ReconnectDelay, "INDEXER_FEED_RECONNECT_DELAY")
	setDuration(&cfg.Feed.MaxReconnectDelay, "INDEXER_FEED_MAX_RECONNECT_DELAY")
	setDuration(&cfg.Feed.PingInterval, "INDEXER_FEED_PING_INTERVAL")

	setUint32(&cfg.Reduce.BorrowAPRBps, "INDEXER_REDUCE_BORROW_APR_BPS")

	setBool(&cfg.Metrics.Enabled, "INDEXER_METRICS_ENABLED")
	setStr(&cfg.Metrics.Addr, "INDEXER_METRICS_ADDR")

	setStr(&cfg.LogLevel, "INDEXER_LOG_LEVEL")
	setStr(&cfg.LogEncoding, "INDEXER_LOG_ENCODING")
}

// Typed env-var helpers. Each only mutates the target when the
// environment variable is present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setUint32(dst *uint32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			*dst = uint32(n)
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
