// Package config defines the indexer configuration and validation
// helpers.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration structure. Fields are populated from
// a TOML file and then optionally overridden by INDEXER_* environment
// variables.
type Config struct {
	Postgres    PostgresConfig   `toml:"postgres"`
	ClickHouse  ClickHouseConfig `toml:"clickhouse"`
	Feed        FeedConfig       `toml:"feed"`
	Reduce      ReduceConfig     `toml:"reduce"`
	Metrics     MetricsConfig    `toml:"metrics"`
	LogLevel    string           `toml:"log_level"`
	LogEncoding string           `toml:"log_encoding"`
}

// PostgresConfig holds the entity store connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	RunMigrations bool   `toml:"run_migrations"`
}

// ClickHouseConfig holds the snapshot store connection parameters.
// Snapshots are optional; an empty DSN disables them.
type ClickHouseConfig struct {
	DSN           string `toml:"dsn"`
	RunMigrations bool   `toml:"run_migrations"`
}

// FeedConfig holds the decoded-event websocket feed parameters.
type FeedConfig struct {
	URL               string   `toml:"url"`
	ReconnectDelay    duration `toml:"reconnect_delay"`
	MaxReconnectDelay duration `toml:"max_reconnect_delay"`
	PingInterval      duration `toml:"ping_interval"`
}

// ReduceConfig tunes reduction behavior.
type ReduceConfig struct {
	BorrowAPRBps uint32 `toml:"borrow_apr_bps"`
}

// MetricsConfig holds the Prometheus endpoint parameters.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// duration wraps time.Duration for TOML parsing of strings like "5s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			RunMigrations: true,
		},
		ClickHouse: ClickHouseConfig{
			RunMigrations: true,
		},
		Feed: FeedConfig{
			ReconnectDelay:    duration{time.Second},
			MaxReconnectDelay: duration{30 * time.Second},
			PingInterval:      duration{15 * time.Second},
		},
		Reduce: ReduceConfig{
			BorrowAPRBps: 800,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9091",
		},
		LogLevel:    "info",
		LogEncoding: "json",
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required")
	}
	if c.Feed.ReconnectDelay.Duration <= 0 {
		return fmt.Errorf("feed.reconnect_delay must be positive")
	}
	if c.Feed.MaxReconnectDelay.Duration < c.Feed.ReconnectDelay.Duration {
		return fmt.Errorf("feed.max_reconnect_delay must be at least feed.reconnect_delay")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}
	return nil
}
