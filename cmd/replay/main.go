// The replay binary re-runs a JSONL dump of decoded events through the
// same reduction engine as live ingestion. Because every reduction is
// idempotent, replaying over an existing database is safe.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"domain-market-indexer/internal/config"
	"domain-market-indexer/internal/dispatch"
	"domain-market-indexer/internal/domain"
	"domain-market-indexer/internal/feed"
	"domain-market-indexer/internal/logging"
	"domain-market-indexer/internal/reduce"
	"domain-market-indexer/internal/storage"
	chstore "domain-market-indexer/internal/storage/clickhouse"
	"domain-market-indexer/internal/storage/memory"
	"domain-market-indexer/internal/storage/migrations"
	pgstore "domain-market-indexer/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML configuration file")
	eventsPath := flag.String("events", "", "Path to JSONL event dump")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	flag.Parse()

	if err := run(*configPath, *eventsPath, *useMemory); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, eventsPath string, useMemory bool) error {
	if eventsPath == "" {
		return fmt.Errorf("-events is required")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !useMemory && cfg.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required without -use-memory")
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sink storage.SnapshotSink
	if cfg.ClickHouse.DSN != "" {
		var conn *chstore.Conn
		if cfg.ClickHouse.RunMigrations {
			conn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickHouse.DSN)
		} else {
			conn, err = chstore.NewConn(ctx, cfg.ClickHouse.DSN)
		}
		if err != nil {
			return fmt.Errorf("connect clickhouse: %w", err)
		}
		defer conn.Close()
		sink = chstore.NewSnapshotSink(conn)
	}

	var db storage.DB
	if useMemory {
		db = memory.New(sink)
	} else {
		pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		if cfg.Postgres.RunMigrations {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				return fmt.Errorf("run postgres migrations: %w", err)
			}
		}
		db = pgstore.NewDB(pool, sink)
	}

	reducers := reduce.New(log, reduce.WithBorrowAPRBps(cfg.Reduce.BorrowAPRBps))
	dispatcher := dispatch.New(log, db, reducers, nil)

	// Replay applies synchronously: file order is delivery order, and a
	// storage failure should stop the run at the failing line.
	replayCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var applied int
	var applyErr error
	fileFeed := feed.NewFileFeed(eventsPath, log)
	err = fileFeed.Run(replayCtx, func(ctx context.Context, ev *domain.Event) {
		if applyErr != nil {
			return
		}
		if applyErr = dispatcher.Apply(ctx, ev); applyErr != nil {
			cancel()
			return
		}
		applied++
	})
	if applyErr != nil {
		return fmt.Errorf("replay aborted after %d events: %w", applied, applyErr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("replay complete", zap.Int("events", applied))
	return nil
}
