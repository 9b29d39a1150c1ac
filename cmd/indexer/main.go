// The indexer binary runs live ingestion: it tails the decoded-event
// websocket feed and maintains the relational read model.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"domain-market-indexer/internal/config"
	"domain-market-indexer/internal/dispatch"
	"domain-market-indexer/internal/feed"
	"domain-market-indexer/internal/logging"
	"domain-market-indexer/internal/observability"
	"domain-market-indexer/internal/reduce"
	"domain-market-indexer/internal/storage"
	chstore "domain-market-indexer/internal/storage/clickhouse"
	"domain-market-indexer/internal/storage/memory"
	"domain-market-indexer/internal/storage/migrations"
	pgstore "domain-market-indexer/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML configuration file")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	flag.Parse()

	if err := run(*configPath, *useMemory); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "indexer: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, useMemory bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !useMemory {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
	}
	if cfg.Feed.URL == "" {
		return fmt.Errorf("feed.url is required")
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("shutting down", zap.String("signal", sig.String()))
		cancel()
		<-sigCh
		log.Warn("second signal, forcing exit")
		os.Exit(1)
	}()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics("")
	}

	// Snapshot sink is optional, driven by the ClickHouse DSN.
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
		log.Info("snapshot sink enabled")
	}

	var db storage.DB
	if useMemory {
		db = memory.New(sink)
		log.Info("using in-memory storage")
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
	dispatcher := dispatch.New(log, db, reducers, metrics)
	defer dispatcher.Close()

	wsFeed := feed.NewWSFeed(cfg.Feed.URL, feedConfig(cfg), log, metrics)

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return serveMetrics(gctx, log, cfg.Metrics.Addr)
		})
	}
	g.Go(func() error {
		log.Info("starting ingestion", zap.String("feed", cfg.Feed.URL))
		return wsFeed.Run(gctx, dispatcher.Dispatch)
	})
	return g.Wait()
}

func feedConfig(cfg *config.Config) feed.WSConfig {
	wsCfg := feed.DefaultWSConfig()
	if d := cfg.Feed.ReconnectDelay.Duration; d > 0 {
		wsCfg.ReconnectDelay = d
	}
	if d := cfg.Feed.MaxReconnectDelay.Duration; d > 0 {
		wsCfg.MaxReconnectDelay = d
	}
	if d := cfg.Feed.PingInterval.Duration; d > 0 {
		wsCfg.PingInterval = d
	}
	return wsCfg
}

func serveMetrics(ctx context.Context, log *zap.Logger, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("starting metrics server", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
