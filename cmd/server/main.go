// Package main runs the full chart pipeline: feed stream → swap decode →
// candle aggregation, with the query API and optional persistence fan-out.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dexcharts/internal/candles"
	"dexcharts/internal/config"
	"dexcharts/internal/decode"
	"dexcharts/internal/observability"
	"dexcharts/internal/orchestrator"
	"dexcharts/internal/publish"
	"dexcharts/internal/server"
	"dexcharts/internal/solana"
	"dexcharts/internal/storage"
	chstore "dexcharts/internal/storage/clickhouse"
	"dexcharts/internal/storage/migrations"
	pgstore "dexcharts/internal/storage/postgres"
)

func main() {
	cfg := config.Load()

	// Flags default to the env config, so either works.
	feedEndpoint := flag.String("feed-endpoint", cfg.FeedEndpoint, "WebSocket feed endpoint")
	apiAddr := flag.String("api-addr", cfg.APIAddr, "Chart API HTTP address")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "Prometheus metrics HTTP address (empty to disable)")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickHouseDSN, "ClickHouse DSN (empty disables candle persistence)")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL DSN (empty disables the pair registry)")
	redisAddr := flag.String("redis-addr", cfg.RedisAddr, "Redis address (empty disables event publishing)")
	flag.Parse()

	cfg.FeedEndpoint = *feedEndpoint
	cfg.APIAddr = *apiAddr
	cfg.MetricsAddr = *metricsAddr
	cfg.ClickHouseDSN = *clickhouseDSN
	cfg.PostgresDSN = *postgresDSN
	cfg.RedisAddr = *redisAddr

	logger := log.New(os.Stdout, "", log.LstdFlags|log.Lshortfile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics("dexcharts")

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("[main] metrics server on %s", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("[main] metrics server error: %v", err)
			}
		}()
	}

	registry := decode.DefaultRegistry(cfg.Exponents)

	aggregator := candles.New(candles.Options{
		Timeframes: cfg.Timeframes,
		HistoryCap: cfg.HistoryCap,
		Logger:     logger,
	})
	aggregator.Subscribe(observability.NewCandleRecorder(metrics, aggregator))

	// Persistence fan-out is optional: each sink is wired only when its
	// DSN/addr is configured. Subscribers must be registered before the
	// orchestrator starts feeding trades.
	var (
		writer      *storage.Writer
		snapshotter *storage.Snapshotter
		publisher   *publish.Publisher
	)

	if cfg.ClickHouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.ClickHouseDSN)
		if err != nil {
			logger.Fatalf("[main] connect to clickhouse: %v", err)
		}
		defer conn.Close()

		if err := migrations.RunClickhouse(ctx, conn); err != nil {
			logger.Fatalf("[main] clickhouse migrations: %v", err)
		}

		writer = storage.NewWriter(storage.WriterOptions{
			Sink:    chstore.NewCandleSink(conn),
			Metrics: metrics,
			Logger:  logger,
		})
		writer.Start()
		defer writer.Close()
		aggregator.Subscribe(writer)
		logger.Printf("[main] candle persistence enabled")
	}

	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatalf("[main] connect to postgres: %v", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgres(ctx, pool); err != nil {
			logger.Fatalf("[main] postgres migrations: %v", err)
		}

		snapshotter = storage.NewSnapshotter(storage.SnapshotterOptions{
			Aggregator: aggregator,
			Store:      pgstore.NewPairStore(pool),
			Logger:     logger,
		})
		snapshotter.Start()
		defer snapshotter.Close()
		logger.Printf("[main] pair registry persistence enabled")
	}

	if cfg.RedisAddr != "" {
		publisher = publish.New(publish.Options{
			Addr:    cfg.RedisAddr,
			Metrics: metrics,
			Logger:  logger,
		})
		publisher.Start()
		defer publisher.Close()
		aggregator.Subscribe(publisher)
		logger.Printf("[main] redis publishing enabled")
	}

	programs := cfg.Programs
	if len(programs) == 0 {
		programs = registry.Programs()
	}
	logger.Printf("[main] subscribing to programs: %v", programs)

	stream := solana.NewStreamClient(solana.StreamConfig{
		Endpoint:             cfg.FeedEndpoint,
		AuthToken:            cfg.FeedAuthToken,
		Programs:             programs,
		BackoffBase:          cfg.BackoffBase,
		BackoffCap:           cfg.BackoffCap,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		Metrics:              metrics,
		Logger:               logger,
	})

	orch := orchestrator.New(orchestrator.Options{
		Stream:     stream,
		Registry:   registry,
		Aggregator: aggregator,
		Enabled:    cfg.StreamEnabled,
		Metrics:    metrics,
		Logger:     logger,
	})
	if err := orch.Start(ctx); err != nil {
		logger.Fatalf("[main] start pipeline: %v", err)
	}

	api := server.New(&server.Handlers{
		Aggregator:   aggregator,
		Orchestrator: orch,
	}, server.Config{Addr: cfg.APIAddr, Metrics: metrics})

	apiErr := make(chan error, 1)
	go func() {
		logger.Printf("[main] api server on %s", cfg.APIAddr)
		apiErr <- api.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Printf("[main] received signal %v, shutting down", sig)
	case err := <-apiErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("[main] api server error: %v", err)
		}
	}

	// Second signal forces immediate exit.
	go func() {
		select {
		case sig := <-sigCh:
			logger.Printf("[main] received second signal %v, forcing exit", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("[main] graceful shutdown timed out, forcing exit")
			os.Exit(1)
		}
	}()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		logger.Printf("[main] api shutdown: %v", err)
	}

	orch.Stop()
	cancel()

	logger.Println("[main] shutdown complete")
}
