// Package main runs the price registry service:
// - HTTP API over the registry (roles, fiat prices, commissions, reports)
// - WebSocket stream of committed events
// - Price history recorder (ClickHouse, optional)
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"price-registry/internal/api"
	"price-registry/internal/config"
	"price-registry/internal/history"
	"price-registry/internal/logging"
	"price-registry/internal/registry"
	"price-registry/internal/spot"
	"price-registry/internal/spot/evm"
	"price-registry/internal/spot/stub"
	"price-registry/internal/storage"
	chstore "price-registry/internal/storage/clickhouse"
	"price-registry/internal/storage/memory"
	"price-registry/internal/storage/migrations"
	pgstore "price-registry/internal/storage/postgres"
)

// spotBackend answers both quotes and asset info.
type spotBackend interface {
	spot.Source
	spot.AssetInfo
}

// stores holds the storage implementations.
type stores struct {
	registry storage.RegistryStore
	history  storage.PriceHistoryStore // nil disables history
}

func main() {
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	logger, err := logging.New(cfg.LogLevel, logging.Format(cfg.LogFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	boot, err := config.LoadBootstrap(cfg.BootstrapFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	done := make(chan struct{})
	defer close(done)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, initiating graceful shutdown", zap.Stringer("signal", sig))
			cancel()
		case <-done:
			return
		}

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing immediate shutdown", zap.Stringer("signal", sig))
			os.Exit(1)
		case <-time.After(cfg.ShutdownTimeout + 5*time.Second):
			logger.Error("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	st, cleanupStores, err := createStores(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("create stores: %w", err)
	}
	defer cleanupStores()

	src, cleanupSpot, err := createSpot(ctx, cfg, boot, logger)
	if err != nil {
		return fmt.Errorf("create spot source: %w", err)
	}
	defer cleanupSpot()

	hub := api.NewHub(nil, logger)
	notifier := registry.Multi{hub}

	var recorder *history.Recorder
	if st.history != nil {
		recorder = history.NewRecorder(history.RecorderOptions{
			Store:         st.history,
			BatchSize:     cfg.HistoryBatchSize,
			FlushInterval: cfg.HistoryFlushInterval,
			Logger:        logger,
		})
		notifier = append(notifier, recorder)
	}

	reg, err := registry.Open(ctx, registry.Options{
		Store:     st.registry,
		Spot:      src,
		Reference: boot.Spot.Reference,
		Bootstrap: boot.Registry(),
		Notifier:  notifier,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}

	srv := api.NewServer(api.Options{
		Registry:       reg,
		History:        st.history,
		Assets:         src,
		Hub:            hub,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
	})
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info("starting HTTP server", zap.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	recorderDone := make(chan struct{})
	if recorder != nil {
		go func() {
			defer close(recorderDone)
			if err := recorder.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("history recorder: %w", err)
			}
		}()
	} else {
		close(recorderDone)
	}

	// Wait for context cancellation or error
	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case runErr = <-errCh:
		cancel()
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	hub.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	select {
	case <-recorderDone:
	case <-shutdownCtx.Done():
		logger.Warn("history recorder did not drain before shutdown timeout")
	}

	return runErr
}

// createStores creates the registry and history stores.
func createStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, func(), error) {
	if cfg.UseMemory {
		logger.Info("using in-memory storage")
		return &stores{
			registry: memory.NewRegistryStore(),
			history:  memory.NewPriceHistoryStore(),
		}, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if cfg.Migrate {
		if _, err := migrations.RunPostgresMigrations(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}

	st := &stores{registry: pgstore.NewRegistryStore(pool)}
	if cfg.ClickHouseDSN == "" {
		logger.Info("clickhouse dsn not set, price history disabled")
		return st, pool.Close, nil
	}

	// ClickHouse
	var chConn *chstore.Conn
	if cfg.Migrate {
		chConn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN, logger)
	} else {
		chConn, err = chstore.NewConn(ctx, cfg.ClickHouseDSN)
	}
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	st.history = chstore.NewPriceHistoryStore(chConn)

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return st, cleanup, nil
}

// createSpot dials the EVM router when an RPC endpoint is configured and
// otherwise serves the static quotes of the bootstrap file.
func createSpot(ctx context.Context, cfg *config.Config, boot *config.Bootstrap, logger *zap.Logger) (spotBackend, func(), error) {
	if cfg.EVMRPC != "" {
		if boot.Spot.Router == "" {
			return nil, nil, errors.New("spot.router is required with --evm-rpc")
		}
		client, closeFn, err := evm.Dial(ctx, cfg.EVMRPC, evm.Options{
			Router:  common.HexToAddress(boot.Spot.Router),
			Aliases: boot.Spot.Aliases,
			Logger:  logger,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using EVM spot source", zap.String("router", boot.Spot.Router))
		return client, closeFn, nil
	}

	src := stub.New(nil)
	for asset, v := range boot.Spot.Quotes {
		src.SetQuote(asset, boot.Spot.Reference, v)
	}
	logger.Info("using static spot source", zap.Int("quotes", len(boot.Spot.Quotes)))
	return src, func() {}, nil
}
