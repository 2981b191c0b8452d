// Command migrate applies or lists the registry (PostgreSQL) and price
// history (ClickHouse) schema migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"price-registry/internal/config"
	"price-registry/internal/logging"
	chstore "price-registry/internal/storage/clickhouse"
	"price-registry/internal/storage/migrations"
	pgstore "price-registry/internal/storage/postgres"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	// Parse flags
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string (env: POSTGRES_DSN)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (env: CLICKHOUSE_DSN)")
	status := flag.Bool("status", false, "List migrations and whether they are applied instead of applying them")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	if *postgresDSN == "" && *clickhouseDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: at least one of --postgres-dsn and --clickhouse-dsn is required")
		os.Exit(2)
	}

	logger, err := logging.New(*logLevel, logging.FormatConsole)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *postgresDSN != "" {
		if err := migratePostgres(ctx, *postgresDSN, *status, logger); err != nil {
			logger.Fatal("postgres migrations", zap.Error(err))
		}
	}
	if *clickhouseDSN != "" {
		if err := migrateClickhouse(ctx, *clickhouseDSN, *status, logger); err != nil {
			logger.Fatal("clickhouse migrations", zap.Error(err))
		}
	}
}

func migratePostgres(ctx context.Context, dsn string, status bool, logger *zap.Logger) error {
	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if status {
		st, err := migrations.PostgresStatus(ctx, pool)
		if err != nil {
			return err
		}
		printStatus("postgres", st)
		return nil
	}

	applied, err := migrations.RunPostgresMigrations(ctx, pool, logger)
	if err != nil {
		return err
	}
	logger.Info("postgres schema up to date", zap.Int("applied", len(applied)))
	return nil
}

func migrateClickhouse(ctx context.Context, dsn string, status bool, logger *zap.Logger) error {
	if status {
		conn, err := chstore.NewConn(ctx, dsn)
		if err != nil {
			return fmt.Errorf("connect to clickhouse: %w", err)
		}
		defer conn.Close()

		st, err := migrations.ClickhouseStatus(ctx, conn)
		if err != nil {
			return err
		}
		printStatus("clickhouse", st)
		return nil
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, dsn, logger)
	if err != nil {
		return err
	}
	logger.Info("clickhouse schema up to date")
	return conn.Close()
}

func printStatus(database string, st []migrations.Status) {
	for _, s := range st {
		state := "pending"
		if s.Applied {
			state = "applied"
		}
		fmt.Printf("%-10s %-32s %s\n", database, s.Version, state)
	}
}
