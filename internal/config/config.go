// Package config loads process configuration: flags with environment
// defaults, an optional .env file, and the YAML bootstrap file that seeds a
// fresh registry.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the server settings.
type Config struct {
	ListenAddr     string
	PostgresDSN    string
	ClickHouseDSN  string
	UseMemory      bool
	Migrate        bool
	BootstrapFile  string
	EVMRPC         string
	LogLevel       string
	LogFormat      string
	AllowedOrigins []string

	HistoryBatchSize     int
	HistoryFlushInterval time.Duration
	ShutdownTimeout      time.Duration
}

// LoadEnv loads the given .env files (".env" when none) into the process
// environment. Missing files are ignored and existing variables win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Parse reads flags from args. Every flag defaults to its environment
// variable.
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("price-registry", flag.ContinueOnError)

	cfg := &Config{}
	var origins string

	fs.StringVar(&cfg.ListenAddr, "listen-addr", envOr("LISTEN_ADDR", ":8080"), "HTTP listen address")
	fs.StringVar(&cfg.PostgresDSN, "postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	fs.StringVar(&cfg.ClickHouseDSN, "clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional, enables price history)")
	fs.BoolVar(&cfg.UseMemory, "use-memory", envBool("USE_MEMORY"), "Use in-memory storage instead of PostgreSQL/ClickHouse")
	fs.BoolVar(&cfg.Migrate, "migrate", envBool("MIGRATE"), "Apply pending migrations on startup")
	fs.StringVar(&cfg.BootstrapFile, "bootstrap", envOr("BOOTSTRAP_FILE", "bootstrap.yaml"), "YAML bootstrap file")
	fs.StringVar(&cfg.EVMRPC, "evm-rpc", os.Getenv("EVM_RPC_URL"), "EVM JSON-RPC endpoint for spot quotes (empty uses the static stub)")
	fs.StringVar(&cfg.LogLevel, "log-level", envOr("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", envOr("LOG_FORMAT", "json"), "Log format (json, console)")
	fs.StringVar(&origins, "allowed-origins", envOr("ALLOWED_ORIGINS", "*"), "Comma-separated CORS origins")
	fs.IntVar(&cfg.HistoryBatchSize, "history-batch-size", envInt("HISTORY_BATCH_SIZE", 256), "Price history batch size")
	fs.DurationVar(&cfg.HistoryFlushInterval, "history-flush-interval", envDuration("HISTORY_FLUSH_INTERVAL", time.Second), "Price history flush interval")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", envDuration("SHUTDOWN_TIMEOUT", 15*time.Second), "Graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.AllowedOrigins = splitList(origins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks flag combinations.
func (c *Config) Validate() error {
	if !c.UseMemory && c.PostgresDSN == "" {
		return errors.New("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}
	if c.BootstrapFile == "" {
		return errors.New("--bootstrap is required")
	}
	if c.HistoryBatchSize <= 0 {
		return fmt.Errorf("--history-batch-size must be positive, got %d", c.HistoryBatchSize)
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
