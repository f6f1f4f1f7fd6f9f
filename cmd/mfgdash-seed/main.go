package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mfgdash/mfgdash/internal/config"
	"github.com/mfgdash/mfgdash/internal/demo/seed"
	"github.com/mfgdash/mfgdash/internal/observability"
	"github.com/mfgdash/mfgdash/internal/warehouse"
)

func main() {
	defaults := seed.DefaultConfig()
	seedValue := flag.Int64("seed", defaults.Seed, "random seed for the fixture")
	lines := flag.Int("lines", defaults.Lines, "number of production lines")
	logsPerLine := flag.Int("logs-per-line", defaults.LogsPerLine, "machine log entries per line")
	incidents := flag.Int("incidents", defaults.Incidents, "number of failure incidents")
	flag.Parse()

	envFile := strings.TrimSpace(os.Getenv("MFGDASH_ENV_FILE"))
	if envFile == "" {
		envFile = ".env"
	}
	lookup, err := config.DotEnvLookup(envFile, os.LookupEnv)
	if err != nil {
		slog.Error("failed to read env file", slog.Any("error", err))
		os.Exit(1)
	}
	cfg, err := config.Load("mfgdash-seed", lookup)
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	connector, err := warehouse.NewConnector(cfg.Warehouse)
	if err != nil {
		logger.Error("failed to configure warehouse", slog.Any("error", err))
		os.Exit(1)
	}
	dialect, err := warehouse.DialectFor(cfg.Warehouse.Driver)
	if err != nil {
		logger.Error("failed to configure warehouse", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := connector.Open(ctx)
	if err != nil {
		logger.Error("failed to connect to warehouse", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	fixtureCfg := defaults
	fixtureCfg.Seed = *seedValue
	fixtureCfg.Lines = *lines
	fixtureCfg.LogsPerLine = *logsPerLine
	fixtureCfg.Incidents = *incidents
	fixture := seed.Generate(fixtureCfg)

	if err := seed.Load(ctx, db, dialect, cfg.Warehouse.Namespace, fixture); err != nil {
		logger.Error("failed to load fixture", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("demo fixture loaded",
		slog.String("driver", cfg.Warehouse.Driver),
		slog.String("namespace", cfg.Warehouse.Namespace),
		slog.Int("products", len(fixture.Products)),
		slog.Int("lines", len(fixture.Lines)),
		slog.Int("machine_logs", len(fixture.Logs)),
		slog.Int("failure_incidents", len(fixture.Incidents)),
	)
}
