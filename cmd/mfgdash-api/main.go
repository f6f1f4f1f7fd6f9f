package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mfgdash/mfgdash/internal/api"
	"github.com/mfgdash/mfgdash/internal/api/uistatic"
	"github.com/mfgdash/mfgdash/internal/config"
	"github.com/mfgdash/mfgdash/internal/dashboard"
	"github.com/mfgdash/mfgdash/internal/insight"
	"github.com/mfgdash/mfgdash/internal/observability"
	"github.com/mfgdash/mfgdash/internal/views"
	"github.com/mfgdash/mfgdash/internal/warehouse"
)

func main() {
	lookup, err := config.DotEnvLookup(envFile(), os.LookupEnv)
	if err != nil {
		slog.Error("failed to read env file", slog.Any("error", err))
		os.Exit(1)
	}
	cfg, err := config.Load("mfgdash-api", lookup)
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
	accessor := warehouse.NewAccessor(connector, cfg.Warehouse.QueryTimeout, logger)

	service := &dashboard.Service{
		Builder:             views.NewBuilder(cfg.Warehouse.Namespace, dialect),
		Accessor:            accessor,
		DefaultSystemPrompt: cfg.Dashboard.SystemPrompt,
		Logger:              logger,
	}
	if cfg.AI.Enabled {
		client, err := insight.NewClient(insight.Config{
			Provider:    cfg.AI.Provider,
			BaseURL:     cfg.AI.BaseURL,
			APIVersion:  cfg.AI.APIVersion,
			Deployment:  cfg.AI.Deployment,
			APIKey:      cfg.AI.APIKey,
			MaxTokens:   cfg.AI.MaxTokens,
			Temperature: cfg.AI.Temperature,
			Timeout:     cfg.AI.Timeout,
		})
		if err != nil {
			logger.Error("failed to initialize insight client", slog.Any("error", err))
			os.Exit(1)
		}
		service.Insight = client
	}

	handler := api.NewHandler(cfg, api.Dependencies{
		Logger:            logger,
		Dashboard:         service,
		UI:                uistatic.Handler(),
		Readiness:         api.CheckWarehouse(accessor.Ping),
		DependencyTimeout: cfg.Warehouse.ConnectTimeout,
	})
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("warehouse_driver", connector.Driver()),
			slog.Bool("insight_enabled", service.InsightEnabled()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down api server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			return err
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.Error("api server stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func envFile() string {
	if path := strings.TrimSpace(os.Getenv("MFGDASH_ENV_FILE")); path != "" {
		return path
	}
	return ".env"
}
