package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/tournevent/carrierhub/internal/catalog"
	"github.com/tournevent/carrierhub/internal/graphql"
	"github.com/tournevent/carrierhub/internal/labels"
	"github.com/tournevent/carrierhub/internal/selection"
	"github.com/tournevent/carrierhub/internal/server"
	"github.com/tournevent/carrierhub/internal/shipment"
	"github.com/tournevent/carrierhub/internal/telemetry"
	"go.uber.org/zap"
)

var version = "0.1.0"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "carrierhub",
	Short:   "Carrier hub - shipment generation and carrier selection service",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and GraphQL server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the SQL schema",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tracer, tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
	} else {
		defer tracerShutdown(context.WithoutCancel(ctx))
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	orderProvider, closeOrders, err := initOrders(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeOrders()

	publisher, closePublisher := initPublisher(ctx, cfg, logger)
	defer closePublisher()

	defaults, err := loadDefaults(cfg)
	if err != nil {
		return err
	}

	registry := initShipperRegistry(cfg, logger, tracer)
	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	generator := shipment.New(store, orderProvider, registry, logger,
		shipment.Config{Defaults: defaults, SendTimeout: cfg.CarrierTimeout},
		shipment.WithPublisher(publisher),
		shipment.WithMetrics(metrics),
		shipment.WithTracer(tracer),
	)
	labelStore := labels.New(store.Labels())
	resolver := graphql.NewResolver(
		generator,
		selection.New(store, orderProvider, logger, metrics),
		catalog.New(store, logger),
		labelStore,
		logger,
		metrics,
	)

	logger.Info("Starting carrier hub",
		zap.Int("port", cfg.Port),
		zap.String("version", cfg.Version),
		zap.String("store", cfg.StoreDriver),
		zap.Strings("carriers", registry.Codes()),
	)

	srv := server.New(server.Config{Port: cfg.Port, HealthCheck: store.Ping}, resolver, labelStore, logger)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("Schema is up to date", zap.String("store", cfg.StoreDriver))
	return nil
}
