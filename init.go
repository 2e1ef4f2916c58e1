package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/tournevent/carrierhub/internal/config"
	"github.com/tournevent/carrierhub/internal/domain"
	"github.com/tournevent/carrierhub/internal/events"
	"github.com/tournevent/carrierhub/internal/orders"
	"github.com/tournevent/carrierhub/internal/store/kvstore"
	"github.com/tournevent/carrierhub/internal/store/sqlstore"
	"github.com/tournevent/carrierhub/internal/telemetry"
	"github.com/tournevent/carrierhub/pkg/shipper"
	"github.com/tournevent/carrierhub/pkg/shipper/canadapost"
	"github.com/tournevent/carrierhub/pkg/shipper/freightcom"
	"github.com/tournevent/carrierhub/pkg/shipper/mock"
	"github.com/tournevent/carrierhub/pkg/shipper/purolator"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// backend is a store with its lifecycle hooks.
type backend interface {
	domain.Store
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(cfg *config.Config) (*otelzap.Logger, error) {
	return telemetry.NewLogger(cfg.LogLevel, cfg.ServiceName)
}

func initTracer(ctx context.Context, cfg *config.Config) (trace.Tracer, func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return otel.Tracer(cfg.ServiceName), func(context.Context) error { return nil }, nil
	}
	tracer, shutdown, err := telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version)
	if err != nil {
		return otel.Tracer(cfg.ServiceName), nil, err
	}
	return tracer, shutdown, nil
}

func openStore(cfg *config.Config) (backend, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres, config.DriverMySQL:
		level := gormlogger.Warn
		if cfg.SQLDebug {
			level = gormlogger.Info
		}
		s, err := sqlstore.Open(cfg.StoreDriver, cfg.DatabaseDSN, level)
		if err != nil {
			return nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
		}
		return s, nil
	default:
		s, err := kvstore.Open(cfg.BadgerPath)
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		return s, nil
	}
}

func initOrders(ctx context.Context, cfg *config.Config, logger *otelzap.Logger) (domain.OrderProvider, func(), error) {
	if cfg.OrdersDSN == "" {
		logger.Warn("ORDERS_DSN is empty, order lookups will fail")
		return orders.NewStatic(), func() {}, nil
	}
	pool, err := pgxpool.New(ctx, cfg.OrdersDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect orders database: %w", err)
	}
	return orders.NewProvider(pool, cfg.OrdersTablePrefix), pool.Close, nil
}

func initPublisher(ctx context.Context, cfg *config.Config, logger *otelzap.Logger) (events.Publisher, func()) {
	if cfg.RedisAddr == "" {
		return events.Nop{}, func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis is unreachable, events may be lost", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	return events.NewRedisPublisher(client, cfg.EventsChannel), func() { _ = client.Close() }
}

func loadDefaults(cfg *config.Config) (shipper.Configuration, error) {
	defaults, err := config.LoadDefaults(cfg.DefaultsFile)
	if err != nil {
		return nil, fmt.Errorf("load carrier defaults: %w", err)
	}
	return defaults, nil
}

func initShipperRegistry(cfg *config.Config, logger *otelzap.Logger, tracer trace.Tracer) *shipper.Registry {
	registry := shipper.NewRegistry()

	if cfg.FreightcomEnabled {
		registry.Register(freightcom.New(freightcom.Config{
			APIKey:          cfg.FreightcomAPIKey,
			BaseURL:         cfg.FreightcomBaseURL,
			PaymentMethodID: cfg.FreightcomPaymentMethodID,
			UseMock:         cfg.FreightcomUseMock,
			Timeout:         cfg.CarrierTimeout,
		}, logger, tracer))
	}

	if cfg.CanadaPostEnabled {
		registry.Register(canadapost.New(canadapost.Config{
			APIKey:    cfg.CanadaPostAPIKey,
			APISecret: cfg.CanadaPostAPISecret,
			AccountID: cfg.CanadaPostAccountID,
			BaseURL:   cfg.CanadaPostBaseURL,
			UseMock:   cfg.CanadaPostUseMock,
			Timeout:   cfg.CarrierTimeout,
		}, logger, tracer))
	}

	if cfg.PurolatorEnabled {
		registry.Register(purolator.New(purolator.Config{
			Username:      cfg.PurolatorUsername,
			Password:      cfg.PurolatorPassword,
			AccountNumber: cfg.PurolatorAccountNumber,
			BaseURL:       cfg.PurolatorBaseURL,
			UseMock:       cfg.PurolatorUseMock,
			Timeout:       cfg.CarrierTimeout,
		}, logger, tracer))
	}

	if cfg.MockCarrierEnabled {
		registry.Register(mock.New("mock"))
	}

	return registry
}
