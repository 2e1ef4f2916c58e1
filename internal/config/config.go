// Package config loads process settings from the environment and carrier
// defaults from an optional YAML file.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel/attribute"
)

// Store drivers.
const (
	DriverBadger   = "badger"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Storage
	StoreDriver string `envconfig:"STORE_DRIVER" default:"badger"`
	DatabaseDSN string `envconfig:"DATABASE_DSN"`
	BadgerPath  string `envconfig:"BADGER_PATH" default:"data/carrierhub"`
	SQLDebug    bool   `envconfig:"SQL_DEBUG" default:"false"`

	// Host shop database, read through pgx. Empty disables order lookups.
	OrdersDSN         string `envconfig:"ORDERS_DSN"`
	OrdersTablePrefix string `envconfig:"ORDERS_TABLE_PREFIX" default:"ps_"`

	// Events. Empty address disables publishing.
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	EventsChannel string `envconfig:"EVENTS_CHANNEL" default:"carrierhub.shipments"`

	// Global carrier configuration defaults (YAML).
	DefaultsFile   string        `envconfig:"CARRIER_DEFAULTS_FILE"`
	CarrierTimeout time.Duration `envconfig:"CARRIER_TIMEOUT" default:"30s"`

	// Freightcom
	FreightcomAPIKey          string `envconfig:"FREIGHTCOM_API_KEY"`
	FreightcomBaseURL         string `envconfig:"FREIGHTCOM_BASE_URL" default:"https://external-api.freightcom.com"`
	FreightcomPaymentMethodID string `envconfig:"FREIGHTCOM_PAYMENT_METHOD_ID"`
	FreightcomEnabled         bool   `envconfig:"FREIGHTCOM_ENABLED" default:"true"`
	FreightcomUseMock         bool   `envconfig:"FREIGHTCOM_USE_MOCK" default:"false"`

	// Canada Post
	CanadaPostAPIKey    string `envconfig:"CANADAPOST_API_KEY"`
	CanadaPostAPISecret string `envconfig:"CANADAPOST_API_SECRET"`
	CanadaPostAccountID string `envconfig:"CANADAPOST_ACCOUNT_ID"`
	CanadaPostBaseURL   string `envconfig:"CANADAPOST_BASE_URL" default:"https://soa-gw.canadapost.ca"`
	CanadaPostEnabled   bool   `envconfig:"CANADAPOST_ENABLED" default:"true"`
	CanadaPostUseMock   bool   `envconfig:"CANADAPOST_USE_MOCK" default:"false"`

	// Purolator
	PurolatorUsername      string `envconfig:"PUROLATOR_USERNAME"`
	PurolatorPassword      string `envconfig:"PUROLATOR_PASSWORD"`
	PurolatorAccountNumber string `envconfig:"PUROLATOR_ACCOUNT_NUMBER"`
	PurolatorBaseURL       string `envconfig:"PUROLATOR_BASE_URL" default:"https://webservices.purolator.com"`
	PurolatorEnabled       bool   `envconfig:"PUROLATOR_ENABLED" default:"true"`
	PurolatorUseMock       bool   `envconfig:"PUROLATOR_USE_MOCK" default:"false"`

	// Registers the deterministic mock adapter under code "mock".
	MockCarrierEnabled bool `envconfig:"MOCK_CARRIER_ENABLED" default:"false"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"carrierhub"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverBadger:
	case DriverPostgres, DriverMySQL:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("DATABASE_DSN is required for store driver %q", c.StoreDriver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	return nil
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.String("store.driver", c.StoreDriver),
		attribute.Bool("freightcom.enabled", c.FreightcomEnabled),
		attribute.Bool("canadapost.enabled", c.CanadaPostEnabled),
		attribute.Bool("purolator.enabled", c.PurolatorEnabled),
	}
}
