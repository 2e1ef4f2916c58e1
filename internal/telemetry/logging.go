// Package telemetry sets up logging, metrics and tracing.
package telemetry

import (
	"strings"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates an OpenTelemetry-aware zap logger writing JSON to stdout.
// Unknown levels fall back to info.
func NewLogger(level, service string) (*otelzap.Logger, error) {
	zapLevel, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.Encoding = "json"
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.InitialFields = map[string]any{"service": service}

	zapLogger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return otelzap.New(zapLogger, otelzap.WithMinLevel(zapLevel)), nil
}

// NopLogger returns a logger that discards everything.
func NopLogger() *otelzap.Logger {
	return otelzap.New(zap.NewNop())
}
