package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	ShipmentsTotal  *prometheus.CounterVec
	CarrierDuration *prometheus.HistogramVec
	CarrierErrors   *prometheus.CounterVec
	SelectionsTotal *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ShipmentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "carrierhub_shipments_total",
				Help: "Shipment operations by operation, carrier, and outcome",
			},
			[]string{"operation", "carrier", "outcome"},
		),
		CarrierDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "carrierhub_carrier_request_duration_seconds",
				Help:    "Carrier send duration in seconds by carrier",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"carrier"},
		),
		CarrierErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "carrierhub_carrier_errors_total",
				Help: "Carrier failures by carrier and error code",
			},
			[]string{"carrier", "code"},
		),
		SelectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "carrierhub_carrier_selections_total",
				Help: "Carrier selections by number of eligible carriers",
			},
			[]string{"result"},
		),
	}
}

// RecordShipment counts a generate or delete outcome.
func (m *Metrics) RecordShipment(operation, carrier, outcome string) {
	if m == nil {
		return
	}
	m.ShipmentsTotal.WithLabelValues(operation, carrier, outcome).Inc()
}

// ObserveCarrier records the duration of one carrier send.
func (m *Metrics) ObserveCarrier(carrier string, seconds float64) {
	if m == nil {
		return
	}
	m.CarrierDuration.WithLabelValues(carrier).Observe(seconds)
}

// RecordError records a carrier error.
func (m *Metrics) RecordError(carrier, code string) {
	if m == nil {
		return
	}
	m.CarrierErrors.WithLabelValues(carrier, code).Inc()
}

// RecordSelection records whether a selection produced any carrier.
func (m *Metrics) RecordSelection(eligible int) {
	if m == nil {
		return
	}
	result := "some"
	if eligible == 0 {
		result = "none"
	}
	m.SelectionsTotal.WithLabelValues(result).Inc()
}
