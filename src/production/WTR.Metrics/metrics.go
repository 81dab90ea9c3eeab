package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wattara"

// Metrics groups the collectors shared by the API and ingestor processes.
type Metrics struct {
	IngestMessages *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	ForecastRuns       *prometheus.CounterVec
	ForecastDuration   *prometheus.HistogramVec
	ForecastQueueDepth prometheus.Gauge
	PredictedPower     *prometheus.GaugeVec
	HourlyCost         *prometheus.GaugeVec
	ForecastRMSE       *prometheus.GaugeVec

	registerer prometheus.Registerer
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IngestMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_messages_total",
			Help:      "Telemetry messages handled by the ingestion gateway, by outcome.",
		}, []string{"outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ForecastRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_runs_total",
			Help:      "Forecast runs, by algorithm and outcome.",
		}, []string{"algo", "outcome"}),
		ForecastDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forecast_duration_seconds",
			Help:      "Time spent loading, training and evaluating a forecast.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"algo"}),
		ForecastQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "forecast_queue_depth",
			Help:      "Forecast jobs waiting for a worker.",
		}),
		PredictedPower: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "forecast_predicted_power_watts",
			Help:      "Most recent scheduled power forecast per device.",
		}, []string{"device_id"}),
		HourlyCost: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "forecast_estimated_hourly_cost",
			Help:      "Most recent scheduled hourly cost estimate per device.",
		}, []string{"device_id", "meter_type"}),
		ForecastRMSE: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "forecast_rmse_watts",
			Help:      "RMSE of the most recent scheduled forecast per device.",
		}, []string{"device_id"}),
		registerer: reg,
	}

	reg.MustRegister(
		m.IngestMessages,
		m.HTTPRequests,
		m.HTTPDuration,
		m.ForecastRuns,
		m.ForecastDuration,
		m.ForecastQueueDepth,
		m.PredictedPower,
		m.HourlyCost,
		m.ForecastRMSE,
	)
	return m
}

// NewNop returns collectors registered on a private registry, for tests and
// components built without a metrics endpoint.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// RegisterIngestState exports the gateway connection state as a gauge read
// on every scrape.
func (m *Metrics) RegisterIngestState(state func() float64) error {
	return m.registerer.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ingest_connection_state",
		Help:      "Ingestion transport state: 0 disconnected, 1 connecting, 2 subscribed.",
	}, state))
}
