// Package metrics provides Prometheus metrics collection for the dropout
// risk engine: scoring throughput and latency, risk score distribution,
// notification volume, and training pipeline health, exposed via the
// /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the risk engine.
type Metrics struct {
	// Scoring metrics
	PredictionsTotal   prometheus.Counter   // Total number of predictions computed
	PredictionFailures prometheus.Counter   // Total number of rejected/failed predictions
	PredictionLatency  prometheus.Histogram // End-to-end prediction latency in seconds
	RiskScores         prometheus.Histogram // Distribution of predicted dropout probabilities

	// Notification metrics
	NotificationsTotal prometheus.Counter // Total number of notification events emitted

	// Training metrics
	TrainingRuns       prometheus.Counter // Total number of completed training runs
	TrainingFailures   prometheus.Counter // Total number of failed or rejected training runs
	TrainingDuration   prometheus.Histogram // Training pipeline duration in seconds
	ValidationAccuracy prometheus.Gauge   // Validation accuracy of the last accepted artifact
	ModelAge           prometheus.Gauge   // Age of the active model artifact in seconds
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
// This allows for isolated metric collection in tests without affecting the
// global Prometheus registry.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of predictions computed",
		}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_failures_total",
			Help: "Total number of rejected or failed predictions",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "End-to-end prediction latency in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		RiskScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "risk_scores",
			Help:    "Distribution of predicted dropout probabilities",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		NotificationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Total number of notification events emitted",
		}),
		TrainingRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "training_runs_total",
			Help: "Total number of completed training runs",
		}),
		TrainingFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "training_failures_total",
			Help: "Total number of failed or rejected training runs",
		}),
		TrainingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "training_duration_seconds",
			Help:    "Training pipeline duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		ValidationAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "validation_accuracy",
			Help: "Validation accuracy of the last accepted model artifact",
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_age_seconds",
			Help: "Age of the active model artifact in seconds",
		}),
	}
}
