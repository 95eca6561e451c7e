// Package observability provides Prometheus metrics for scoring runs.
//
// The scorer is a batch job, so metrics live in a private registry and
// are pushed to a Pushgateway once the run ends instead of being scraped.
package observability

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "wallet_risk_lab"

// Metrics holds all Prometheus metrics for one scoring run.
type Metrics struct {
	registry *prometheus.Registry

	// Pipeline metrics
	RunsTotal     *prometheus.CounterVec
	PhaseDuration *prometheus.HistogramVec
	LastSuccess   prometheus.Gauge

	// Data metrics
	DepositsLoaded  prometheus.Counter
	WalletsScored   prometheus.Gauge
	ReliableWallets prometheus.Gauge

	// Model metrics
	FoldAccuracy *prometheus.GaugeVec
	OOFAccuracy  prometheus.Gauge
	OOFROCAUC    prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance backed by a fresh registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of scoring runs by status",
		}, []string{"status"}),
		PhaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "phase_duration_seconds",
			Help:      "Scoring phase duration in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"phase"}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful scoring run",
		}),

		DepositsLoaded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "deposits_loaded_total",
			Help:      "Total number of deposit records loaded",
		}),
		WalletsScored: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "wallets_scored",
			Help:      "Number of wallets scored in the last run",
		}),
		ReliableWallets: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "labeling",
			Name:      "reliable_wallets",
			Help:      "Number of wallets given the reliable heuristic label",
		}),

		FoldAccuracy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "fold_accuracy",
			Help:      "Held-out accuracy per cross-validation fold",
		}, []string{"fold"}),
		OOFAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "oof_accuracy",
			Help:      "Out-of-fold accuracy across all folds",
		}),
		OOFROCAUC: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "oof_roc_auc",
			Help:      "Out-of-fold ROC AUC across all folds",
		}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database write duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"store", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database write errors",
		}, []string{"store", "operation"}),
	}
}

// Registry returns the registry holding every metric.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordPhase observes the duration of a pipeline phase.
func (m *Metrics) RecordPhase(phase string, d time.Duration) {
	m.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// RecordRun counts a finished run and, on success, stamps the health gauge.
func (m *Metrics) RecordRun(status string, finishedAt time.Time) {
	m.RunsTotal.WithLabelValues(status).Inc()
	if status == StatusSuccess {
		m.LastSuccess.Set(float64(finishedAt.Unix()))
	}
}

// RecordFold sets one fold's held-out accuracy. fold is 1-based.
func (m *Metrics) RecordFold(fold int, accuracy float64) {
	m.FoldAccuracy.WithLabelValues(strconv.Itoa(fold)).Set(accuracy)
}

// RecordDBQuery records a storage call.
func (m *Metrics) RecordDBQuery(store, operation string, d time.Duration, err error) {
	m.DBQueryDuration.WithLabelValues(store, operation).Observe(d.Seconds())
	if err != nil {
		m.DBQueryErrors.WithLabelValues(store, operation).Inc()
	}
}

// Run statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Push sends every metric to a Pushgateway under job, grouped by run id.
func (m *Metrics) Push(ctx context.Context, url, job, runID string) error {
	pusher := push.New(url, job).
		Gatherer(m.registry).
		Grouping("run_id", runID)
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
