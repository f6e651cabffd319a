package reactive

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metricsRegistry is package-local so importing reactive never collides
// with a host application's default prometheus registry (no I/O surface is
// exposed here; scraping it, if desired, is the host's concern).
var metricsRegistry = prometheus.NewRegistry()

var (
	valuesDelivered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reactive_values_delivered_total",
		Help: "Values delivered downstream, by stage kind.",
	}, []string{"stage"})

	completions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reactive_completions_total",
		Help: "Terminal completions observed, by stage kind and outcome.",
	}, []string{"stage", "outcome"})

	cancellations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reactive_cancellations_total",
		Help: "Cancellations observed, by stage kind.",
	}, []string{"stage"})

	retryAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reactive_retry_attempts_total",
		Help: "Re-subscription attempts made by the retry operator.",
	}, []string{"outcome"})

	outstandingDemand = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "reactive_outstanding_demand",
		Help: "Finite outstanding demand last observed per stage kind (unlimited demand is not reflected).",
	}, []string{"stage"})
)

func init() {
	metricsRegistry.MustRegister(valuesDelivered, completions, cancellations, retryAttempts, outstandingDemand)
}

// MetricsRegistry exposes the package's prometheus registry so a host
// application can fold it into its own /metrics endpoint. Wiring an HTTP
// handler is the host's responsibility; this package has no I/O surface.
func MetricsRegistry() *prometheus.Registry { return metricsRegistry }

func recordDelivered(stage string) { valuesDelivered.WithLabelValues(stage).Inc() }

func recordCompletion(stage string, c Completion) {
	outcome := "finished"
	if c.IsFailed() {
		outcome = "failed"
	}
	completions.WithLabelValues(stage, outcome).Inc()
}

func recordCancelled(stage string) { cancellations.WithLabelValues(stage).Inc() }

func recordRetryAttempt(outcome string) { retryAttempts.WithLabelValues(outcome).Inc() }

func recordOutstandingDemand(stage string, d Demand) {
	if d.IsUnlimited() {
		return
	}
	outstandingDemand.WithLabelValues(stage).Set(float64(d.Value()))
}
