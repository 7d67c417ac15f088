package light

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

// MetricsSubsystem is a subsystem shared by all metrics exposed by this
// package.
const MetricsSubsystem = "light"

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Number of single-step validations, by outcome ("ok" or "failed").
	Validations metrics.Counter
	// Number of validations failing because the new validator set could not
	// be trusted yet.
	BisectionSteps metrics.Counter
	// Number of light blocks fetched from the provider.
	Fetches metrics.Counter
	// Number of failed runs, by kind of error.
	Failures metrics.Counter
	// Time taken by a verification run, in seconds.
	RunDuration metrics.Histogram
	// The latest trusted height.
	LatestTrustedHeight metrics.Gauge
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
// Optionally, labels can be provided along with their values ("foo",
// "fooValue").
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}
	return &Metrics{
		Validations: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "validations",
			Help:      "Number of single-step light block validations.",
		}, append(labels, "outcome")).With(labelsAndValues...),
		BisectionSteps: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "bisection_steps",
			Help:      "Number of validations whose validator set could not be trusted, each requiring a bisection step.",
		}, labels).With(labelsAndValues...),
		Fetches: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "fetches",
			Help:      "Number of light blocks fetched from the provider.",
		}, labels).With(labelsAndValues...),
		Failures: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "failures",
			Help:      "Number of failed verification runs.",
		}, append(labels, "kind")).With(labelsAndValues...),
		RunDuration: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "run_duration_seconds",
			Help:      "Time taken by a verification run.",
			Buckets:   stdprometheus.ExponentialBuckets(0.001, 4, 8),
		}, labels).With(labelsAndValues...),
		LatestTrustedHeight: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "latest_trusted_height",
			Help:      "The latest trusted height.",
		}, labels).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		Validations:         discard.NewCounter(),
		BisectionSteps:      discard.NewCounter(),
		Fetches:             discard.NewCounter(),
		Failures:            discard.NewCounter(),
		RunDuration:         discard.NewHistogram(),
		LatestTrustedHeight: discard.NewGauge(),
	}
}
