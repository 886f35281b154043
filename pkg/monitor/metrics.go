package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"surrogate/pkg/errorest"
)

// Metrics exports decisions and calibrations to Prometheus. It registers on
// its own registry so that several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	decisions     *prometheus.CounterVec
	estimated     prometheus.Histogram
	oracleCalls   prometheus.Counter
	calibrations  *prometheus.CounterVec
	validSamples  prometheus.Gauge
	twoSigma      prometheus.Gauge
	calibrateTime prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "surrogate_decisions_total",
			Help: "Approximation decisions by outcome.",
		}, []string{"outcome"}),
		estimated: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "surrogate_estimated_error",
			Help:    "Scaled proxy error of each decision.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 10, 10),
		}),
		oracleCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "surrogate_oracle_calls_total",
			Help: "Evaluations that fell back to the slow model.",
		}),
		calibrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "surrogate_calibrations_total",
			Help: "Calibration runs by validity.",
		}, []string{"valid"}),
		validSamples: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "surrogate_calibration_valid_samples",
			Help: "Nonzero-proxy samples of the last calibration.",
		}),
		twoSigma: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "surrogate_ratio_two_sigma",
			Help: "Two-sigma upper limit of the calibrated error ratio.",
		}),
		calibrateTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "surrogate_calibration_seconds",
			Help:    "Wall time of calibration runs.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(m.decisions, m.estimated, m.oracleCalls,
		m.calibrations, m.validSamples, m.twoSigma, m.calibrateTime)
	return m
}

// Registry is the private registry behind Handler. Callers may register
// further collectors on it.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordOracleCall() { m.oracleCalls.Inc() }

func (m *Metrics) CalibrationStarted(errorest.ErrorMethod, int) {}
func (m *Metrics) SampleEvaluated(int, float64, float64)        {}

func (m *Metrics) CalibrationFinished(r errorest.CalibrationResult) {
	label := "false"
	if r.Valid {
		label = "true"
		m.twoSigma.Set(r.TwoSigma)
	}
	m.calibrations.WithLabelValues(label).Inc()
	m.validSamples.Set(float64(r.ValidSamples))
	m.calibrateTime.Observe(r.Duration.Seconds())
}

func (m *Metrics) Decision(_, estimated float64, accepted bool) {
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
	}
	m.decisions.WithLabelValues(outcome).Inc()
	m.estimated.Observe(estimated)
}
