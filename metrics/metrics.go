// Package metrics exposes Prometheus collectors for curve fitting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels fits that produced a curve.
	OutcomeSuccess = "success"
	// OutcomeError labels fits that produced no curve.
	OutcomeError = "error"
)

var (
	fitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oascurve",
			Name:      "fits_total",
			Help:      "Curve analyses partitioned by method and outcome.",
		},
		[]string{"method", "outcome"},
	)

	solverEvaluations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "oascurve",
			Name:      "solver_evaluations",
			Help:      "Residual evaluations spent per NSS fit.",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 11),
		},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oascurve",
			Name:      "http_requests_total",
			Help:      "HTTP requests partitioned by route and status code.",
		},
		[]string{"route", "code"},
	)
)

// Register attaches the collectors to the supplied registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		fitsTotal,
		solverEvaluations,
		httpRequestsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveFit records an analysis outcome. evaluations is ignored when not positive.
func ObserveFit(method, outcome string, evaluations int) {
	if outcome != OutcomeError {
		outcome = OutcomeSuccess
	}
	if method == "" {
		method = "none"
	}
	fitsTotal.WithLabelValues(method, outcome).Inc()
	if evaluations > 0 {
		solverEvaluations.Observe(float64(evaluations))
	}
}

// ObserveRequest counts one HTTP response.
func ObserveRequest(route, code string) {
	httpRequestsTotal.WithLabelValues(route, code).Inc()
}
