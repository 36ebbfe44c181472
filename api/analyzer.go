package api

import (
	"github.com/banachtech/oascurve/curve"
	"github.com/banachtech/oascurve/fallback"
	"github.com/banachtech/oascurve/nss"
)

//go:generate mockgen -destination mock/analyzer.go -package mockapi github.com/banachtech/oascurve/api Analyzer

// Analyzer performs the numerical work behind the handlers.
type Analyzer interface {
	Fit(durations, values []float64) (nss.FitResult, error)
	Interpolate(durations, values []float64) (*fallback.Interpolant, error)
	Analyze(points []curve.Point, filter curve.Filter) (curve.Analysis, error)
}

// Engine is the Analyzer used in production.
type Engine struct {
	opts curve.Options
}

// NewEngine returns an Engine that fits with opts.
func NewEngine(opts curve.Options) *Engine {
	return &Engine{opts: opts}
}

func (e *Engine) Fit(durations, values []float64) (nss.FitResult, error) {
	return nss.Fit(durations, values, e.opts.FitOptions...)
}

func (e *Engine) Interpolate(durations, values []float64) (*fallback.Interpolant, error) {
	return fallback.Build(durations, values)
}

func (e *Engine) Analyze(points []curve.Point, filter curve.Filter) (curve.Analysis, error) {
	return curve.Analyze(filter.Apply(points), e.opts)
}
