// Package fallback builds shape-preserving interpolants through observed
// points for curves the parametric fit cannot describe.
package fallback

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
)

var (
	// ErrInvalidInput reports malformed observations.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicateDuration reports two observations at the same duration with
	// different values. It wraps ErrInvalidInput.
	ErrDuplicateDuration = fmt.Errorf("%w: conflicting values at a duplicate duration", ErrInvalidInput)
	// ErrInterpolationUnavailable is returned when fewer than two distinct
	// durations remain.
	ErrInterpolationUnavailable = errors.New("interpolation unavailable: fewer than 2 distinct durations")
)

// Kind names the interpolation scheme.
type Kind string

const (
	KindPCHIP  Kind = "pchip"
	KindLinear Kind = "linear"
)

// Interpolant is a C¹ monotone cubic (three or more knots) or a straight
// line (two knots) through sorted, de-duplicated observations. Outside the
// knot range it returns the value at the nearest end knot.
type Interpolant struct {
	kind      Kind
	xs, ys    []float64
	predictor interp.Predictor
}

// Build fits an interpolant to the observations. The inputs are copied and
// may be in any order. Identical repeated points collapse to one knot.
func Build(durations, values []float64) (*Interpolant, error) {
	if len(durations) != len(values) {
		return nil, fmt.Errorf("%w: %d durations but %d values", ErrInvalidInput, len(durations), len(values))
	}
	for i := range durations {
		if !finite(durations[i]) || !finite(values[i]) {
			return nil, fmt.Errorf("%w: non-finite observation %d (%v, %v)", ErrInvalidInput, i, durations[i], values[i])
		}
	}

	sorted := append([]float64(nil), durations...)
	idx := make([]int, len(durations))
	floats.ArgsortStable(sorted, idx)

	xs := make([]float64, 0, len(idx))
	ys := make([]float64, 0, len(idx))
	conflict := false
	for _, i := range idx {
		if n := len(xs); n > 0 && durations[i] == xs[n-1] {
			if values[i] != ys[n-1] {
				conflict = true
			}
			continue
		}
		xs = append(xs, durations[i])
		ys = append(ys, values[i])
	}
	if len(xs) < 2 {
		return nil, ErrInterpolationUnavailable
	}
	if conflict {
		return nil, ErrDuplicateDuration
	}

	ip := &Interpolant{xs: xs, ys: ys}
	if len(xs) == 2 {
		var pl interp.PiecewiseLinear
		if err := pl.Fit(xs, ys); err != nil {
			return nil, err
		}
		ip.kind, ip.predictor = KindLinear, pl
		return ip, nil
	}
	var fb interp.FritschButland
	if err := fb.Fit(xs, ys); err != nil {
		return nil, err
	}
	ip.kind, ip.predictor = KindPCHIP, &fb
	return ip, nil
}

// Predict returns the interpolated value at x.
func (ip *Interpolant) Predict(x float64) float64 {
	return ip.predictor.Predict(x)
}

// Evaluate returns the interpolated value at each duration, in input order.
func (ip *Interpolant) Evaluate(durations []float64) []float64 {
	out := make([]float64, len(durations))
	for i, x := range durations {
		out[i] = ip.predictor.Predict(x)
	}
	return out
}

// Kind reports the scheme in use.
func (ip *Interpolant) Kind() Kind { return ip.kind }

// Domain returns the smallest and largest knot.
func (ip *Interpolant) Domain() (min, max float64) {
	return ip.xs[0], ip.xs[len(ip.xs)-1]
}

// Knots returns copies of the knot coordinates.
func (ip *Interpolant) Knots() (xs, ys []float64) {
	return append([]float64(nil), ip.xs...), append([]float64(nil), ip.ys...)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
