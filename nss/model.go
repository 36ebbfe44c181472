// Package nss implements the Nelson-Siegel-Svensson spread curve and its
// calibration to (duration, spread) observations.
package nss

import (
	"fmt"
	"math"
)

// zeroX is the scaled duration below which the decay terms take their t→0 limit.
const zeroX = 1e-10

// Params holds the six NSS parameters. Tau1 and Tau2 are decay scales in
// years and must be positive.
type Params struct {
	Beta0 float64 `json:"beta0"`
	Beta1 float64 `json:"beta1"`
	Beta2 float64 `json:"beta2"`
	Beta3 float64 `json:"beta3"`
	Tau1  float64 `json:"tau1"`
	Tau2  float64 `json:"tau2"`
}

// Vector returns the parameters in (β0, β1, β2, β3, τ1, τ2) order.
func (p Params) Vector() []float64 {
	return []float64{p.Beta0, p.Beta1, p.Beta2, p.Beta3, p.Tau1, p.Tau2}
}

// ParamsFromVector is the inverse of Params.Vector.
func ParamsFromVector(v []float64) Params {
	return Params{Beta0: v[0], Beta1: v[1], Beta2: v[2], Beta3: v[3], Tau1: v[4], Tau2: v[5]}
}

// Validate reports parameters that cannot be evaluated.
func (p Params) Validate() error {
	for i, v := range p.Vector() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: parameter %d is %v", ErrInvalidParams, i, v)
		}
	}
	if p.Tau1 <= 0 || p.Tau2 <= 0 {
		return fmt.Errorf("%w: tau1=%v tau2=%v must be positive", ErrInvalidParams, p.Tau1, p.Tau2)
	}
	return nil
}

// Spread evaluates the NSS curve at duration t:
//
//	β0 + β1·d(t/τ1) + β2·(d(t/τ1) − e^(−t/τ1)) + β3·(d(t/τ2) − e^(−t/τ2))
//
// where d(x) = (1 − e^(−x))/x and d(0) = 1, so Spread(0, p) = β0 + β1.
func Spread(t float64, p Params) float64 {
	d1, e1 := decay(t / p.Tau1)
	d2, e2 := decay(t / p.Tau2)
	return p.Beta0 + p.Beta1*d1 + p.Beta2*(d1-e1) + p.Beta3*(d2-e2)
}

// Predict evaluates the curve at each duration.
func Predict(durations []float64, p Params) []float64 {
	out := make([]float64, len(durations))
	for i, t := range durations {
		out[i] = Spread(t, p)
	}
	return out
}

// decay returns (1 − e^(−x))/x and e^(−x).
func decay(x float64) (d, e float64) {
	if math.Abs(x) < zeroX {
		return 1, 1
	}
	return -math.Expm1(-x) / x, math.Exp(-x)
}

// decayDerivative returns ∂d/∂τ and ∂e^(−x)/∂τ for x = t/τ.
func decayDerivative(t, tau float64) (dd, de float64) {
	x := t / tau
	if math.Abs(x) < zeroX {
		return 0, 0
	}
	e := math.Exp(-x)
	dx := -x / tau
	dddx := (x*e + math.Expm1(-x)) / (x * x)
	return dddx * dx, -e * dx
}
