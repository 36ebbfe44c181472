package nss

import (
	"gonum.org/v1/gonum/mat"
)

// Jacobian fills dst, which must be len(durations)×6, with the derivative of
// the curve with respect to (β0, β1, β2, β3, τ1, τ2) at each duration.
func Jacobian(dst *mat.Dense, durations []float64, p Params) {
	for i, t := range durations {
		d1, e1 := decay(t / p.Tau1)
		d2, e2 := decay(t / p.Tau2)
		dd1, de1 := decayDerivative(t, p.Tau1)
		dd2, de2 := decayDerivative(t, p.Tau2)
		dst.SetRow(i, []float64{
			1,
			d1,
			d1 - e1,
			d2 - e2,
			p.Beta1*dd1 + p.Beta2*(dd1-de1),
			p.Beta3 * (dd2 - de2),
		})
	}
}

// Loadings fills dst, which must be len(durations)×4, with the factor
// loadings multiplying (β0, β1, β2, β3) for fixed decay scales.
func Loadings(dst *mat.Dense, durations []float64, tau1, tau2 float64) {
	for i, t := range durations {
		d1, e1 := decay(t / tau1)
		d2, e2 := decay(t / tau2)
		dst.SetRow(i, []float64{1, d1, d1 - e1, d2 - e2})
	}
}
