package solver

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// NelderMead minimises the squared residual norm with gonum's simplex method.
// It ignores Problem.Jacobian. Bounded parameters are searched in an
// unconstrained domain through a logistic (two-sided) or exponential
// (one-sided) transform, so every trial point honours the box.
type NelderMead struct{}

func (NelderMead) Minimize(p Problem, x0 []float64, s Settings) (Result, error) {
	res := Result{Cost: math.Inf(1)}
	if err := p.validate(x0); err != nil {
		return res, err
	}
	n := len(x0)
	lo, hi, err := p.bounds(n)
	if err != nil {
		return res, err
	}
	if s.MaxEvaluations <= 0 {
		s.MaxEvaluations = DefaultSettings().MaxEvaluations
	}

	start := make([]float64, n)
	copy(start, x0)
	Clamp(start, lo, hi)
	z := make([]float64, n)
	for j := range start {
		z[j] = unbound(start[j], lo[j], hi[j])
	}

	x := make([]float64, n)
	r := make([]float64, p.M)
	nonFinite := false
	problem := optimize.Problem{
		Func: func(z []float64) float64 {
			for j := range z {
				x[j] = bound(z[j], lo[j], hi[j])
			}
			p.Residual(r, x)
			if !allFinite(r) {
				nonFinite = true
				return math.Inf(1)
			}
			return halfSquaredNorm(r)
		},
	}
	settings := &optimize.Settings{
		FuncEvaluations: s.MaxEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   s.FTol,
			Relative:   s.FTol,
			Iterations: 100,
		},
	}
	out, err := optimize.Minimize(problem, z, settings, &optimize.NelderMead{})
	if out != nil {
		res.Iterations = out.MajorIterations
		res.Evaluations = out.FuncEvaluations
		res.Cost = out.F
	}
	switch {
	case out != nil && out.Status == optimize.FunctionEvaluationLimit:
		return res, fmt.Errorf("%w: %d evaluations", ErrMaxEvaluations, res.Evaluations)
	case err != nil:
		if errors.Is(err, optimize.FunctionEvaluationLimit.Err()) {
			return res, fmt.Errorf("%w: %d evaluations", ErrMaxEvaluations, res.Evaluations)
		}
		return res, fmt.Errorf("%w: %v", ErrNotConverged, err)
	case math.IsInf(out.F, 0) || math.IsNaN(out.F):
		if nonFinite {
			return res, ErrNonFinite
		}
		return res, ErrNotConverged
	}

	res.X = make([]float64, n)
	for j := range out.X {
		res.X[j] = bound(out.X[j], lo[j], hi[j])
	}
	Clamp(res.X, lo, hi)
	res.Cost = out.F
	res.Status = FunctionConvergence
	return res, nil
}

// bound maps an unconstrained value into [lo, hi].
func bound(z, lo, hi float64) float64 {
	switch {
	case math.IsInf(lo, -1) && math.IsInf(hi, 1):
		return z
	case math.IsInf(hi, 1):
		return lo + math.Exp(z)
	case math.IsInf(lo, -1):
		return hi - math.Exp(-z)
	case lo == hi:
		return lo
	}
	return lo + (hi-lo)/(1+math.Exp(-z))
}

// unbound is the inverse of bound. Points on a finite bound are nudged inside.
func unbound(x, lo, hi float64) float64 {
	const eps = 1e-9
	switch {
	case math.IsInf(lo, -1) && math.IsInf(hi, 1):
		return x
	case math.IsInf(hi, 1):
		return math.Log(math.Max(x-lo, eps))
	case math.IsInf(lo, -1):
		return -math.Log(math.Max(hi-x, eps))
	case lo == hi:
		return 0
	}
	u := (x - lo) / (hi - lo)
	u = math.Min(1-eps, math.Max(eps, u))
	return math.Log(u / (1 - u))
}
