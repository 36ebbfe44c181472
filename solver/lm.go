package solver

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LevenbergMarquardt is a projected Levenberg-Marquardt minimiser.
//
// Each iteration solves (JᵀJ + μD)δ = -Jᵀr with a Cholesky factorisation,
// where D is the running maximum of diag(JᵀJ). The trial point x+δ is
// clipped to the box, and variables pinned at a bound are held fixed for the
// iteration. Damping follows Nielsen's gain ratio update.
type LevenbergMarquardt struct {
	// InitialDamping scales the largest diagonal entry of JᵀJ to give the
	// first μ. Zero means 1e-3.
	InitialDamping float64
}

// maxDamping is the damping beyond which the normal matrix is declared singular.
const maxDamping = 1e30

func (lm LevenbergMarquardt) Minimize(p Problem, x0 []float64, s Settings) (Result, error) {
	res := Result{Cost: math.Inf(1)}
	if err := p.validate(x0); err != nil {
		return res, err
	}
	n, m := len(x0), p.M
	lo, hi, err := p.bounds(n)
	if err != nil {
		return res, err
	}
	if s.MaxEvaluations <= 0 {
		s.MaxEvaluations = DefaultSettings().MaxEvaluations
	}
	tau := lm.InitialDamping
	if tau <= 0 {
		tau = 1e-3
	}

	evaluate := func(dst, x []float64) error {
		if res.Evaluations >= s.MaxEvaluations {
			return ErrMaxEvaluations
		}
		res.Evaluations++
		p.Residual(dst, x)
		if !allFinite(dst) {
			return fmt.Errorf("%w at x=%v", ErrNonFinite, x)
		}
		return nil
	}

	jac := mat.NewDense(m, n, nil)
	jacobian := func(x []float64) error {
		if p.Jacobian != nil {
			p.Jacobian(jac, x)
		} else {
			// Central differences cost two evaluations per parameter.
			if res.Evaluations+2*n > s.MaxEvaluations {
				return ErrMaxEvaluations
			}
			fd.Jacobian(jac, func(y, x []float64) {
				res.Evaluations++
				p.Residual(y, x)
			}, x, &fd.JacobianSettings{Formula: fd.Central})
		}
		if !allFinite(jac.RawMatrix().Data) {
			return fmt.Errorf("%w in jacobian at x=%v", ErrNonFinite, x)
		}
		return nil
	}

	x := make([]float64, n)
	copy(x, x0)
	Clamp(x, lo, hi)
	r := make([]float64, m)
	if err := evaluate(r, x); err != nil {
		return res, err
	}
	cost := halfSquaredNorm(r)
	res.Cost = cost
	if err := jacobian(x); err != nil {
		return res, err
	}

	var (
		a      = mat.NewSymDense(n, nil)
		damped = mat.NewSymDense(n, nil)
		g      = mat.NewVecDense(n, nil)
		negG   = mat.NewVecDense(n, nil)
		delta  = mat.NewVecDense(n, nil)
		as     = mat.NewVecDense(n, nil)
		chol   mat.Cholesky

		scale = make([]float64, n)
		xNew  = make([]float64, n)
		step  = make([]float64, n)
		rNew  = make([]float64, m)

		mu = -1.0
		nu = 2.0
	)

	for {
		res.Iterations++
		a.SymOuterK(1, jac.T())
		g.MulVec(jac.T(), mat.NewVecDense(m, r))

		if projectedGradientNorm(g.RawVector().Data, x, lo, hi) <= s.GTol*math.Max(1, math.Sqrt(2*cost)) {
			return lm.done(res, x, cost, GradientConvergence), nil
		}

		maxDiag := 0.0
		for j := 0; j < n; j++ {
			scale[j] = math.Max(scale[j], a.At(j, j))
			maxDiag = math.Max(maxDiag, a.At(j, j))
		}
		if mu < 0 {
			mu = tau * math.Max(maxDiag, math.SmallestNonzeroFloat64)
		}

		damped.CopySym(a)
		for j := 0; j < n; j++ {
			d := scale[j]
			if d == 0 {
				d = 1
			}
			damped.SetSym(j, j, a.At(j, j)+mu*d)
		}
		negG.ScaleVec(-1, g)
		// Hold variables pinned at a bound so the step moves the free ones only.
		for j := 0; j < n; j++ {
			if !pinned(x[j], g.AtVec(j), lo[j], hi[j]) {
				continue
			}
			for i := 0; i < n; i++ {
				if i != j {
					damped.SetSym(i, j, 0)
				}
			}
			negG.SetVec(j, 0)
		}
		if !chol.Factorize(damped) || chol.SolveVecTo(delta, negG) != nil {
			mu *= nu
			nu *= 2
			if mu > maxDamping {
				return res, fmt.Errorf("%w: damping exceeded %g", ErrSingular, maxDamping)
			}
			continue
		}

		for j := 0; j < n; j++ {
			xNew[j] = x[j] + delta.AtVec(j)
		}
		Clamp(xNew, lo, hi)
		floats.SubTo(step, xNew, x)
		if floats.Norm(step, 2) <= s.XTol*(floats.Norm(x, 2)+s.XTol) {
			return lm.done(res, x, cost, StepConvergence), nil
		}

		if err := evaluate(rNew, xNew); err != nil {
			return res, err
		}
		costNew := halfSquaredNorm(rNew)

		sv := mat.NewVecDense(n, step)
		as.MulVec(a, sv)
		predicted := -(mat.Dot(g, sv) + 0.5*mat.Dot(sv, as))
		actual := cost - costNew
		if predicted <= 0 || actual <= 0 {
			mu *= nu
			nu *= 2
			continue
		}

		rho := actual / predicted
		prev := cost
		copy(x, xNew)
		copy(r, rNew)
		cost = costNew
		res.Cost = cost
		if err := jacobian(x); err != nil {
			return res, err
		}
		mu *= math.Max(1.0/3, 1-math.Pow(2*rho-1, 3))
		nu = 2
		if actual <= s.FTol*prev {
			return lm.done(res, x, cost, FunctionConvergence), nil
		}
	}
}

func (LevenbergMarquardt) done(res Result, x []float64, cost float64, status Status) Result {
	res.X = append([]float64(nil), x...)
	res.Cost = cost
	res.Status = status
	return res
}

// projectedGradientNorm returns the max-norm of the gradient after zeroing
// components that point out of the box at an active bound.
func projectedGradientNorm(g, x, lo, hi []float64) float64 {
	var norm float64
	for j, v := range g {
		if pinned(x[j], v, lo[j], hi[j]) {
			continue
		}
		norm = math.Max(norm, math.Abs(v))
	}
	return norm
}

// pinned reports whether a descent step along gradient component g would
// leave the box at x.
func pinned(x, g, lo, hi float64) bool {
	return (x <= lo && g > 0) || (x >= hi && g < 0)
}
