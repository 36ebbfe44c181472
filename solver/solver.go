// Package solver implements bounded nonlinear least-squares minimisers.
//
// A Minimizer receives a residual function r(x) of M components and finds x
// inside the box [Lower, Upper] minimising 0.5*||r(x)||². Failures are
// reported as errors wrapping one of the package sentinels so callers can
// branch with errors.Is.
package solver

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrMaxEvaluations is returned when the residual evaluation budget is spent
	// before convergence.
	ErrMaxEvaluations = errors.New("maximum number of function evaluations exceeded")
	// ErrSingular is returned when the normal equations cannot be solved even
	// under maximal damping.
	ErrSingular = errors.New("singular jacobian")
	// ErrNonFinite is returned when a residual evaluates to NaN or ±Inf.
	ErrNonFinite = errors.New("non-finite residual")
	// ErrNotConverged is returned when the method stops early for any other reason.
	ErrNotConverged = errors.New("minimisation did not converge")
	// ErrBadProblem reports a malformed Problem or starting point.
	ErrBadProblem = errors.New("malformed problem")
)

// Problem describes a box-constrained least-squares problem.
type Problem struct {
	// Residual writes the M residuals at x into dst.
	Residual func(dst, x []float64)
	// Jacobian writes the M×N derivative of the residuals at x into dst.
	// When nil the derivative is approximated with central differences.
	Jacobian func(dst *mat.Dense, x []float64)
	// M is the number of residual components.
	M int
	// Lower and Upper bound each parameter. Use ±Inf for a free parameter.
	// Nil slices mean the parameters are unbounded.
	Lower, Upper []float64
}

// Settings controls termination.
type Settings struct {
	// MaxEvaluations caps residual evaluations, finite difference calls included.
	MaxEvaluations int
	FTol           float64
	XTol           float64
	GTol           float64
}

// DefaultSettings returns the tolerances used when none are specified.
func DefaultSettings() Settings {
	return Settings{
		MaxEvaluations: 10000,
		FTol:           1e-10,
		XTol:           1e-10,
		GTol:           1e-10,
	}
}

// Status reports why a successful minimisation stopped.
type Status int

const (
	NotTerminated Status = iota
	GradientConvergence
	StepConvergence
	FunctionConvergence
)

func (s Status) String() string {
	switch s {
	case GradientConvergence:
		return "GradientConvergence"
	case StepConvergence:
		return "StepConvergence"
	case FunctionConvergence:
		return "FunctionConvergence"
	}
	return "NotTerminated"
}

// Result is the outcome of a minimisation. Evaluations, Iterations and Cost
// are filled in even when Minimize returns an error, with Cost holding the
// best accepted cost (+Inf when no point was evaluated). X is nil on error.
type Result struct {
	X           []float64
	Cost        float64
	Iterations  int
	Evaluations int
	Status      Status
}

// Minimizer finds a local minimiser of a Problem starting from x0.
type Minimizer interface {
	Minimize(p Problem, x0 []float64, s Settings) (Result, error)
}

// bounds returns lower and upper bound slices of length n.
func (p Problem) bounds(n int) (lo, hi []float64, err error) {
	lo, hi = p.Lower, p.Upper
	if lo == nil {
		lo = filled(n, math.Inf(-1))
	}
	if hi == nil {
		hi = filled(n, math.Inf(1))
	}
	if len(lo) != n || len(hi) != n {
		return nil, nil, fmt.Errorf("%w: %d parameters but bounds of length %d and %d", ErrBadProblem, n, len(lo), len(hi))
	}
	for j := range lo {
		if math.IsNaN(lo[j]) || math.IsNaN(hi[j]) || lo[j] > hi[j] {
			return nil, nil, fmt.Errorf("%w: invalid bounds [%v, %v] for parameter %d", ErrBadProblem, lo[j], hi[j], j)
		}
	}
	return lo, hi, nil
}

func (p Problem) validate(x0 []float64) error {
	if p.Residual == nil {
		return fmt.Errorf("%w: nil residual", ErrBadProblem)
	}
	if p.M < 1 {
		return fmt.Errorf("%w: no residuals", ErrBadProblem)
	}
	if len(x0) == 0 {
		return fmt.Errorf("%w: empty starting point", ErrBadProblem)
	}
	return nil
}

// Clamp projects x onto the box [lo, hi] in place.
func Clamp(x, lo, hi []float64) {
	for j := range x {
		x[j] = math.Min(hi[j], math.Max(lo[j], x[j]))
	}
}

func filled(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func allFinite(s []float64) bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func halfSquaredNorm(r []float64) float64 {
	var c float64
	for _, v := range r {
		c += v * v
	}
	return 0.5 * c
}
