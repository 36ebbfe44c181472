package nss

import (
	"errors"
	"fmt"
	"math"

	"github.com/banachtech/oascurve/solver"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	// TauMin and TauMax bound both decay scales during calibration.
	TauMin = 0.1
	TauMax = 20.0

	// MaxEvaluations is the default residual evaluation budget of one Fit.
	MaxEvaluations = 10000

	// MinPoints is the smallest sample that gives a well determined fit.
	// Smaller samples are still fitted.
	MinPoints = 6

	initialBeta1 = -50.0
	initialBeta2 = 50.0
	initialBeta3 = 0.0
	initialTau1  = 2.0
	initialTau2  = 5.0

	// rankTol is the relative singular value cut-off for the loading matrix.
	rankTol = 1e-12
)

// Pass names the calibration pass that produced a FitResult.
type Pass string

const (
	// PassFull fits all six parameters jointly.
	PassFull Pass = "full"
	// PassSeparable fits the decay scales with the betas solved by linear
	// least squares at every step.
	PassSeparable Pass = "separable"
)

// FitResult is a successful calibration.
type FitResult struct {
	Params      Params  `json:"params"`
	Iterations  int     `json:"iterations"`
	Evaluations int     `json:"evaluations"`
	Converged   bool    `json:"converged"`
	Method      Pass    `json:"method"`
	SSE         float64 `json:"sse"`
	Points      int     `json:"points"`
}

// LowConfidence reports a fit made from fewer than MinPoints observations.
func (r FitResult) LowConfidence() bool {
	return r.Points < MinPoints
}

type fitConfig struct {
	minimizer solver.Minimizer
	settings  solver.Settings
}

// FitOption customises Fit.
type FitOption func(*fitConfig)

// WithMinimizer replaces the default Levenberg-Marquardt minimiser.
func WithMinimizer(m solver.Minimizer) FitOption {
	return func(c *fitConfig) {
		if m != nil {
			c.minimizer = m
		}
	}
}

// WithMaxEvaluations sets the total residual evaluation budget.
func WithMaxEvaluations(n int) FitOption {
	return func(c *fitConfig) {
		if n > 0 {
			c.settings.MaxEvaluations = n
		}
	}
}

// WithTolerances sets the solver stopping tolerances. Non-positive values keep the defaults.
func WithTolerances(ftol, xtol, gtol float64) FitOption {
	return func(c *fitConfig) {
		if ftol > 0 {
			c.settings.FTol = ftol
		}
		if xtol > 0 {
			c.settings.XTol = xtol
		}
		if gtol > 0 {
			c.settings.GTol = gtol
		}
	}
}

// InitialGuess returns the fixed starting point of the full pass.
func InitialGuess(values []float64) Params {
	return Params{
		Beta0: stat.Mean(values, nil),
		Beta1: initialBeta1,
		Beta2: initialBeta2,
		Beta3: initialBeta3,
		Tau1:  initialTau1,
		Tau2:  initialTau2,
	}
}

// Fit calibrates the curve to the observations by minimising the sum of
// squared residuals with τ1 and τ2 held in [TauMin, TauMax].
//
// Two passes share one evaluation budget: a separable fit over (τ1, τ2),
// capped at half the budget, then a joint fit of all six parameters from
// InitialGuess with whatever the first pass left. Either pass may fail on its
// own; the lower residual of the passes that converged wins, ties going to
// the joint fit. Fewer than MinPoints observations are accepted.
func Fit(durations, values []float64, opts ...FitOption) (FitResult, error) {
	const op = "nss.Fit"
	if err := validateInput(durations, values); err != nil {
		return FitResult{}, err
	}
	cfg := fitConfig{
		minimizer: solver.LevenbergMarquardt{},
		settings:  solver.DefaultSettings(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	n := len(durations)
	if n >= 2 && loadingRank(durations, initialTau1, initialTau2) < 2 {
		return FitResult{}, &FitError{Op: op, Reason: fmt.Errorf("%w: loading matrix has rank < 2", solver.ErrSingular)}
	}

	lower := []float64{math.Inf(-1), math.Inf(-1), math.Inf(-1), math.Inf(-1), TauMin, TauMin}
	upper := []float64{math.Inf(1), math.Inf(1), math.Inf(1), math.Inf(1), TauMax, TauMax}
	full := solver.Problem{
		Residual: func(dst, x []float64) {
			residuals(dst, durations, values, ParamsFromVector(x))
		},
		Jacobian: func(dst *mat.Dense, x []float64) {
			Jacobian(dst, durations, ParamsFromVector(x))
		},
		M:     n,
		Lower: lower,
		Upper: upper,
	}

	// The separable pass runs first and may spend at most half of the budget.
	budget := cfg.settings.MaxEvaluations
	sepSettings := cfg.settings
	sepSettings.MaxEvaluations = max(1, budget/2)
	sepRes, sepErr := cfg.minimizer.Minimize(separableProblem(durations, values), []float64{initialTau1, initialTau2}, sepSettings)
	used := sepRes.Evaluations
	var sepParams Params
	if sepErr == nil {
		sepParams, sepErr = separableParams(durations, values, sepRes.X[0], sepRes.X[1])
	}

	var (
		fullRes solver.Result
		fullErr error
	)
	if remaining := budget - used; remaining > 0 {
		fullSettings := cfg.settings
		fullSettings.MaxEvaluations = remaining
		fullRes, fullErr = cfg.minimizer.Minimize(full, InitialGuess(values).Vector(), fullSettings)
		used += fullRes.Evaluations
	} else {
		fullErr = solver.ErrMaxEvaluations
	}

	var candidates []FitResult
	if fullErr == nil {
		p := ParamsFromVector(fullRes.X)
		candidates = append(candidates, FitResult{Params: p, Iterations: fullRes.Iterations, Method: PassFull, SSE: sse(durations, values, p)})
	}
	if sepErr == nil {
		candidates = append(candidates, FitResult{Params: sepParams, Iterations: sepRes.Iterations, Method: PassSeparable, SSE: sse(durations, values, sepParams)})
	}
	if len(candidates) == 0 {
		return FitResult{}, &FitError{Op: op, Reason: fullErr, Evaluations: used}
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.SSE < best.SSE {
			best = c
		}
	}
	if math.IsNaN(best.SSE) || math.IsInf(best.SSE, 0) {
		return FitResult{}, &FitError{Op: op, Reason: solver.ErrNonFinite, Evaluations: used}
	}
	best.Evaluations = used
	best.Converged = true
	best.Points = n
	return best, nil
}

// separableProblem returns the reduced problem over (τ1, τ2). Its Jacobian
// is left to finite differences.
func separableProblem(durations, values []float64) solver.Problem {
	return solver.Problem{
		Residual: func(dst, tau []float64) {
			p, err := separableParams(durations, values, tau[0], tau[1])
			if err != nil {
				for i := range dst {
					dst[i] = math.NaN()
				}
				return
			}
			residuals(dst, durations, values, p)
		},
		M:     len(durations),
		Lower: []float64{TauMin, TauMin},
		Upper: []float64{TauMax, TauMax},
	}
}

// separableParams solves the betas for fixed decay scales by minimum-norm
// linear least squares.
func separableParams(durations, values []float64, tau1, tau2 float64) (Params, error) {
	a := mat.NewDense(len(durations), 4, nil)
	Loadings(a, durations, tau1, tau2)
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return Params{}, fmt.Errorf("%w: svd of loading matrix failed", solver.ErrSingular)
	}
	rank := svd.Rank(rankTol)
	if rank < 1 {
		return Params{}, fmt.Errorf("%w: loading matrix has rank 0", solver.ErrSingular)
	}
	var beta mat.VecDense
	svd.SolveVecTo(&beta, mat.NewVecDense(len(values), values), rank)
	return Params{
		Beta0: beta.AtVec(0),
		Beta1: beta.AtVec(1),
		Beta2: beta.AtVec(2),
		Beta3: beta.AtVec(3),
		Tau1:  tau1,
		Tau2:  tau2,
	}, nil
}

func loadingRank(durations []float64, tau1, tau2 float64) int {
	a := mat.NewDense(len(durations), 4, nil)
	Loadings(a, durations, tau1, tau2)
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDNone) {
		return 0
	}
	return svd.Rank(rankTol)
}

func residuals(dst, durations, values []float64, p Params) {
	for i, t := range durations {
		dst[i] = Spread(t, p) - values[i]
	}
}

func sse(durations, values []float64, p Params) float64 {
	var s float64
	for i, t := range durations {
		d := Spread(t, p) - values[i]
		s += d * d
	}
	return s
}

func validateInput(durations, values []float64) error {
	if len(durations) != len(values) {
		return fmt.Errorf("%w: %d durations but %d values", ErrInvalidInput, len(durations), len(values))
	}
	if len(durations) == 0 {
		return fmt.Errorf("%w: no observations", ErrInvalidInput)
	}
	for i := range durations {
		t, v := durations[i], values[i]
		if math.IsNaN(t) || math.IsInf(t, 0) || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite observation %d (%v, %v)", ErrInvalidInput, i, t, v)
		}
		if t < 0 {
			return fmt.Errorf("%w: negative duration %v", ErrInvalidInput, t)
		}
	}
	return nil
}

// Outcome is the tagged result of Attempt: either Converged with a Result,
// or not converged with the Reason.
type Outcome struct {
	Converged bool
	Result    FitResult
	Reason    error
}

// Attempt runs Fit and folds a fit failure into an Outcome. Invalid input is
// still returned as an error.
func Attempt(durations, values []float64, opts ...FitOption) (Outcome, error) {
	res, err := Fit(durations, values, opts...)
	if err == nil {
		return Outcome{Converged: true, Result: res}, nil
	}
	if errors.Is(err, ErrFitFailure) {
		return Outcome{Reason: err}, nil
	}
	return Outcome{}, err
}
