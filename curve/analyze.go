package curve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/banachtech/oascurve/fallback"
	"github.com/banachtech/oascurve/fitstat"
	"github.com/banachtech/oascurve/nss"
	"gonum.org/v1/gonum/floats"
)

// ErrInsufficientData is returned when no curve can be drawn through the points.
var ErrInsufficientData = errors.New("insufficient data: fewer than 2 distinct durations")

// Method names how an Analysis curve was produced.
type Method string

const (
	MethodNSS    Method = "nss"
	MethodPCHIP  Method = "pchip"
	MethodLinear Method = "linear"
)

// Options tunes Analyze.
type Options struct {
	// MinNSSPoints skips the parametric fit for smaller samples. Zero means 1.
	MinNSSPoints int
	// GridPoints is the smooth curve resolution. Zero means DefaultGridPoints.
	GridPoints int
	// FitOptions are passed to nss.Fit.
	FitOptions []nss.FitOption
}

// ComparisonOptions fit NSS only to curves with enough points to pin down
// all six parameters, as in the multi-issuer comparison view.
func ComparisonOptions() Options {
	return Options{MinNSSPoints: nss.MinPoints}
}

// Analysis is a fitted curve over a set of observations.
type Analysis struct {
	Method   Method                `json:"method"`
	Points   []Point               `json:"points"`
	Fit      *nss.FitResult        `json:"fit,omitempty"`
	Goodness fitstat.GoodnessOfFit `json:"goodness"`
	Grid     []float64             `json:"grid"`
	Curve    []float64             `json:"curve"`
	// Failures lists why earlier methods in the chain were skipped.
	Failures []string `json:"failures,omitempty"`
}

// Predict evaluates the analysed curve at each duration.
func (a Analysis) Predict(durations []float64) ([]float64, error) {
	if a.Fit != nil {
		return nss.Predict(durations, a.Fit.Params), nil
	}
	d, v := Split(a.Points)
	ip, err := fallback.Build(d, v)
	if err != nil {
		return nil, err
	}
	return ip.Evaluate(durations), nil
}

// Analyze fits the points with NSS and falls back to a monotone cubic
// interpolant (three or more distinct durations) or a straight line (two).
// The points are sorted by duration in the result. Callers filter first.
func Analyze(points []Point, opts Options) (Analysis, error) {
	sorted := Sorted(points)
	if len(sorted) == 0 {
		return Analysis{}, ErrInsufficientData
	}
	durations, values := Split(sorted)
	a := Analysis{
		Points: sorted,
		Grid:   Grid(floats.Min(durations), floats.Max(durations), gridSize(opts)),
	}

	minNSS := opts.MinNSSPoints
	if minNSS < 1 {
		minNSS = 1
	}
	if len(sorted) >= minNSS {
		outcome, err := nss.Attempt(durations, values, opts.FitOptions...)
		if err != nil {
			return Analysis{}, err
		}
		if outcome.Converged {
			fit := outcome.Result
			a.Method = MethodNSS
			a.Fit = &fit
			a.Curve = nss.Predict(a.Grid, fit.Params)
			if a.Goodness, err = fitstat.Evaluate(values, nss.Predict(durations, fit.Params)); err != nil {
				return Analysis{}, err
			}
			return a, nil
		}
		a.Failures = append(a.Failures, outcome.Reason.Error())
	} else {
		a.Failures = append(a.Failures, fmt.Sprintf("nss skipped: %d points, need %d", len(sorted), minNSS))
	}

	ip, err := fallback.Build(durations, values)
	if err != nil {
		if errors.Is(err, fallback.ErrInterpolationUnavailable) {
			return Analysis{}, fmt.Errorf("%w (%s)", ErrInsufficientData, strings.Join(a.Failures, "; "))
		}
		return Analysis{}, err
	}
	a.Method = MethodPCHIP
	if ip.Kind() == fallback.KindLinear {
		a.Method = MethodLinear
	}
	a.Curve = ip.Evaluate(a.Grid)
	if a.Goodness, err = fitstat.Evaluate(values, ip.Evaluate(durations)); err != nil {
		return Analysis{}, err
	}
	return a, nil
}

func gridSize(opts Options) int {
	if opts.GridPoints > 0 {
		return opts.GridPoints
	}
	return DefaultGridPoints
}
