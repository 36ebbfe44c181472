// Package fitstat computes goodness-of-fit metrics and summary statistics.
package fitstat

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrInvalidInput reports empty or mismatched samples.
var ErrInvalidInput = errors.New("invalid input")

// GoodnessOfFit summarises how well predictions match observations.
type GoodnessOfFit struct {
	RSquared float64 `json:"r_squared"`
	RMSE     float64 `json:"rmse"`
	MAE      float64 `json:"mae"`
}

// Evaluate compares predictions with observations. R² is reported as 0 when
// the observations have no variance.
func Evaluate(actual, predicted []float64) (GoodnessOfFit, error) {
	res, err := Residuals(actual, predicted)
	if err != nil {
		return GoodnessOfFit{}, err
	}
	n := float64(len(res))

	var ssRes, absSum float64
	for _, r := range res {
		ssRes += r * r
		absSum += math.Abs(r)
	}
	mean := stat.Mean(actual, nil)
	var ssTot float64
	for _, y := range actual {
		ssTot += (y - mean) * (y - mean)
	}

	gof := GoodnessOfFit{
		RMSE: math.Sqrt(ssRes / n),
		MAE:  absSum / n,
	}
	if ssTot != 0 {
		gof.RSquared = 1 - ssRes/ssTot
	}
	return gof, nil
}

// Residuals returns actual[i] - predicted[i]. Both samples must be finite.
func Residuals(actual, predicted []float64) ([]float64, error) {
	if len(actual) != len(predicted) {
		return nil, fmt.Errorf("%w: %d observations but %d predictions", ErrInvalidInput, len(actual), len(predicted))
	}
	if len(actual) == 0 {
		return nil, fmt.Errorf("%w: empty sample", ErrInvalidInput)
	}
	if i := firstNonFinite(actual); i >= 0 {
		return nil, fmt.Errorf("%w: non-finite observation %d (%v)", ErrInvalidInput, i, actual[i])
	}
	if i := firstNonFinite(predicted); i >= 0 {
		return nil, fmt.Errorf("%w: non-finite prediction %d (%v)", ErrInvalidInput, i, predicted[i])
	}
	res := make([]float64, len(actual))
	floats.SubTo(res, actual, predicted)
	return res, nil
}

// Summary is a describe()-style digest of one column.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Describe summarises values. StdDev is the sample standard deviation, zero
// for a single value.
func Describe(values []float64) (Summary, error) {
	if len(values) == 0 {
		return Summary{}, fmt.Errorf("%w: empty sample", ErrInvalidInput)
	}
	if i := firstNonFinite(values); i >= 0 {
		return Summary{}, fmt.Errorf("%w: non-finite value %d (%v)", ErrInvalidInput, i, values[i])
	}
	s := Summary{
		Count: len(values),
		Mean:  stat.Mean(values, nil),
		Min:   floats.Min(values),
		Max:   floats.Max(values),
	}
	if len(values) > 1 {
		s.StdDev = stat.StdDev(values, nil)
	}
	return s, nil
}

func firstNonFinite(s []float64) int {
	for i, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return i
		}
	}
	return -1
}
