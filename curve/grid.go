package curve

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	// DefaultGridPoints is the resolution of the smooth curve.
	DefaultGridPoints = 500
	// gridStart is the shortest duration on the smooth curve.
	gridStart = 0.1
)

// Grid returns n evenly spaced durations from max(0.1, lo) to hi. A
// degenerate range yields the single duration hi.
func Grid(lo, hi float64, n int) []float64 {
	lo = math.Max(gridStart, lo)
	if n < 2 || lo >= hi {
		return []float64{hi}
	}
	return floats.Span(make([]float64, n), lo, hi)
}
