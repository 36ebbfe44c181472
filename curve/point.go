// Package curve turns raw (duration, OAS) observations into a fitted spread
// curve, falling back from the NSS model to interpolation when needed.
package curve

import (
	"math"
	"sort"
)

// Point is one bond observation.
type Point struct {
	Name     string  `json:"name,omitempty"`
	Duration float64 `json:"duration"`
	Value    float64 `json:"value"`
}

// Split returns the durations and values of points as parallel slices.
func Split(points []Point) (durations, values []float64) {
	durations = make([]float64, len(points))
	values = make([]float64, len(points))
	for i, p := range points {
		durations[i] = p.Duration
		values[i] = p.Value
	}
	return durations, values
}

// Sorted returns a copy of points ordered by duration.
func Sorted(points []Point) []Point {
	out := append([]Point(nil), points...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Duration < out[j].Duration })
	return out
}

// Filter drops observations outside the configured ranges. Bounds are inclusive.
type Filter struct {
	MinDuration float64 `yaml:"minDuration"`
	MaxDuration float64 `yaml:"maxDuration"`
	MinValue    float64 `yaml:"minValue"`
	MaxValue    float64 `yaml:"maxValue"`
}

// DefaultFilter keeps durations of at least one year and spreads up to 150bp.
func DefaultFilter() Filter {
	return Filter{
		MinDuration: 1,
		MaxDuration: math.Inf(1),
		MinValue:    math.Inf(-1),
		MaxValue:    150,
	}
}

// NoFilter keeps every finite observation.
func NoFilter() Filter {
	return Filter{
		MinDuration: math.Inf(-1),
		MaxDuration: math.Inf(1),
		MinValue:    math.Inf(-1),
		MaxValue:    math.Inf(1),
	}
}

// Apply returns the finite points inside the ranges, in input order.
func (f Filter) Apply(points []Point) []Point {
	out := make([]Point, 0, len(points))
	for _, p := range points {
		if math.IsNaN(p.Duration) || math.IsNaN(p.Value) || math.IsInf(p.Duration, 0) || math.IsInf(p.Value, 0) {
			continue
		}
		if p.Duration < f.MinDuration || p.Duration > f.MaxDuration {
			continue
		}
		if p.Value < f.MinValue || p.Value > f.MaxValue {
			continue
		}
		out = append(out, p)
	}
	return out
}
