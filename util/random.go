package util

import (
	"fmt"
	"math"
	"strings"

	"github.com/banachtech/oascurve/curve"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz"

// ExampleDurations are the durations of the synthetic example curve.
var ExampleDurations = []float64{1, 2, 3, 5, 7, 10, 15, 20, 30}

// ExampleShape is a U-shaped spread curve: 50 + 20e^(-t/5) + 0.5t.
func ExampleShape(t float64) float64 {
	return 50 + 20*math.Exp(-t/5) + 0.5*t
}

// RandomCurve samples shape at each duration and adds N(0, sigma²) noise.
// The same seed always gives the same curve.
func RandomCurve(seed uint64, durations []float64, shape func(float64) float64, sigma float64) []curve.Point {
	src := rand.NewSource(seed)
	noise := distuv.Normal{Mu: 0, Sigma: sigma, Src: src}
	rnd := rand.New(src)
	prefix := strings.ToUpper(RandomString(rnd, 4))

	points := make([]curve.Point, len(durations))
	for i, t := range durations {
		v := shape(t)
		if sigma > 0 {
			v += noise.Rand()
		}
		points[i] = curve.Point{
			Name:     fmt.Sprintf("%s %.2f", prefix, t),
			Duration: t,
			Value:    v,
		}
	}
	return points
}

// RandomString generates a random lowercase string of length n.
func RandomString(rnd *rand.Rand, n int) string {
	var sb strings.Builder
	k := len(alphabet)

	for i := 0; i < n; i++ {
		c := alphabet[rnd.Intn(k)]
		sb.WriteByte(c)
	}

	return sb.String()
}

// RandomFloat returns a uniform value in [min, max).
func RandomFloat(rnd *rand.Rand, min, max float64) float64 {
	return min + (max-min)*rnd.Float64()
}
