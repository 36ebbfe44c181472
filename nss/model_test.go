package nss

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

func TestSpread(t *testing.T) {
	p := Params{Beta0: 1, Beta1: 2, Beta2: 3, Beta3: 4, Tau1: 1, Tau2: 2}

	type testCases struct {
		name string
		t    float64
		want float64
	}

	for _, test := range []testCases{
		{name: "zero duration", t: 0, want: 3},
		{name: "below limit threshold", t: 1e-12, want: 3},
		{name: "one year", t: 1, want: 3.7785965540768602},
	} {
		t.Run(test.name, func(t *testing.T) {
			require.InDelta(t, test.want, Spread(test.t, p), 1e-12)
		})
	}
}

func TestSpreadZeroLimitIsExact(t *testing.T) {
	for _, p := range []Params{
		{Beta0: 50, Beta1: -50, Beta2: 50, Beta3: 0, Tau1: 2, Tau2: 5},
		{Beta0: 0.1, Beta1: 7.3, Beta2: -2, Beta3: 11, Tau1: 0.1, Tau2: 20},
	} {
		require.Equal(t, p.Beta0+p.Beta1, Spread(0, p))
	}
}

func TestSpreadContinuousNearZero(t *testing.T) {
	p := Params{Beta0: 10, Beta1: -5, Beta2: 3, Beta3: 2, Tau1: 1.5, Tau2: 6}
	require.InDelta(t, Spread(0, p), Spread(1e-8, p), 1e-6)
}

func TestPredict(t *testing.T) {
	p := Params{Beta0: 60, Beta1: -30, Beta2: 40, Beta3: -20, Tau1: 1.5, Tau2: 8}
	durations := []float64{30, 0, 5, 1}
	orig := append([]float64(nil), durations...)

	got := Predict(durations, p)
	require.Len(t, got, len(durations))
	for i, d := range durations {
		require.Equal(t, Spread(d, p), got[i])
	}
	require.Equal(t, orig, durations)
	require.Empty(t, Predict(nil, p))
}

func TestParamsValidate(t *testing.T) {
	type testCases struct {
		name    string
		params  Params
		wantErr bool
	}

	for _, test := range []testCases{
		{name: "OK", params: Params{Tau1: 1, Tau2: 2}},
		{name: "zero tau", params: Params{Tau1: 0, Tau2: 2}, wantErr: true},
		{name: "negative tau", params: Params{Tau1: 1, Tau2: -2}, wantErr: true},
		{name: "NaN beta", params: Params{Beta2: math.NaN(), Tau1: 1, Tau2: 2}, wantErr: true},
	} {
		t.Run(test.name, func(t *testing.T) {
			err := test.params.Validate()
			if test.wantErr {
				require.ErrorIs(t, err, ErrInvalidParams)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestParamsVectorRoundTrip(t *testing.T) {
	p := Params{Beta0: 1, Beta1: 2, Beta2: 3, Beta3: 4, Tau1: 5, Tau2: 6}
	require.Equal(t, []float64{1, 2, 3, 4, 5, 6}, p.Vector())
	require.Equal(t, p, ParamsFromVector(p.Vector()))
}

func TestJacobianMatchesFiniteDifferences(t *testing.T) {
	durations := []float64{0, 0.5, 1, 3, 7, 15, 30}
	for _, p := range []Params{
		{Beta0: 50, Beta1: -50, Beta2: 50, Beta3: 0, Tau1: 2, Tau2: 5},
		{Beta0: 60, Beta1: -30, Beta2: 40, Beta3: -20, Tau1: 1.5, Tau2: 8},
		{Beta0: 1, Beta1: 2, Beta2: -3, Beta3: 4, Tau1: 0.1, Tau2: 20},
	} {
		analytic := mat.NewDense(len(durations), 6, nil)
		Jacobian(analytic, durations, p)

		numeric := mat.NewDense(len(durations), 6, nil)
		fd.Jacobian(numeric, func(y, x []float64) {
			copy(y, Predict(durations, ParamsFromVector(x)))
		}, p.Vector(), &fd.JacobianSettings{Formula: fd.Central})

		for i := range durations {
			for j := 0; j < 6; j++ {
				want := numeric.At(i, j)
				require.InDelta(t, want, analytic.At(i, j), 1e-5*math.Max(1, math.Abs(want)), "row %d col %d", i, j)
			}
		}
	}
}

func TestLoadingsAreJacobianBetaColumns(t *testing.T) {
	durations := []float64{0, 1, 2, 10}
	p := Params{Beta0: 3, Beta1: 1, Beta2: 4, Beta3: 1, Tau1: 5, Tau2: 9}

	jac := mat.NewDense(len(durations), 6, nil)
	Jacobian(jac, durations, p)
	load := mat.NewDense(len(durations), 4, nil)
	Loadings(load, durations, p.Tau1, p.Tau2)

	require.True(t, mat.Equal(jac.Slice(0, len(durations), 0, 4), load))
	row := load.RawRowView(0)
	require.Equal(t, []float64{1, 1, 0, 0}, row)
}
