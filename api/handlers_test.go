package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	mockapi "github.com/banachtech/oascurve/api/mock"
	"github.com/banachtech/oascurve/curve"
	"github.com/banachtech/oascurve/fallback"
	"github.com/banachtech/oascurve/fitstat"
	"github.com/banachtech/oascurve/nss"
	"github.com/banachtech/oascurve/util"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

func exampleCurve() ([]float64, []float64) {
	d := append([]float64(nil), util.ExampleDurations...)
	v := make([]float64, len(d))
	for i, t := range d {
		v[i] = util.ExampleShape(t)
	}
	return d, v
}

func TestFitAPI(t *testing.T) {
	durations, values := exampleCurve()
	params := nss.Params{Beta0: 55, Beta1: -5, Beta2: 10, Beta3: 1, Tau1: 2, Tau2: 8}
	result := nss.FitResult{Params: params, Evaluations: 40, Converged: true, Method: nss.PassFull, Points: len(durations)}

	testCases := []struct {
		name          string
		body          any
		buildStubs    func(analyzer *mockapi.MockAnalyzer)
		checkResponse func(t *testing.T, recorder *httptest.ResponseRecorder)
	}{
		{
			name: "OK",
			body: fitRequest{Durations: durations, Values: values},
			buildStubs: func(analyzer *mockapi.MockAnalyzer) {
				analyzer.EXPECT().Fit(gomock.Eq(durations), gomock.Eq(values)).Times(1).Return(result, nil)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusOK, recorder.Code)
				resp := decode[fitResponse](t, recorder)
				require.Equal(t, result, resp.Fit)
				require.False(t, resp.LowConfidence)
				want, err := fitstat.Evaluate(values, nss.Predict(durations, params))
				require.NoError(t, err)
				require.InDelta(t, want.RMSE, resp.Goodness.RMSE, 1e-9)
			},
		},
		{
			name: "LowConfidence",
			body: fitRequest{Durations: durations[:3], Values: values[:3]},
			buildStubs: func(analyzer *mockapi.MockAnalyzer) {
				sparse := result
				sparse.Points = 3
				analyzer.EXPECT().Fit(gomock.Any(), gomock.Any()).Times(1).Return(sparse, nil)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusOK, recorder.Code)
				require.True(t, decode[fitResponse](t, recorder).LowConfidence)
			},
		},
		{
			name: "BadRequest",
			body: map[string]any{"durations": "soon"},
			buildStubs: func(analyzer *mockapi.MockAnalyzer) {
				analyzer.EXPECT().Fit(gomock.Any(), gomock.Any()).Times(0)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusBadRequest, recorder.Code)
			},
		},
		{
			name: "InvalidInput",
			body: fitRequest{Durations: []float64{-1}, Values: []float64{1}},
			buildStubs: func(analyzer *mockapi.MockAnalyzer) {
				analyzer.EXPECT().Fit(gomock.Any(), gomock.Any()).Times(1).Return(nss.FitResult{}, fmt.Errorf("%w: negative duration", nss.ErrInvalidInput))
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusBadRequest, recorder.Code)
			},
		},
		{
			name: "FitFailure",
			body: fitRequest{Durations: []float64{5, 5, 5}, Values: []float64{1, 2, 3}},
			buildStubs: func(analyzer *mockapi.MockAnalyzer) {
				analyzer.EXPECT().Fit(gomock.Any(), gomock.Any()).Times(1).Return(nss.FitResult{}, &nss.FitError{Op: "fit", Reason: errors.New("singular")})
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
			},
		},
		{
			name: "InternalError",
			body: fitRequest{Durations: durations, Values: values},
			buildStubs: func(analyzer *mockapi.MockAnalyzer) {
				analyzer.EXPECT().Fit(gomock.Any(), gomock.Any()).Times(1).Return(nss.FitResult{}, errors.New("boom"))
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusInternalServerError, recorder.Code)
			},
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			analyzer := mockapi.NewMockAnalyzer(ctrl)
			tc.buildStubs(analyzer)

			server := newTestServer(t, analyzer, testConfig())
			recorder := postJSON(t, server, "/v1/fit", tc.body)
			tc.checkResponse(t, recorder)
		})
	}
}

func TestPredictAPI(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	server := newTestServer(t, mockapi.NewMockAnalyzer(ctrl), testConfig())

	params := nss.Params{Beta0: 3, Beta1: 1, Beta2: 1, Beta3: 1, Tau1: 1, Tau2: 1}
	recorder := postJSON(t, server, "/v1/predict", predictRequest{Durations: []float64{0, 1}, Params: params})
	require.Equal(t, http.StatusOK, recorder.Code)
	resp := decode[map[string][]float64](t, recorder)
	require.InDeltaSlice(t, nss.Predict([]float64{0, 1}, params), resp["values"], 1e-12)

	params.Tau1 = 0
	recorder = postJSON(t, server, "/v1/predict", predictRequest{Durations: []float64{1}, Params: params})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestInterpolateAPI(t *testing.T) {
	durations := []float64{1, 2, 5}
	values := []float64{80, 85, 95}
	ip, err := fallback.Build(durations, values)
	require.NoError(t, err)

	testCases := []struct {
		name          string
		body          interpolateRequest
		buildStubs    func(analyzer *mockapi.MockAnalyzer)
		checkResponse func(t *testing.T, recorder *httptest.ResponseRecorder)
	}{
		{
			name: "OK",
			body: interpolateRequest{Durations: durations, Values: values, At: []float64{0, 2, 10}},
			buildStubs: func(analyzer *mockapi.MockAnalyzer) {
				analyzer.EXPECT().Interpolate(gomock.Eq(durations), gomock.Eq(values)).Times(1).Return(ip, nil)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusOK, recorder.Code)
				resp := decode[interpolateResponse](t, recorder)
				require.Equal(t, fallback.KindPCHIP, resp.Kind)
				require.Equal(t, [2]float64{1, 5}, resp.Domain)
				require.InDeltaSlice(t, []float64{80, 85, 95}, resp.Values, 1e-9)
			},
		},
		{
			name: "Unavailable",
			body: interpolateRequest{Durations: []float64{1}, Values: []float64{80}, At: []float64{1}},
			buildStubs: func(analyzer *mockapi.MockAnalyzer) {
				analyzer.EXPECT().Interpolate(gomock.Any(), gomock.Any()).Times(1).Return(nil, fallback.ErrInterpolationUnavailable)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
			},
		},
		{
			name: "Duplicate",
			body: interpolateRequest{Durations: []float64{1, 1, 2}, Values: []float64{80, 81, 82}, At: []float64{1}},
			buildStubs: func(analyzer *mockapi.MockAnalyzer) {
				analyzer.EXPECT().Interpolate(gomock.Any(), gomock.Any()).Times(1).Return(nil, fallback.ErrDuplicateDuration)
			},
			checkResponse: func(t *testing.T, recorder *httptest.ResponseRecorder) {
				require.Equal(t, http.StatusBadRequest, recorder.Code)
			},
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			analyzer := mockapi.NewMockAnalyzer(ctrl)
			tc.buildStubs(analyzer)

			server := newTestServer(t, analyzer, testConfig())
			recorder := postJSON(t, server, "/v1/interpolate", tc.body)
			tc.checkResponse(t, recorder)
		})
	}
}

func TestGoodnessAPI(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	server := newTestServer(t, mockapi.NewMockAnalyzer(ctrl), testConfig())

	recorder := postJSON(t, server, "/v1/goodness", goodnessRequest{Actual: []float64{1, 2, 3}, Predicted: []float64{1, 2, 4}})
	require.Equal(t, http.StatusOK, recorder.Code)
	gof := decode[fitstat.GoodnessOfFit](t, recorder)
	require.InDelta(t, 0.5, gof.RSquared, 1e-12)
	require.InDelta(t, math.Sqrt(1.0/3), gof.RMSE, 1e-12)
	require.InDelta(t, 1.0/3, gof.MAE, 1e-12)

	recorder = postJSON(t, server, "/v1/goodness", goodnessRequest{Actual: []float64{1, 2}, Predicted: []float64{1}})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestAnalyzeAPI(t *testing.T) {
	points := []curve.Point{{Name: "A", Duration: 1, Value: 80}, {Name: "B", Duration: 3, Value: 90}}
	analysis := curve.Analysis{
		Method: curve.MethodLinear,
		Points: points,
		Grid:   []float64{1, 3},
		Curve:  []float64{80, 90},
	}

	t.Run("OK", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		maxOAS := 120.0
		want := testConfig().Filter
		want.MaxValue = maxOAS

		analyzer := mockapi.NewMockAnalyzer(ctrl)
		analyzer.EXPECT().Analyze(gomock.Eq(points), gomock.Eq(want)).Times(1).Return(analysis, nil)

		server := newTestServer(t, analyzer, testConfig())
		recorder := postJSON(t, server, "/v1/analyze", analyzeRequest{Points: points, Filter: &filterRequest{MaxValue: &maxOAS}})
		require.Equal(t, http.StatusOK, recorder.Code)
		resp := decode[analyzeResponse](t, recorder)
		require.Equal(t, curve.MethodLinear, resp.Analysis.Method)
		require.Equal(t, 2, resp.Summary.Count)
		require.Equal(t, 85.0, resp.Summary.Mean)
	})

	t.Run("Cached", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		analyzer := mockapi.NewMockAnalyzer(ctrl)
		analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any()).Times(1).Return(analysis, nil)

		cfg := testConfig()
		cfg.Cache.Enabled = true
		server := newTestServer(t, analyzer, cfg)
		for i := 0; i < 3; i++ {
			recorder := postJSON(t, server, "/v1/analyze", analyzeRequest{Points: points})
			require.Equal(t, http.StatusOK, recorder.Code)
		}
	})

	t.Run("Insufficient", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		analyzer := mockapi.NewMockAnalyzer(ctrl)
		analyzer.EXPECT().Analyze(gomock.Any(), gomock.Any()).Times(1).Return(curve.Analysis{}, curve.ErrInsufficientData)

		server := newTestServer(t, analyzer, testConfig())
		recorder := postJSON(t, server, "/v1/analyze", analyzeRequest{Points: points[:1]})
		require.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
	})
}

func TestEngine(t *testing.T) {
	durations, values := exampleCurve()
	engine := NewEngine(curve.Options{GridPoints: 10})
	server := newTestServer(t, engine, testConfig())

	recorder := postJSON(t, server, "/v1/fit", fitRequest{Durations: durations, Values: values})
	require.Equal(t, http.StatusOK, recorder.Code)
	resp := decode[fitResponse](t, recorder)
	require.Greater(t, resp.Goodness.RSquared, 0.999)

	points := make([]curve.Point, len(durations))
	for i := range durations {
		points[i] = curve.Point{Duration: durations[i], Value: values[i]}
	}
	points = append(points, curve.Point{Duration: 0.5, Value: 70}, curve.Point{Duration: 8, Value: 400})
	a, err := engine.Analyze(points, curve.DefaultFilter())
	require.NoError(t, err)
	require.Equal(t, curve.MethodNSS, a.Method)
	require.Len(t, a.Points, len(durations))
	require.Len(t, a.Curve, 10)

	ip, err := engine.Interpolate([]float64{1, 2}, []float64{3, 4})
	require.NoError(t, err)
	require.Equal(t, fallback.KindLinear, ip.Kind())

	recorder = httptest.NewRecorder()
	request, err := http.NewRequest(http.MethodGet, "/metrics", nil)
	require.NoError(t, err)
	server.Handler().ServeHTTP(recorder, request)
	require.Equal(t, http.StatusOK, recorder.Code)
}
