package api

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/banachtech/oascurve/curve"
	"github.com/banachtech/oascurve/fallback"
	"github.com/banachtech/oascurve/fitstat"
	"github.com/banachtech/oascurve/metrics"
	"github.com/banachtech/oascurve/nss"
	"github.com/gin-gonic/gin"
)

type fitRequest struct {
	Durations []float64 `json:"durations" binding:"required"`
	Values    []float64 `json:"values" binding:"required"`
}

type fitResponse struct {
	Fit           nss.FitResult         `json:"fit"`
	Goodness      fitstat.GoodnessOfFit `json:"goodness"`
	LowConfidence bool                  `json:"low_confidence"`
}

type predictRequest struct {
	Durations []float64  `json:"durations" binding:"required"`
	Params    nss.Params `json:"params"`
}

type interpolateRequest struct {
	Durations []float64 `json:"durations" binding:"required"`
	Values    []float64 `json:"values" binding:"required"`
	At        []float64 `json:"at" binding:"required"`
}

type interpolateResponse struct {
	Kind   fallback.Kind `json:"kind"`
	Domain [2]float64    `json:"domain"`
	Values []float64     `json:"values"`
}

type goodnessRequest struct {
	Actual    []float64 `json:"actual" binding:"required"`
	Predicted []float64 `json:"predicted" binding:"required"`
}

// filterRequest overrides the configured filter bound by bound.
type filterRequest struct {
	MinDuration *float64 `json:"min_duration"`
	MaxDuration *float64 `json:"max_duration"`
	MinValue    *float64 `json:"min_value"`
	MaxValue    *float64 `json:"max_value"`
}

type analyzeRequest struct {
	Points []curve.Point  `json:"points" binding:"required"`
	Filter *filterRequest `json:"filter"`
}

type analyzeResponse struct {
	Analysis curve.Analysis  `json:"analysis"`
	Summary  fitstat.Summary `json:"summary"`
}

func (server *Server) fit(c *gin.Context) {
	var req fitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse(err))
		return
	}

	res, err := server.analyzer.Fit(req.Durations, req.Values)
	if err != nil {
		metrics.ObserveFit(string(curve.MethodNSS), metrics.OutcomeError, 0)
		server.logger.Info("nss fit failed", slog.Int("points", len(req.Durations)), slog.Any("error", err))
		c.AbortWithStatusJSON(statusFor(err), errorResponse(err))
		return
	}
	metrics.ObserveFit(string(curve.MethodNSS), metrics.OutcomeSuccess, res.Evaluations)

	gof, err := fitstat.Evaluate(req.Values, nss.Predict(req.Durations, res.Params))
	if err != nil {
		c.AbortWithStatusJSON(statusFor(err), errorResponse(err))
		return
	}
	c.JSON(http.StatusOK, fitResponse{Fit: res, Goodness: gof, LowConfidence: res.LowConfidence()})
}

func (server *Server) predict(c *gin.Context) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse(err))
		return
	}
	if err := req.Params.Validate(); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"values": nss.Predict(req.Durations, req.Params)})
}

func (server *Server) interpolate(c *gin.Context) {
	var req interpolateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse(err))
		return
	}

	ip, err := server.analyzer.Interpolate(req.Durations, req.Values)
	if err != nil {
		c.AbortWithStatusJSON(statusFor(err), errorResponse(err))
		return
	}
	lo, hi := ip.Domain()
	c.JSON(http.StatusOK, interpolateResponse{
		Kind:   ip.Kind(),
		Domain: [2]float64{lo, hi},
		Values: ip.Evaluate(req.At),
	})
}

func (server *Server) goodness(c *gin.Context) {
	var req goodnessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse(err))
		return
	}

	gof, err := fitstat.Evaluate(req.Actual, req.Predicted)
	if err != nil {
		c.AbortWithStatusJSON(statusFor(err), errorResponse(err))
		return
	}
	c.JSON(http.StatusOK, gof)
}

func (server *Server) analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse(err))
		return
	}
	filter := server.resolveFilter(req.Filter)

	key := cacheKey(req.Points, filter)
	if server.cache != nil {
		if cached, ok := server.cache.Get(key); ok {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	a, err := server.analyzer.Analyze(req.Points, filter)
	if err != nil {
		metrics.ObserveFit("", metrics.OutcomeError, 0)
		server.logger.Info("analysis failed", slog.Int("points", len(req.Points)), slog.Any("error", err))
		c.AbortWithStatusJSON(statusFor(err), errorResponse(err))
		return
	}
	evaluations := 0
	if a.Fit != nil {
		evaluations = a.Fit.Evaluations
	}
	metrics.ObserveFit(string(a.Method), metrics.OutcomeSuccess, evaluations)

	_, values := curve.Split(a.Points)
	resp := analyzeResponse{Analysis: a}
	if s, err := fitstat.Describe(values); err == nil {
		resp.Summary = s
	}
	if server.cache != nil {
		server.cache.SetDefault(key, resp)
	}
	c.JSON(http.StatusOK, resp)
}

func (server *Server) resolveFilter(req *filterRequest) curve.Filter {
	f := server.cfg.Filter
	if req == nil {
		return f
	}
	if req.MinDuration != nil {
		f.MinDuration = *req.MinDuration
	}
	if req.MaxDuration != nil {
		f.MaxDuration = *req.MaxDuration
	}
	if req.MinValue != nil {
		f.MinValue = *req.MinValue
	}
	if req.MaxValue != nil {
		f.MaxValue = *req.MaxValue
	}
	return f
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, nss.ErrInvalidInput),
		errors.Is(err, fallback.ErrInvalidInput),
		errors.Is(err, fitstat.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, nss.ErrFitFailure),
		errors.Is(err, fallback.ErrInterpolationUnavailable),
		errors.Is(err, curve.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func cacheKey(points []curve.Point, f curve.Filter) string {
	h := sha256.New()
	fmt.Fprintf(h, "%v|%v", f, points)
	return hex.EncodeToString(h.Sum(nil))
}
