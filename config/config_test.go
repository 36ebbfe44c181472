package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OASCURVE_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), *cfg)
	require.Equal(t, 150.0, cfg.Filter.MaxValue)
	require.Equal(t, 1.0, cfg.Filter.MinDuration)
	require.Equal(t, 10000, cfg.Fit.MaxEvaluations)
	require.Equal(t, "bid_years_to_wkout", cfg.Columns.Duration)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  address: ":9090"
logging:
  level: debug
  json: true
fit:
  method: neldermead
  maxEvaluations: 500
  minPoints: 6
filter:
  maxValue: .inf
  minDuration: 0
grid:
  points: 50
columns:
  issuer: ticker
cache:
  enabled: false
  ttl: 30s
rate:
  idle: 2m
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Server.Address)
	require.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.True(t, cfg.Logging.JSON)
	require.Equal(t, "neldermead", cfg.Fit.Method)
	require.Equal(t, 500, cfg.Fit.MaxEvaluations)
	require.True(t, math.IsInf(cfg.Filter.MaxValue, 1))
	require.Equal(t, 0.0, cfg.Filter.MinDuration)
	require.Equal(t, "ticker", cfg.Columns.Issuer)
	require.Equal(t, "oas", cfg.Columns.Value)
	require.False(t, cfg.Cache.Enabled)
	require.Equal(t, 30*time.Second, cfg.Cache.TTL)
	require.Equal(t, 2*time.Minute, cfg.Rate.Idle)
	require.Equal(t, 2, cfg.Rate.Burst)

	opts := cfg.AnalyzeOptions()
	require.Equal(t, 6, opts.MinNSSPoints)
	require.Equal(t, 50, opts.GridPoints)
	require.Len(t, opts.FitOptions, 3)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "fit:\n  method: neldermead\n")
	t.Setenv("OASCURVE_SERVER_ADDRESS", ":7000")
	t.Setenv("OASCURVE_LOG_FORMAT", "JSON")
	t.Setenv("OASCURVE_FIT_METHOD", "lm")
	t.Setenv("OASCURVE_FIT_MAX_EVALUATIONS", "2000")
	t.Setenv("OASCURVE_FILTER_MAX_OAS", "300")
	t.Setenv("OASCURVE_FILTER_MIN_DURATION", "0.5")
	t.Setenv("OASCURVE_AUTH_KEYS", "abcdefgh:$2a$10$hash, ijklmnop:$2a$10$other")
	t.Setenv("OASCURVE_CACHE_ENABLED", "0")
	t.Setenv("OASCURVE_CACHE_TTL", "1m")
	t.Setenv("OASCURVE_BATCH_WORKERS", "8")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":7000", cfg.Server.Address)
	require.True(t, cfg.Logging.JSON)
	require.Equal(t, "lm", cfg.Fit.Method)
	require.Equal(t, 2000, cfg.Fit.MaxEvaluations)
	require.Equal(t, 300.0, cfg.Filter.MaxValue)
	require.Equal(t, 0.5, cfg.Filter.MinDuration)
	require.True(t, cfg.Auth.Enabled)
	require.Equal(t, map[string]string{"abcdefgh": "$2a$10$hash", "ijklmnop": "$2a$10$other"}, cfg.Auth.Keys)
	require.False(t, cfg.Cache.Enabled)
	require.Equal(t, time.Minute, cfg.Cache.TTL)
	require.Equal(t, 8, cfg.Batch.Workers)
}

func TestLoadErrors(t *testing.T) {
	type testCases struct {
		name string
		path string
		env  map[string]string
	}

	for _, test := range []testCases{
		{name: "missing file", path: filepath.Join(t.TempDir(), "nope.yaml")},
		{name: "bad yaml", path: writeConfig(t, "fit: [")},
		{name: "bad method", path: writeConfig(t, "fit:\n  method: bfgs\n")},
		{name: "bad grid", path: writeConfig(t, "grid:\n  points: 1\n")},
		{name: "empty filter", path: writeConfig(t, "filter:\n  minDuration: 10\n  maxDuration: 5\n")},
		{name: "negative rate idle", path: writeConfig(t, "rate:\n  idle: -1s\n")},
		{name: "auth without keys", path: writeConfig(t, "auth:\n  enabled: true\n")},
		{name: "bad evaluations env", env: map[string]string{"OASCURVE_FIT_MAX_EVALUATIONS": "many"}},
		{name: "zero evaluations env", env: map[string]string{"OASCURVE_FIT_MAX_EVALUATIONS": "0"}},
		{name: "bad auth env", env: map[string]string{"OASCURVE_AUTH_KEYS": "nocolon"}},
		{name: "bad ttl env", env: map[string]string{"OASCURVE_CACHE_TTL": "soon"}},
		{name: "bad oas env", env: map[string]string{"OASCURVE_FILTER_MAX_OAS": "wide"}},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Setenv("OASCURVE_CONFIG", "")
			for k, v := range test.env {
				t.Setenv(k, v)
			}
			_, err := Load(test.path)
			require.Error(t, err)
		})
	}
}

func TestFitOptionsMethod(t *testing.T) {
	fc := Default().Fit
	require.Len(t, fc.FitOptions(), 3)
	fc.Method = "NelderMead"
	require.NoError(t, Config{Fit: fc, Grid: GridConfig{Points: 2}}.Validate())
}
