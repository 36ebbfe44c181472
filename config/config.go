// Package config loads service and CLI settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/banachtech/oascurve/curve"
	"github.com/banachtech/oascurve/data"
	"github.com/banachtech/oascurve/nss"
	"github.com/banachtech/oascurve/solver"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Fit     FitConfig     `yaml:"fit"`
	Filter  curve.Filter  `yaml:"filter"`
	Grid    GridConfig    `yaml:"grid"`
	Columns data.Columns  `yaml:"columns"`
	Auth    AuthConfig    `yaml:"auth"`
	Rate    RateConfig    `yaml:"rate"`
	Cache   CacheConfig   `yaml:"cache"`
	Batch   BatchConfig   `yaml:"batch"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Address     string        `yaml:"address"`
	ReadTimeout time.Duration `yaml:"readTimeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// FitConfig selects the minimiser and its limits.
type FitConfig struct {
	Method         string  `yaml:"method"`
	MaxEvaluations int     `yaml:"maxEvaluations"`
	FTol           float64 `yaml:"ftol"`
	XTol           float64 `yaml:"xtol"`
	GTol           float64 `yaml:"gtol"`
	// MinPoints skips NSS for sparser curves.
	MinPoints int `yaml:"minPoints"`
}

type GridConfig struct {
	Points int `yaml:"points"`
}

// AuthConfig maps API key prefixes to the bcrypt hash of the full key.
type AuthConfig struct {
	Enabled bool              `yaml:"enabled"`
	Keys    map[string]string `yaml:"keys"`
}

// RateConfig is the per-key token bucket. Buckets idle for longer than Idle
// are dropped.
type RateConfig struct {
	PerSecond float64       `yaml:"perSecond"`
	Burst     int           `yaml:"burst"`
	Idle      time.Duration `yaml:"idle"`
}

// CacheConfig controls memoisation of analyses.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
	Cleanup time.Duration `yaml:"cleanup"`
}

type BatchConfig struct {
	Workers  int  `yaml:"workers"`
	Progress bool `yaml:"progress"`
}

// Load builds a Config from defaults, the optional YAML file at path, a .env
// file in the working directory and OASCURVE_* environment variables, in
// increasing precedence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if path == "" {
		path = os.Getenv("OASCURVE_CONFIG")
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server:  ServerConfig{Address: ":8080", ReadTimeout: 10 * time.Second},
		Logging: LoggingConfig{Level: "info"},
		Fit: FitConfig{
			Method:         "lm",
			MaxEvaluations: 10000,
			FTol:           1e-10,
			XTol:           1e-10,
			GTol:           1e-10,
			MinPoints:      1,
		},
		Filter:  curve.DefaultFilter(),
		Grid:    GridConfig{Points: curve.DefaultGridPoints},
		Columns: data.DefaultColumns(),
		Rate:    RateConfig{PerSecond: 1, Burst: 2, Idle: 10 * time.Minute},
		Cache:   CacheConfig{Enabled: true, TTL: 5 * time.Minute, Cleanup: 10 * time.Minute},
		Batch:   BatchConfig{Workers: 4},
	}
}

// Validate reports settings that cannot be used.
func (c Config) Validate() error {
	switch strings.ToLower(c.Fit.Method) {
	case "lm", "neldermead":
	default:
		return fmt.Errorf("invalid fit method %q: want lm or neldermead", c.Fit.Method)
	}
	if c.Fit.MaxEvaluations <= 0 {
		return fmt.Errorf("invalid fit.maxEvaluations %d", c.Fit.MaxEvaluations)
	}
	if c.Grid.Points < 2 {
		return fmt.Errorf("invalid grid.points %d: need at least 2", c.Grid.Points)
	}
	if c.Filter.MinDuration > c.Filter.MaxDuration || c.Filter.MinValue > c.Filter.MaxValue {
		return fmt.Errorf("invalid filter: empty range")
	}
	if c.Auth.Enabled && len(c.Auth.Keys) == 0 {
		return fmt.Errorf("auth enabled without keys")
	}
	if c.Rate.PerSecond < 0 || c.Rate.Burst < 0 || c.Rate.Idle < 0 {
		return fmt.Errorf("invalid rate %v/%d idle %v", c.Rate.PerSecond, c.Rate.Burst, c.Rate.Idle)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("OASCURVE_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("OASCURVE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("OASCURVE_LOG_FORMAT"); v != "" {
		cfg.Logging.JSON = strings.EqualFold(v, "json")
	}
	if v := os.Getenv("OASCURVE_FIT_METHOD"); v != "" {
		cfg.Fit.Method = v
	}
	if v := os.Getenv("OASCURVE_FIT_MAX_EVALUATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse OASCURVE_FIT_MAX_EVALUATIONS: %w", err)
		}
		cfg.Fit.MaxEvaluations = n
	}
	if v := os.Getenv("OASCURVE_FILTER_MAX_OAS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse OASCURVE_FILTER_MAX_OAS: %w", err)
		}
		cfg.Filter.MaxValue = f
	}
	if v := os.Getenv("OASCURVE_FILTER_MIN_DURATION"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse OASCURVE_FILTER_MIN_DURATION: %w", err)
		}
		cfg.Filter.MinDuration = f
	}
	if v := os.Getenv("OASCURVE_AUTH_KEYS"); v != "" {
		keys := map[string]string{}
		for _, pair := range strings.Split(v, ",") {
			prefix, hash, ok := strings.Cut(strings.TrimSpace(pair), ":")
			if !ok {
				return fmt.Errorf("parse OASCURVE_AUTH_KEYS: want prefix:hash, got %q", pair)
			}
			keys[prefix] = hash
		}
		cfg.Auth.Enabled = true
		cfg.Auth.Keys = keys
	}
	if v := os.Getenv("OASCURVE_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("OASCURVE_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse OASCURVE_CACHE_TTL: %w", err)
		}
		cfg.Cache.TTL = d
	}
	if v := os.Getenv("OASCURVE_BATCH_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse OASCURVE_BATCH_WORKERS: %w", err)
		}
		cfg.Batch.Workers = n
	}
	return nil
}

// FitOptions translates the fit section into nss options.
func (c FitConfig) FitOptions() []nss.FitOption {
	var m solver.Minimizer = solver.LevenbergMarquardt{}
	if strings.EqualFold(c.Method, "neldermead") {
		m = solver.NelderMead{}
	}
	return []nss.FitOption{
		nss.WithMinimizer(m),
		nss.WithMaxEvaluations(c.MaxEvaluations),
		nss.WithTolerances(c.FTol, c.XTol, c.GTol),
	}
}

// AnalyzeOptions returns the curve options implied by the configuration.
func (c Config) AnalyzeOptions() curve.Options {
	return curve.Options{
		MinNSSPoints: c.Fit.MinPoints,
		GridPoints:   c.Grid.Points,
		FitOptions:   c.Fit.FitOptions(),
	}
}
