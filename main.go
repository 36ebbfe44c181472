package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"

	"github.com/banachtech/oascurve/api"
	"github.com/banachtech/oascurve/config"
	"github.com/banachtech/oascurve/curve"
	"github.com/banachtech/oascurve/data"
	"github.com/banachtech/oascurve/metrics"
	"github.com/banachtech/oascurve/nss"
	"github.com/banachtech/oascurve/util"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config")
	input := flag.String("input", "", "CSV file of bond observations")
	issuerColumn := flag.String("issuer-column", "", "CSV column naming the issuer; fits one curve per issuer")
	report := flag.String("report", "", "re-read a JSON report written by -out instead of fitting")
	out := flag.String("out", "", "write the JSON report here instead of stdout")
	csvOut := flag.String("csv-out", "", "also write the filtered observations as CSV")
	serve := flag.Bool("serve", false, "start the HTTP API")
	demo := flag.Bool("demo", false, "fit a synthetic example curve")
	seed := flag.Uint64("seed", 42, "seed for -demo")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var reports []data.Report
	switch {
	case *serve:
		server := api.NewServer(api.NewEngine(cfg.AnalyzeOptions()), *cfg, logger)
		if err := server.Start(cfg.Server.Address); err != nil {
			logger.Error("http server stopped", slog.Any("error", err))
			os.Exit(1)
		}
		return
	case *demo:
		points := util.RandomCurve(*seed, util.ExampleDurations, util.ExampleShape, 5)
		filter := curve.Filter{MinDuration: 0, MaxDuration: math.Inf(1), MinValue: math.Inf(-1), MaxValue: 200}
		reports = []data.Report{analyzeOne(logger, "Synthetic OAS Curve Example", filter.Apply(points), cfg.AnalyzeOptions())}
	case *report != "":
		reports, err = data.Open[[]data.Report](*report)
		exitOn(logger, err)
		for _, r := range reports {
			if r.Error != "" {
				logger.Warn("analysis failed", slog.String("curve", r.Name), slog.String("error", r.Error))
				continue
			}
			logAnalysis(logger, r.Name, r.Analysis)
		}
	case *input != "":
		cols := cfg.Columns
		if *issuerColumn != "" {
			cols.Issuer = *issuerColumn
		}
		records, err := data.LoadFile(*input, cols)
		exitOn(logger, err)

		if cols.Issuer == "" {
			points := cfg.Filter.Apply(data.Points(records))
			reports = append(reports, analyzeOne(logger, *input, points, cfg.AnalyzeOptions()))
		} else {
			reports = analyzeMany(logger, cfg, data.GroupByIssuer(records))
		}
	default:
		flag.Usage()
		os.Exit(2)
	}

	exitOn(logger, write(*out, reports))
	if *csvOut != "" {
		exitOn(logger, data.ExportCSV(*csvOut, cfg.Columns, reportPoints(reports)))
	}
}

func analyzeOne(logger *slog.Logger, name string, points []curve.Point, opts curve.Options) data.Report {
	a, err := curve.Analyze(points, opts)
	if err != nil {
		logger.Warn("analysis failed", slog.String("curve", name), slog.Int("points", len(points)), slog.Any("error", err))
		return data.Report{Name: name, Error: err.Error()}
	}
	logAnalysis(logger, name, a)
	return data.NewReport(name, a)
}

// analyzeMany fits one curve per issuer, with NSS reserved for issuers that
// have enough bonds to determine all six parameters.
func analyzeMany(logger *slog.Logger, cfg *config.Config, groups map[string][]curve.Point) []data.Report {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	for name, points := range groups {
		groups[name] = cfg.Filter.Apply(points)
	}
	opts := cfg.AnalyzeOptions()
	if opts.MinNSSPoints < nss.MinPoints {
		opts.MinNSSPoints = nss.MinPoints
	}
	batch := curve.BatchOptions{Options: opts, Workers: cfg.Batch.Workers}
	if cfg.Batch.Progress {
		batch.Progress = os.Stderr
	}

	var reports []data.Report
	for _, r := range curve.AnalyzeBatch(ctx, groups, batch) {
		if r.Err != nil {
			logger.Warn("analysis failed", slog.String("curve", r.Name), slog.Any("error", r.Err))
			reports = append(reports, data.Report{Name: r.Name, Error: r.Err.Error()})
			continue
		}
		logAnalysis(logger, r.Name, r.Analysis)
		reports = append(reports, data.NewReport(r.Name, r.Analysis))
	}
	return reports
}

func logAnalysis(logger *slog.Logger, name string, a curve.Analysis) {
	attrs := []any{
		slog.String("curve", name),
		slog.String("method", string(a.Method)),
		slog.Int("points", len(a.Points)),
		slog.Float64("r_squared", a.Goodness.RSquared),
		slog.Float64("rmse", a.Goodness.RMSE),
		slog.Float64("mae", a.Goodness.MAE),
	}
	if a.Fit != nil {
		attrs = append(attrs,
			slog.Any("params", a.Fit.Params),
			slog.Int("evaluations", a.Fit.Evaluations),
			slog.Bool("low_confidence", a.Fit.LowConfidence()),
		)
	}
	for _, f := range a.Failures {
		attrs = append(attrs, slog.String("fallback_reason", f))
	}
	logger.Info("curve fitted", attrs...)
}

// reportPoints collects the filtered observations behind every report.
func reportPoints(reports []data.Report) []curve.Point {
	var points []curve.Point
	for _, r := range reports {
		points = append(points, r.Analysis.Points...)
	}
	return points
}

func write(path string, reports []data.Report) error {
	if path == "" {
		return data.WriteJSON(os.Stdout, reports)
	}
	return data.ExportJSON(path, reports)
}

func exitOn(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("oascurve", slog.Any("error", err))
		os.Exit(1)
	}
}
