package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/dersolve/dersolve/pkg/horizon"
	"github.com/dersolve/dersolve/pkg/log"
	"github.com/dersolve/dersolve/pkg/scenario"
	"github.com/dersolve/dersolve/pkg/solver"
	"github.com/dersolve/dersolve/pkg/sweep"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
)

func main() {
	solvers := solver.Configured()

	scenarioPath := lflag.RequiredString("scenario", "Path to the scenario YAML file")
	outputPath := lflag.String("output", "", "Path to write the JSON result (default stdout)")
	sweepParam := lflag.String("sweep-parameter", "", "Parameter to sweep instead of a single run (e.g. storage_energy_kwh)")
	sweepValues := lflag.String("sweep-values", "", "Comma-delimited values for the swept parameter")
	sweepParallelism := lflag.Int("sweep-parallelism", 0, "Concurrent sweep solves (0 means unbounded)")

	lflag.Configure()

	var level slog.Level
	// lflag automatically sets llog's level, but we need to set the slog level
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	scn, err := scenario.Load(ctx, *scenarioPath)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to load scenario",
			slog.String("path", *scenarioPath), slog.Any("error", err))
		os.Exit(1)
	}

	backend, err := solvers.Backend(scn.Config.Backend)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to select backend", slog.Any("error", err))
		os.Exit(1)
	}

	var out any
	solveFailed := false
	if *sweepParam != "" {
		values, err := parseValues(*sweepValues)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "invalid sweep-values", slog.Any("error", err))
			os.Exit(1)
		}
		outcomes, err := sweep.Run(ctx, scn, sweep.Request{
			Parameter:   sweep.Parameter(*sweepParam),
			Values:      values,
			Parallelism: *sweepParallelism,
		}, backend)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "sweep failed", slog.Any("error", err))
			os.Exit(1)
		}
		for _, o := range outcomes {
			if o.Error != "" {
				solveFailed = true
			}
		}
		out = outcomes
	} else {
		result, err := horizon.New(backend).Run(ctx, scn)
		if err != nil {
			var serr *solver.SolveError
			if !errors.As(err, &serr) {
				log.Ctx(ctx).ErrorContext(ctx, "run failed", slog.Any("error", err))
				os.Exit(1)
			}
			// Partial results are still worth emitting; the failure is
			// recorded in the result and reflected in the exit code.
			log.Ctx(ctx).WarnContext(ctx, "run did not complete", slog.Any("error", err))
			solveFailed = true
		}
		out = result
	}

	if err := writeResult(*outputPath, out); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to write result", slog.Any("error", err))
		os.Exit(1)
	}
	if solveFailed {
		os.Exit(2)
	}
}

func parseValues(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("sweep-values is required with sweep-parameter")
	}
	parts := strings.Split(s, ",")
	values := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", p, err)
		}
		values = append(values, v)
	}
	return values, nil
}

func writeResult(path string, v any) error {
	f := os.Stdout
	if path != "" {
		var err error
		f, err = os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
