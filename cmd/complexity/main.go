// Command complexity measures how much work each part of the world costs:
// it bins the coastline dataset's exterior-ring vertices into a grid,
// prints the survey as JSON and optionally renders it as a heatmap PNG.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/Guymer/gft/internal/adapters/landdata"
	"github.com/Guymer/gft/internal/adapters/render"
	"github.com/Guymer/gft/internal/core/domain"
	"github.com/Guymer/gft/internal/core/usecases"
	"github.com/Guymer/gft/internal/pkg/logging"
)

func main() {
	resolution := flag.String("resolution", "110m", "Natural Earth scale: 110m, 50m or 10m")
	kind := flag.String("kind", domain.LandKindLand, "dataset kind: land or countries")
	avoid := flag.StringSlice("avoid", nil, "country to include when kind is countries (repeatable)")
	cell := flag.Float64("cell", 10, "grid cell size in degrees")
	out := flag.String("out", "", "write a heatmap PNG to this path")
	cacheDir := flag.String("cache-dir", "cache", "directory for downloaded coastline data")
	debug := flag.Bool("debug", false, "log at debug level")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `usage: complexity [flags]

Surveys the vertex density of a coastline dataset. The survey is printed
as JSON; pass --out to also render it as a heatmap PNG.

flags:
%s`, flag.CommandLine.FlagUsages())
	}
	flag.Parse()

	level := "info"
	if *debug {
		level = "debug"
	}
	logging.Setup(level, "text")
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := domain.LandRequest{
		Kind:           strings.ToLower(*kind),
		Resolution:     *resolution,
		AvoidCountries: *avoid,
	}
	if req.Kind != domain.LandKindLand && req.Kind != domain.LandKindCountries {
		fmt.Fprintf(os.Stderr, "complexity: kind must be land or countries, got %q\n", *kind)
		os.Exit(2)
	}

	svc := usecases.NewComplexityService(landdata.NewProvider(*cacheDir, logger), logger)
	survey, err := svc.Survey(ctx, req, *cell)
	if err != nil {
		logger.Error("survey failed", "error", err)
		os.Exit(1)
	}

	if *out != "" {
		if err := render.NewRenderer(0, logger).RenderSurvey(*out, survey); err != nil {
			logger.Error("render heatmap", "error", err)
			os.Exit(1)
		}
		logger.Info("heatmap written", "file", *out)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(survey); err != nil {
		logger.Error("encode survey", "error", err)
		os.Exit(1)
	}
}
