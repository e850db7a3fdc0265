// Command gft runs one reachability simulation from the command line: it
// fans a front out from the start point step by step, clips it against the
// coastline dataset and writes every retained front to disk. With --plot it
// also renders a PNG per frame and stitches them into MP4 animations.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Guymer/gft/internal/adapters/landdata"
	"github.com/Guymer/gft/internal/adapters/render"
	"github.com/Guymer/gft/internal/adapters/store"
	"github.com/Guymer/gft/internal/core/domain"
	"github.com/Guymer/gft/internal/core/ports"
	"github.com/Guymer/gft/internal/core/usecases"
	"github.com/Guymer/gft/internal/pkg/logging"
)

// animationSizes are the longest-edge pixel bounds of the MP4s written
// after a plotted run.
var animationSizes = []int{512, 1024, 2048}

func main() {
	flag.Float64("duration", 1, "flight time in days")
	flag.Int("nAng", 0, "bearings sampled around each vertex (odd, default 9)")
	flag.Float64("precision", 0, "step distance in metres (default 10000)")
	flag.Int("freqLand", 0, "steps between land clips (default: every 8 flight hours)")
	flag.Int("freqPlot", 0, "steps between emitted frames (default: every flight hour)")
	flag.Int("freqSimp", 0, "steps between simplifications (default: every flight hour)")
	flag.String("NE-resolution", "", "Natural Earth scale: 110m, 50m or 10m (default 110m)")
	flag.String("GSHHG-resolution", "", "GSHHG letter c, l, i, h or f, mapped to the nearest Natural Earth scale")
	flag.StringSlice("avoid", nil, "country the flight must not overfly (repeatable; \"none\" clears the default list)")
	flag.Float64("conservatism", 0, "safety factor applied to the barrier buffer (default 2)")
	flag.Float64("tolerance", 0, "vertex snapping tolerance in degrees (default 1e-10)")
	flag.Bool("local", false, "restrict the dataset to the disc the flight can reach")
	flag.Bool("plot", false, "render a PNG per frame and stitch MP4 animations")
	flag.Bool("debug", false, "log at debug level")
	flag.String("outDir", "output", "root directory for stored fronts")
	flag.String("cache-dir", "cache", "directory for downloaded and buffered coastline data")
	flag.String("ffmpeg-path", "", "ffmpeg binary used by --plot (default: whatever is on PATH)")
	flag.Duration("timeout", 0, "abort the run after this long (0 means no limit)")
	flag.Int("workers", 0, "parallel sampling workers (default: GOMAXPROCS)")
	flag.Usage = usage
	flag.Parse()

	v := viper.New()
	_ = v.BindPFlags(flag.CommandLine)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing
	v.SetEnvPrefix("GFT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfg, err := buildConfig(v, flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "gft: %v\n", err)
		flag.Usage()
		os.Exit(2)
	}

	level := "info"
	if v.GetBool("debug") {
		level = "debug"
	}
	logging.Setup(level, "text")
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if d := v.GetDuration("timeout"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	land := landdata.NewProvider(v.GetString("cache-dir"), logger)

	st, err := store.New(v.GetString("outDir"), cfg, logger)
	if err != nil {
		logger.Error("create run directory", "error", err)
		os.Exit(1)
	}

	// The provider caches the finished barrier on disk, so this load and
	// the one inside the run share all the expensive work.
	ds, err := land.Load(ctx, cfg.LandRequest())
	if err != nil {
		logger.Error("load barrier dataset", "error", err)
		os.Exit(1)
	}
	if err := st.WriteBarrier(ds); err != nil {
		logger.Error("write barrier dataset", "error", err)
		os.Exit(1)
	}

	sink := &usecases.FanoutSink{Required: []ports.FrameSink{st}, Logger: logger}
	var plot *render.PlotSink
	if v.GetBool("plot") {
		plot = &render.PlotSink{
			Renderer: render.NewRenderer(0, logger),
			Dir:      st.RunDir(),
			Land:     ds,
			Config:   cfg,
		}
		sink.Optional = append(sink.Optional, plot)
	}

	seq := usecases.NewSequencer(cfg, usecases.SequencerDeps{
		Land:   land,
		Sink:   sink,
		Logger: logger,
	})

	// Fronts stored by an earlier invocation of the same configuration
	// are not recomputed; each step depends only on its index, so the run
	// picks up after the last stored step.
	from := 1
	if latest, err := st.LatestStep(); err == nil && latest > 0 {
		from = latest + 1
		logger.Info("found stored fronts", "through_step", latest)
	}

	wall := time.Now()
	var summary *domain.RunSummary
	switch last := cfg.Steps(); {
	case from > last:
		logger.Info("every front already stored, skipping simulation")
		summary = &domain.RunSummary{
			Steps:          last,
			DistanceMetres: cfg.StepDistance(last),
			Elapsed:        cfg.Elapsed(last),
		}
	case from > 1:
		summary, err = seq.RunRange(ctx, from, last)
	default:
		summary, err = seq.Run(ctx)
	}
	if err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
	logger.Info("run complete",
		"steps", summary.Steps,
		"frames", summary.Frames,
		"degraded_steps", summary.DegradedSteps,
		"distance_km", summary.DistanceMetres/1000,
		"flight_time", summary.Elapsed,
		"wall_time", time.Since(wall).Round(time.Second),
		"dir", st.RunDir())

	if plot != nil {
		if from > 1 {
			replotStored(ctx, logger, st, plot, cfg, from-1)
		}
		animate(ctx, logger, v.GetString("ffmpeg-path"), st.RunDir())
	}
}

// replotStored renders charts for fronts stored by an earlier invocation,
// so a resumed --plot run still animates from the first frame.
func replotStored(ctx context.Context, logger *slog.Logger, st *store.DiskStore, plot *render.PlotSink, cfg domain.RunConfig, through int) {
	for step := cfg.FreqPlot; step <= through; step += cfg.FreqPlot {
		png := filepath.Join(st.RunDir(), fmt.Sprintf("istep=%06d.png", step))
		if _, err := os.Stat(png); err == nil {
			continue
		}
		region, err := st.LoadFrame(step)
		if err != nil {
			logger.Warn("stored front unreadable, not replotted", "step", step, "error", err)
			continue
		}
		frame := &domain.Frame{
			Step:           step,
			Elapsed:        cfg.Elapsed(step),
			DistanceMetres: cfg.StepDistance(step),
			Region:         region,
			Vertices:       region.VertexCount(),
		}
		if err := plot.EmitFrame(ctx, frame); err != nil {
			logger.Warn("replot failed", "step", step, "error", err)
		}
	}
}

// buildConfig turns the three positional arguments and the effective flag,
// environment and config-file values into a run configuration. Defaults
// are left to ApplyDefaults so the CLI, the API and the worker agree on
// them.
func buildConfig(v *viper.Viper, args []string) (domain.RunConfig, error) {
	var cfg domain.RunConfig

	if len(args) != 3 {
		return cfg, fmt.Errorf("need exactly three positional arguments: LON LAT SPEED, got %d", len(args))
	}
	lon, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return cfg, fmt.Errorf("LON %q is not a number", args[0])
	}
	lat, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return cfg, fmt.Errorf("LAT %q is not a number", args[1])
	}
	speed, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return cfg, fmt.Errorf("SPEED %q is not a number", args[2])
	}

	cfg = domain.RunConfig{
		Lon:             lon,
		Lat:             lat,
		SpeedKnots:      speed,
		Duration:        time.Duration(v.GetFloat64("duration") * 24 * float64(time.Hour)),
		NAng:            v.GetInt("nAng"),
		PrecisionMetres: v.GetFloat64("precision"),
		FreqLand:        v.GetInt("freqLand"),
		FreqPlot:        v.GetInt("freqPlot"),
		FreqSimp:        v.GetInt("freqSimp"),
		Tolerance:       v.GetFloat64("tolerance"),
		NEResolution:    v.GetString("NE-resolution"),
		GSHHGResolution: v.GetString("GSHHG-resolution"),
		Conservatism:    v.GetFloat64("conservatism"),
		AvoidCountries:  avoidList(v.GetStringSlice("avoid")),
		LocalOnly:       v.GetBool("local"),
		Workers:         v.GetInt("workers"),
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// avoidList maps the --avoid flag onto the config field: absent keeps the
// default country list, a single "none" clears it.
func avoidList(raw []string) []string {
	if len(raw) == 0 {
		return nil
	}
	if len(raw) == 1 && strings.EqualFold(raw[0], "none") {
		return []string{}
	}
	return raw
}

// animate stitches the PNG frames in dir into one MP4 per output size. A
// missing or failing ffmpeg costs the animations, never the run.
func animate(ctx context.Context, logger *slog.Logger, ffmpegPath, dir string) {
	anim := render.NewAnimator(ffmpegPath, logger)
	for _, size := range animationSizes {
		out := filepath.Join(dir, fmt.Sprintf("flight%04dpx.mp4", size))
		if err := anim.Animate(ctx, dir, out, size); err != nil {
			logger.Warn("animation failed", "size", size, "error", err)
			continue
		}
		logger.Info("animation written", "file", out)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: gft [flags] LON LAT SPEED

Simulates how far a plane leaving (LON, LAT) at SPEED knots can fly,
growing a geodesic front that cannot cross land. Fronts are written
under --outDir; see --plot for charts and animations.

Flags may also be set through GFT_* environment variables or an
optional config.yaml in the working directory.

flags:
%s`, flag.CommandLine.FlagUsages())
}
