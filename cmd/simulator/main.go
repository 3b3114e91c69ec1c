package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"time"

	"github.com/signalsfoundry/scanhead-simulator/core"
	"github.com/signalsfoundry/scanhead-simulator/internal/logging"
	"github.com/signalsfoundry/scanhead-simulator/internal/observability"
	"github.com/signalsfoundry/scanhead-simulator/internal/report"
	"github.com/signalsfoundry/scanhead-simulator/internal/sim"
	"github.com/signalsfoundry/scanhead-simulator/timectrl"
)

// Config holds the command-line options of a single scripted scan.
type Config struct {
	ScenePath    string
	Tick         time.Duration
	Mode         timectrl.Mode
	Speed        float64
	Seed         uint64
	Density      float64
	Workers      int
	Stride       int
	CoveragePlot string
}

// Summary is the outcome of a run.
type Summary struct {
	Ticks     int
	Acquired  int
	CloudSize int
	Coverage  float64
	Completed bool
	// Primitives breaks coverage down per target primitive.
	Primitives []report.PrimitiveCoverage
}

func main() {
	scenePath := flag.String("scene", "", "path to a JSON scene file (defaults to the built-in target)")
	tick := flag.Duration("tick", time.Second/30, "frame interval")
	mode := flag.String("mode", "accelerated", "time mode: realtime or accelerated")
	speed := flag.Float64("speed", timectrl.DefaultSpeed, "simulated seconds per wall-clock second in accelerated mode")
	seed := flag.Uint64("seed", 1, "seed for surface sampling")
	density := flag.Float64("density", 0, "override sampling density in points per unit area")
	workers := flag.Int("workers", 0, "override visibility worker count")
	stride := flag.Int("stride", 0, "override visibility stride")
	plotPath := flag.String("coverage-plot", "", "write a coverage-over-time chart to this path (.png or .svg)")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	tm, ok := timectrl.ParseMode(*mode)
	if !ok {
		log.Error(ctx, "unknown time mode", logging.String("mode", *mode))
		os.Exit(2)
	}

	summary, err := run(ctx, Config{
		ScenePath:    *scenePath,
		Tick:         *tick,
		Mode:         tm,
		Speed:        *speed,
		Seed:         *seed,
		Density:      *density,
		Workers:      *workers,
		Stride:       *stride,
		CoveragePlot: *plotPath,
	}, log)
	if err != nil {
		log.Error(ctx, "simulation failed", logging.Err(err))
		os.Exit(1)
	}

	outcome := "stopped"
	if summary.Completed {
		outcome = "completed"
	}
	fmt.Printf("Scan %s: %d of %d points acquired (%.1f%%) in %d ticks\n",
		outcome, summary.Acquired, summary.CloudSize, summary.Coverage*100, summary.Ticks)
	for _, pc := range summary.Primitives {
		fmt.Printf("  %-10s %-8s %6.1f%%\n", pc.ID, pc.Kind, pc.Fraction()*100)
	}
}

// loadScene reads the scene file, or returns the defaults when path is
// empty, and applies command-line overrides.
func loadScene(cfg Config) (core.Scene, error) {
	scene := core.DefaultScene()
	if cfg.ScenePath != "" {
		f, err := os.Open(cfg.ScenePath)
		if err != nil {
			return core.Scene{}, fmt.Errorf("open scene %q: %w", cfg.ScenePath, err)
		}
		defer f.Close()
		if scene, err = core.LoadScene(f); err != nil {
			return core.Scene{}, err
		}
	}
	if cfg.Density > 0 {
		scene.Sampler.Density = cfg.Density
	}
	if cfg.Workers > 0 {
		scene.Visibility.Workers = cfg.Workers
	}
	if cfg.Stride > 0 {
		scene.Visibility.Stride = cfg.Stride
	}
	return scene, scene.Validate()
}

// run executes one scripted trajectory from start to completion, driven by
// the time controller.
func run(ctx context.Context, cfg Config, log logging.Logger) (Summary, error) {
	if cfg.Tick <= 0 {
		return Summary{}, errors.New("tick must be positive")
	}
	scene, err := loadScene(cfg)
	if err != nil {
		return Summary{}, err
	}

	sampler, err := core.NewSampler(scene.Sampler)
	if err != nil {
		return Summary{}, err
	}
	cloud := sampler.Generate(rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)))
	lo, hi := cloud.Bounds()
	log.Info(ctx, "sampled target surface",
		logging.Int("points", cloud.Len()),
		logging.Int("primitives", len(cloud.Segments)),
		logging.String("bounds_min", lo.String()),
		logging.String("bounds_max", hi.String()),
	)

	engine, err := core.NewSimulationEngine(scene, cloud)
	if err != nil {
		return Summary{}, err
	}
	recorder := report.NewCoverageRecorder(cloud.Len())
	engine.RegisterTickListener(recorder.TickListener())

	session, err := sim.NewSession(engine,
		sim.WithLogger(log),
		sim.WithTracer(observability.Tracer()),
	)
	if err != nil {
		return Summary{}, err
	}

	start := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := timectrl.NewTimeController(start, cfg.Tick, cfg.Mode, timectrl.WithSpeed(cfg.Speed))
	if _, err := session.StartTrajectory(ctx, start); err != nil {
		return Summary{}, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var summary Summary
	tc.AddListener(func(now time.Time) {
		rep := session.Tick(runCtx, now)
		summary.Ticks++
		if rep.Done {
			summary.Completed = true
			cancel()
		}
	})

	// A few spare frames past the scripted duration let the final tick land.
	limit := time.Duration(engine.Trajectory.Duration()*float64(time.Second)) + 4*cfg.Tick
	<-tc.StartContext(runCtx, limit)

	st := session.Status(false)
	summary.Acquired = st.Acquired
	summary.CloudSize = st.CloudSize
	summary.Coverage = st.Coverage
	summary.Primitives = report.CoverageByPrimitive(sampler, cloud, session.Store().Snapshot().Scan)
	for _, pc := range summary.Primitives {
		log.Info(ctx, "primitive coverage",
			logging.String("primitive", pc.ID),
			logging.String("kind", string(pc.Kind)),
			logging.Int("acquired", pc.Acquired),
			logging.Int("points", pc.Points),
			logging.Float64("coverage", pc.Fraction()),
		)
	}

	if cfg.CoveragePlot != "" {
		cfgT := scene.Trajectory
		if err := recorder.Save(cfg.CoveragePlot, "Scan coverage", cfgT.ApproachEnd, cfgT.OrbitEnd); err != nil {
			return summary, fmt.Errorf("write coverage plot: %w", err)
		}
		log.Info(ctx, "wrote coverage plot", logging.String("path", cfg.CoveragePlot))
	}
	return summary, nil
}
