package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"

	"github.com/signalsfoundry/scanhead-simulator/core"
	"github.com/signalsfoundry/scanhead-simulator/internal/advisory"
	"github.com/signalsfoundry/scanhead-simulator/internal/api"
	"github.com/signalsfoundry/scanhead-simulator/internal/logging"
	"github.com/signalsfoundry/scanhead-simulator/internal/observability"
	"github.com/signalsfoundry/scanhead-simulator/internal/sim"
	"github.com/signalsfoundry/scanhead-simulator/timectrl"
)

// Config holds the server's runtime options.
type Config struct {
	ListenAddress  string
	MetricsAddress string
	ScenePath      string
	Seed           uint64
	Density        float64
	TickInterval   time.Duration
	Accelerated    bool
	Speed          float64
	LogLevel       string
	LogFormat      string
}

func main() {
	var cfg Config
	flag.StringVar(&cfg.ListenAddress, "grpc-addr", ":50051", "TCP address the control gRPC server listens on")
	flag.StringVar(&cfg.MetricsAddress, "metrics-addr", ":9090", "HTTP address for Prometheus /metrics (empty disables)")
	flag.StringVar(&cfg.ScenePath, "scene", "", "path to a JSON scene file (defaults to the built-in target)")
	flag.Uint64Var(&cfg.Seed, "seed", 1, "seed for surface sampling")
	flag.Float64Var(&cfg.Density, "density", 0, "override sampling density in points per unit area")
	flag.DurationVar(&cfg.TickInterval, "tick", time.Second/30, "simulation frame interval")
	flag.BoolVar(&cfg.Accelerated, "accelerated", false, "advance simulation time faster than wall-clock time")
	flag.Float64Var(&cfg.Speed, "speed", timectrl.DefaultSpeed, "simulated seconds per wall-clock second with -accelerated")
	flag.StringVar(&cfg.LogLevel, "log-level", envOr("LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	flag.StringVar(&cfg.LogFormat, "log-format", envOr("LOG_FORMAT", "text"), "log format: text or json")
	flag.Parse()

	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	lis, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.ListenAddress), logging.Err(err))
		os.Exit(1)
	}

	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "server exited", logging.Err(err))
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newSession(cfg Config, log logging.Logger, metrics *observability.ScanCollector) (*sim.Session, error) {
	scene := core.DefaultScene()
	if cfg.ScenePath != "" {
		f, err := os.Open(cfg.ScenePath)
		if err != nil {
			return nil, fmt.Errorf("open scene %q: %w", cfg.ScenePath, err)
		}
		defer f.Close()
		if scene, err = core.LoadScene(f); err != nil {
			return nil, err
		}
	}
	if cfg.Density > 0 {
		scene.Sampler.Density = cfg.Density
	}

	sampler, err := core.NewSampler(scene.Sampler)
	if err != nil {
		return nil, err
	}
	cloud := sampler.Generate(rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)))
	engine, err := core.NewSimulationEngine(scene, cloud)
	if err != nil {
		return nil, err
	}
	log.Info(context.Background(), "scene ready",
		logging.Int("points", cloud.Len()),
		logging.Float64("trajectory_s", engine.Trajectory.Duration()),
	)
	return sim.NewSession(engine,
		sim.WithLogger(log),
		sim.WithMetrics(metrics),
		sim.WithTracer(observability.Tracer()),
	)
}

// run serves the control API on lis until ctx is cancelled.
func run(ctx context.Context, cfg Config, log logging.Logger, lis net.Listener) error {
	if cfg.TickInterval <= 0 {
		return errors.New("tick interval must be positive")
	}

	rpcMetrics, err := observability.NewRPCCollector(nil)
	if err != nil {
		return fmt.Errorf("rpc metrics: %w", err)
	}
	scanMetrics, err := observability.NewScanCollector(nil)
	if err != nil {
		return fmt.Errorf("scan metrics: %w", err)
	}

	session, err := newSession(cfg, log, scanMetrics)
	if err != nil {
		return err
	}

	mode := timectrl.RealTime
	if cfg.Accelerated {
		mode = timectrl.Accelerated
	}
	clock := timectrl.NewTimeController(time.Now().UTC(), cfg.TickInterval, mode, timectrl.WithSpeed(cfg.Speed))
	clock.AddListener(func(now time.Time) {
		session.Tick(ctx, now)
	})

	var advisor advisory.Service
	if acfg := advisory.ConfigFromEnv(); acfg.APIKey != "" {
		c, err := advisory.NewClient(ctx, acfg, nil, log)
		if err != nil {
			log.Warn(ctx, "advisory client unavailable", logging.Err(err))
		} else {
			advisor = c
		}
	} else {
		log.Warn(ctx, "ADVISORY_API_KEY not set; Advise will answer with an error")
	}

	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			api.RequestIDUnaryServerInterceptor(log),
			api.SpanAttributesUnaryServerInterceptor(),
			rpcMetrics.UnaryServerInterceptor(),
		),
		grpc.ChainStreamInterceptor(
			api.RequestIDStreamServerInterceptor(log),
			rpcMetrics.StreamServerInterceptor(),
		),
	)
	api.RegisterScanServiceServer(server, api.NewScanService(session, clock, advisor, log))

	metricsSrv := serveMetrics(cfg.MetricsAddress, rpcMetrics, log)

	tickCtx, stopTicks := context.WithCancel(ctx)
	defer stopTicks()
	ticksDone := clock.StartContext(tickCtx, 0)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(lis)
	}()
	log.Info(ctx, "starting control gRPC server",
		logging.String("addr", lis.Addr().String()),
		logging.String("time_mode", mode.String()),
	)

	var result error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		result = err
	}

	log.Info(context.Background(), "shutting down control server")
	stopTicks()
	<-ticksDone

	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		// Watch streams only end when their clients leave.
		server.Stop()
	}

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return result
}

func serveMetrics(addr string, collector *observability.RPCCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", otelhttp.NewHandler(collector.Handler(), "metrics"))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
