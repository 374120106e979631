// Command netpadd is the netpad telemetry collector daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HerbHall/netpad/internal/config"
	"github.com/HerbHall/netpad/internal/monitor"
	"github.com/HerbHall/netpad/internal/probe/ping"
	"github.com/HerbHall/netpad/internal/probe/snmpinfo"
	"github.com/HerbHall/netpad/internal/registry"
	"github.com/HerbHall/netpad/internal/store"
	"github.com/HerbHall/netpad/internal/version"
	"github.com/HerbHall/netpad/pkg/probe"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		printVersion(os.Stdout)
		os.Exit(0)
	}

	// Load configuration (before logger, so log level/format can be configured).
	v, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, v, logger)
	stop()

	if err != nil {
		logger.Error("netpadd stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("netpadd stopped")
	_ = logger.Sync()
}

// printVersion writes the build version and the compiled-in probes.
func printVersion(w io.Writer) {
	fmt.Fprintln(w, version.Info())
	reg := registry.New(zap.NewNop())
	for _, f := range probeFactories() {
		if err := reg.Register(f); err != nil {
			fmt.Fprintf(w, "  invalid probe: %v\n", err)
		}
	}
	for _, info := range reg.Infos() {
		fmt.Fprintf(w, "  probe %s %s: %s\n", info.Name, info.Version, info.Description)
	}
}

// probeFactories lists the compiled-in probes.
func probeFactories() []probe.Factory {
	return []probe.Factory{
		ping.Factory(),
		snmpinfo.Factory(),
	}
}

func run(ctx context.Context, v *viper.Viper, logger *zap.Logger) error {
	logger.Info("netpadd starting", zap.String("version", version.Short()))

	if f := v.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded",
			zap.String("component", "config"),
			zap.String("source", f),
		)
	} else {
		logger.Warn("no configuration file found, using defaults",
			zap.String("component", "config"),
		)
	}

	settings, err := config.LoadMonitorSettings(v)
	if err != nil {
		return err
	}
	if settings.ProbePath != "" {
		logger.Warn("monitor.probe-path is ignored, probes are compiled in",
			zap.String("probe_path", settings.ProbePath),
		)
	}

	// Open database
	dbPath := v.GetString("database.path")
	db, err := store.New(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.CheckVersion(ctx, version.Short()); err != nil {
		return err
	}
	if err := db.Migrate(ctx, "monitor", monitor.Migrations()); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	logger.Info("database initialized",
		zap.String("component", "database"),
		zap.String("path", dbPath),
	)

	// Register all probes (compile-time composition)
	reg := registry.New(logger.Named("registry"))
	for _, f := range probeFactories() {
		if err := reg.Register(f); err != nil {
			return fmt.Errorf("register probe: %w", err)
		}
	}

	monitorStore := monitor.NewMonitorStore(db.DB())
	cfg := config.New(v)
	deps := func(name string) probe.Dependencies {
		return probe.Dependencies{
			Config: cfg.Sub("probe_" + name),
			Logger: logger.Named("probe." + name),
			Store:  monitorStore,
		}
	}
	if err := reg.Validate(deps); err != nil {
		return err
	}
	for _, name := range settings.DefaultProbeList() {
		if _, ok := reg.Lookup(name); !ok {
			logger.Warn("default probe is not registered",
				zap.String("probe", name),
				zap.Strings("registered", reg.Names()),
			)
		}
	}

	queue := monitor.NewQueue(settings.QueueMaxSize)
	var inflight *monitor.InFlight
	if settings.PreventOverlap {
		inflight = monitor.NewInFlight()
	}

	pool := monitor.NewPool(monitorStore, reg, queue, inflight, deps, settings.Threads, logger.Named("poller"))
	planner := monitor.NewPlanner(monitorStore, queue, inflight, monitor.PlannerConfig{
		Sleep:               settings.PlannerSleep,
		DefaultPollInterval: settings.DefaultPollInterval,
		DefaultProbes:       settings.DefaultProbeList(),
		PreventOverlap:      settings.PreventOverlap,
	}, logger.Named("planner"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pool.Run(gctx) })
	g.Go(func() error { return planner.Run(gctx) })

	if addr := v.GetString("metrics.listen"); addr != "" {
		serveMetrics(gctx, g, addr, logger.Named("metrics"))
	}

	err = g.Wait()

	releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	planner.ReleaseQueued(releaseCtx)
	return err
}

// serveMetrics exposes Prometheus metrics until ctx is done.
func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("metrics listener started", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics listener: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
