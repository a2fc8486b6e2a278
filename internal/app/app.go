package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"remote-pong/internal/config"
	"remote-pong/internal/game"
	servernet "remote-pong/internal/net"
	"remote-pong/internal/net/ws"
	"remote-pong/internal/observability"
	"remote-pong/internal/physics"
	"remote-pong/internal/sim"
	"remote-pong/internal/telemetry"
	"remote-pong/logging"
	loggingSinks "remote-pong/logging/sinks"
)

// Run starts the simulation loop, the controller server and the asset server
// and blocks until ctx is cancelled or one of them fails.
func Run(ctx context.Context, cfg config.Config, logger telemetry.Logger) error {
	telemetryLogger := logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}

	if enabled, err := observability.InitSentry(observability.SentryConfig{DSN: cfg.SentryDSN}); err != nil {
		telemetryLogger.Printf("crash reporting disabled: %v", err)
	} else if enabled {
		defer observability.Flush()
	}

	tlsConfig, err := servernet.LoadTLSConfig(cfg.CertPath, cfg.KeyPath)
	if err != nil {
		return fmt.Errorf("load certificate: %w", err)
	}

	logConfig, namedSinks, err := buildLogging(cfg.Log, telemetryLogger)
	if err != nil {
		return err
	}
	router := logging.NewRouter(logging.SystemClock{}, logConfig, namedSinks)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	counters := telemetry.NewCounters()
	queue := sim.NewCommandQueue(counters)
	engine := game.NewEngine(queue, game.Config{
		Mode: cfg.Mode,
		Physics: physics.Config{
			TimeScale:   cfg.Physics.TimeScale,
			MaxDt:       cfg.Physics.MaxDt,
			MaxSubsteps: cfg.Physics.MaxSubsteps,
		},
		Seed:      cfg.Seed,
		Publisher: router,
		Logger:    telemetryLogger,
		Metrics:   counters,
	})
	overruns := &budgetWatcher{publisher: router, metrics: counters}
	loop := sim.NewLoop(engine, queue, sim.LoopConfig{
		TickRate:        cfg.TickRate,
		CatchupMaxTicks: 4,
	}, sim.LoopHooks{AfterStep: overruns.observe}, logging.SystemClock{})

	socket := ws.NewHandler(ws.HandlerConfig{
		Queue:     queue,
		Publisher: router,
		Logger:    telemetryLogger,
		Metrics:   counters,
	})
	handler := servernet.NewHTTPHandler(servernet.HTTPHandlerConfig{
		Game:     engine,
		Socket:   socket,
		Counters: counters,
		LogStats: router.Stats,
		TickRate: cfg.TickRate,
		Logger:   telemetryLogger,
	})

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		defer func() {
			if recovered := recover(); recovered != nil {
				observability.ReportPanic(recovered, map[string]string{"component": "simulation"})
				panic(recovered)
			}
		}()
		telemetryLogger.Printf("[sim] running at %d Hz in %s mode", cfg.TickRate, cfg.Mode)
		return loop.Run(groupCtx)
	})

	group.Go(func() error {
		return servernet.ListenAndServe(groupCtx, servernet.ServerConfig{
			Name:      "control",
			Addr:      cfg.ControlAddr,
			TLS:       tlsConfig,
			Handler:   handler,
			Publisher: router,
			Logger:    telemetryLogger,
		})
	})

	if assetsDir, err := servernet.ResolveAssetsDir(cfg.AssetsDir); err != nil {
		telemetryLogger.Printf("[assets] not serving controller app: %v", err)
	} else {
		group.Go(func() error {
			return servernet.ListenAndServe(groupCtx, servernet.ServerConfig{
				Name:      "assets",
				Addr:      cfg.AssetsAddr,
				TLS:       tlsConfig,
				Handler:   servernet.NewAssetsHandler(assetsDir),
				Publisher: router,
				Logger:    telemetryLogger,
			})
		})
	}

	if observability.StartStatsView(groupCtx, cfg.StatsViewAddr) {
		telemetryLogger.Printf("statsview listening on %s", cfg.StatsViewAddr)
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// buildLogging maps the configured sink names onto router sinks.
func buildLogging(cfg config.LogConfig, logger telemetry.Logger) (logging.Config, []logging.NamedSink, error) {
	logConfig := logging.DefaultConfig()
	if len(cfg.Sinks) > 0 {
		logConfig.EnabledSinks = cfg.Sinks
	}
	if cfg.JSONPath != "" {
		logConfig.JSON.FilePath = cfg.JSONPath
	}
	if cfg.Level != "" {
		if severity, ok := logging.ParseSeverity(cfg.Level); ok {
			logConfig.MinimumSeverity = severity
		} else {
			logger.Printf("invalid LOG_LEVEL=%q: using %s", cfg.Level, logConfig.MinimumSeverity)
		}
	}

	var named []logging.NamedSink
	for _, name := range logConfig.EnabledSinks {
		sink, err := newSink(name, logConfig)
		if err != nil {
			for _, built := range named {
				built.Sink.Close(context.Background())
			}
			return logging.Config{}, nil, err
		}
		if sink == nil {
			logger.Printf("unknown log sink %q ignored", name)
			continue
		}
		named = append(named, logging.NamedSink{Name: name, Sink: sink})
	}
	return logConfig, named, nil
}

func newSink(name string, cfg logging.Config) (logging.Sink, error) {
	switch name {
	case "console":
		return loggingSinks.NewConsoleSink(os.Stdout), nil
	case "json":
		file, err := os.OpenFile(cfg.JSON.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open json log %s: %w", cfg.JSON.FilePath, err)
		}
		return loggingSinks.NewJSON(file, cfg.JSON.FlushInterval), nil
	case "logrus":
		return loggingSinks.NewLogrusSink(nil), nil
	case "memory":
		return loggingSinks.NewMemorySink(), nil
	default:
		return nil, nil
	}
}
