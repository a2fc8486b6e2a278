package app

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"remote-pong/internal/config"
	"remote-pong/internal/sim"
	"remote-pong/internal/telemetry"
	"remote-pong/logging"
	"remote-pong/logging/simulation"
	loggingSinks "remote-pong/logging/sinks"
)

func quietLogger() telemetry.Logger {
	return telemetry.LoggerFunc(func(string, ...any) {})
}

func TestRunFailsWithoutCertificate(t *testing.T) {
	cfg := config.Default()
	dir := t.TempDir()
	cfg.CertPath = filepath.Join(dir, "server.crt")
	cfg.KeyPath = filepath.Join(dir, "server.key")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := Run(ctx, cfg, quietLogger())
	if err == nil || !strings.Contains(err.Error(), "load certificate") {
		t.Fatalf("expected a fatal certificate error, got %v", err)
	}
}

func TestBuildLoggingSelectsSinks(t *testing.T) {
	var lines []string
	logger := telemetry.LoggerFunc(func(format string, args ...any) { lines = append(lines, format) })
	logConfig, named, err := buildLogging(config.LogConfig{
		Sinks:    []string{"memory", "logrus", "json", "carrier-pigeon"},
		JSONPath: filepath.Join(t.TempDir(), "events.ndjson"),
		Level:    "warn",
	}, logger)
	if err != nil {
		t.Fatalf("build logging: %v", err)
	}
	t.Cleanup(func() {
		for _, sink := range named {
			sink.Sink.Close(context.Background())
		}
	})

	if logConfig.MinimumSeverity != logging.SeverityWarn {
		t.Fatalf("expected warn level, got %v", logConfig.MinimumSeverity)
	}
	if len(named) != 3 || named[0].Name != "memory" || named[1].Name != "logrus" || named[2].Name != "json" {
		t.Fatalf("unexpected sinks %+v", named)
	}
	if len(lines) != 1 || !strings.Contains(lines[0], "unknown log sink") {
		t.Fatalf("expected the unknown sink to be reported, got %v", lines)
	}
}

func TestBuildLoggingFailsOnUnwritableJSONPath(t *testing.T) {
	_, _, err := buildLogging(config.LogConfig{
		Sinks:    []string{"json"},
		JSONPath: filepath.Join(t.TempDir(), "missing", "events.ndjson"),
	}, quietLogger())
	if err == nil {
		t.Fatalf("expected json sink to fail for a missing directory")
	}
}

func TestBudgetWatcherTracksStreaks(t *testing.T) {
	events := loggingSinks.NewMemorySink()
	counters := telemetry.NewCounters()
	watcher := &budgetWatcher{publisher: events, metrics: counters}
	budget := 16 * time.Millisecond

	watcher.observe(sim.LoopStepResult{Tick: 1, Duration: 20 * time.Millisecond, Budget: budget})
	watcher.observe(sim.LoopStepResult{Tick: 2, Duration: 32 * time.Millisecond, Budget: budget})

	overruns := events.EventsOfType(simulation.EventTickBudgetOverrun)
	if len(overruns) != 2 {
		t.Fatalf("expected two overrun events, got %d", len(overruns))
	}
	payload, ok := overruns[1].Payload.(simulation.TickBudgetOverrunPayload)
	if !ok || payload.Streak != 2 || payload.Ratio != 2 {
		t.Fatalf("unexpected overrun payload %+v", overruns[1].Payload)
	}

	watcher.observe(sim.LoopStepResult{Tick: 3, Duration: time.Millisecond, Budget: budget})
	if snap := counters.Snapshot(); snap[metricOverrunTotal] != 2 || snap[metricOverrunStreak] != 0 {
		t.Fatalf("expected streak reset after an on-budget tick, got %v", snap)
	}
}
