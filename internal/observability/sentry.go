// Package observability wires crash reporting and the runtime stats viewer.
package observability

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

const flushTimeout = 5 * time.Second

// SentryConfig selects the crash reporting backend. An empty DSN disables it.
type SentryConfig struct {
	DSN         string
	Environment string
	Release     string
}

// InitSentry installs the global sentry client. It reports whether reporting
// is enabled.
func InitSentry(cfg SentryConfig) (bool, error) {
	if cfg.DSN == "" {
		return false, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		AttachStacktrace: true,
	})
	if err != nil {
		return false, fmt.Errorf("init sentry: %w", err)
	}
	return true, nil
}

// Flush waits for buffered reports to be delivered.
func Flush() {
	sentry.Flush(flushTimeout)
}

// ReportPanic sends a recovered panic value tagged with the given scope
// values. It is a no-op for a nil value.
func ReportPanic(recovered any, tags map[string]string) {
	if recovered == nil {
		return
	}
	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		for key, value := range tags {
			scope.SetTag(key, value)
		}
	})
	hub.Recover(recovered)
	hub.Flush(flushTimeout)
}
