// Package oglog is the structured logging shim used across the driver's
// connector, pool, and mux packages. It wraps hashicorp/go-hclog so
// internal diagnostics (open/broken/prune/batch events) are leveled and
// structured instead of bare log.Printf calls, and optionally forwards
// Broken transitions to Sentry when a DSN is configured.
package oglog

import (
	"os"
	"sync"

	"github.com/getsentry/sentry-go"
	"github.com/hashicorp/go-hclog"
)

// Logger is the interface the rest of the driver depends on. The default
// implementation wraps an hclog.Logger (hclog's own Named returns an
// hclog.Logger, so hclog.Logger does not satisfy it directly); callers may
// inject their own implementation via SetDefault.
type Logger interface {
	Trace(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Named(name string) Logger
}

type hclogAdapter struct{ hclog.Logger }

func (h hclogAdapter) Named(name string) Logger { return hclogAdapter{h.Logger.Named(name)} }

var (
	mu         sync.RWMutex
	defaultLog Logger = hclogAdapter{hclog.New(&hclog.LoggerOptions{
		Name:  "oggo",
		Level: hclog.LevelFromString(envOr("OGGO_LOG_LEVEL", "warn")),
	})}
	sentryEnabled bool
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// SetDefault replaces the process-wide default logger. Safe for
// concurrent use; intended to be called once during application setup.
func SetDefault(l Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLog = l
}

// Default returns the current process-wide default logger.
func Default() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLog
}

// EnableSentry configures forwarding of ReportBroken calls to Sentry.
// It is a no-op if dsn is empty. Errors initializing the SDK are logged
// but never fatal — diagnostics must never take down the driver.
func EnableSentry(dsn string) {
	if dsn == "" {
		return
	}
	if err := sentry.Init(sentry.ClientOptions{Dsn: dsn}); err != nil {
		Default().Warn("sentry init failed", "error", err)
		return
	}
	mu.Lock()
	sentryEnabled = true
	mu.Unlock()
}

// ReportBroken forwards a connector-broken event to Sentry, if enabled.
// It never blocks the caller's I/O path for more than the SDK's own
// buffering; failures inside the SDK are swallowed.
func ReportBroken(err error, tags map[string]string) {
	mu.RLock()
	enabled := sentryEnabled
	mu.RUnlock()
	if !enabled || err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}
