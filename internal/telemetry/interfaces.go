// Package telemetry holds the logger and metrics seams shared by the nav
// service, the tracker registry, the loop and the websocket sessions.
package telemetry

import (
	"log"

	"navbridge/logging"
)

// Logger is the printf-style logger every component accepts.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts a function into a Logger.
type LoggerFunc func(format string, args ...any)

func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// WrapLogger adapts a standard library logger. A nil logger discards.
func WrapLogger(logger *log.Logger) Logger {
	if logger == nil {
		return LoggerFunc(nil)
	}
	return LoggerFunc(logger.Printf)
}

// Prefixed tags every line with a component name, e.g. "[ws] ".
func Prefixed(logger Logger, component string) Logger {
	if logger == nil {
		return LoggerFunc(nil)
	}
	prefix := "[" + component + "] "
	return LoggerFunc(func(format string, args ...any) {
		logger.Printf(prefix+format, args...)
	})
}

// Metrics receives counters (keys ending in _total) and gauges.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

// Add bumps a counter on m, which may be nil.
func Add(m Metrics, key string, delta uint64) {
	if m != nil {
		m.Add(key, delta)
	}
}

// Store sets a gauge on m, which may be nil.
func Store(m Metrics, key string, value uint64) {
	if m != nil {
		m.Store(key, value)
	}
}

// WrapMetrics feeds the router's in-process metric table, the one reported
// by /diagnostics.
func WrapMetrics(metrics *logging.Metrics) Metrics {
	return routerMetrics{metrics: metrics}
}

type routerMetrics struct {
	metrics *logging.Metrics
}

func (m routerMetrics) Add(key string, delta uint64) {
	if m.metrics != nil {
		m.metrics.TelemetryAdd(key, delta)
	}
}

func (m routerMetrics) Store(key string, value uint64) {
	if m.metrics != nil {
		m.metrics.TelemetryStore(key, value)
	}
}
