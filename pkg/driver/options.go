package driver

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

type Option func(*options)

type options struct {
	log *slog.Logger
	reg prometheus.Registerer
	tp  trace.TracerProvider
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithMetrics registers the append counters and latency histogram with reg.
// Drivers sharing reg share the collectors.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.reg = reg
	}
}

// WithTracerProvider traces Append and Execute. Without it spans are no-ops.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tp = tp
	}
}
