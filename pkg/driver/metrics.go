package driver

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultOK            = "ok"
	resultSaveFailed    = "save_failed"
	resultPublishFailed = "publish_failed"
)

var appendBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

type metrics struct {
	appends        *prometheus.CounterVec
	appendDuration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	return &metrics{
		appends: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evstore_driver_appends_total",
			Help: "Total number of appended envelopes by outcome",
		}, []string{"stream", "result"})),

		appendDuration: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "evstore_driver_append_duration_seconds",
			Help:    "Save plus publish latency in seconds",
			Buckets: appendBuckets,
		}, []string{"stream"})),
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *metrics) observe(stream, result string, start time.Time) {
	if m == nil {
		return
	}
	m.appends.WithLabelValues(stream, result).Inc()
	m.appendDuration.WithLabelValues(stream).Observe(time.Since(start).Seconds())
}
