package natsbus

import (
	"log/slog"
	"time"

	"github.com/alekseev-bro/evstore/pkg/qos"
)

const (
	defaultPrefix     = "bus"
	defaultBuffer     = 64
	maxAckPending     = 1000
	inactiveThreshold = 10 * time.Minute
)

type Option func(*options)

type options struct {
	qos      qos.QoS
	prefix   string
	durable  string
	inMemory bool
	buffer   int
	log      *slog.Logger
}

// WithQoS selects core NATS (AtMostOnce) or a JetStream consumer
// (AtLeastOnce). Ordered limits a JetStream consumer to one unacked message.
func WithQoS(q qos.QoS) Option {
	return func(o *options) {
		o.qos = q
	}
}

// WithSubjectPrefix sets the first subject token; the stream name of E is the second.
func WithSubjectPrefix(p string) Option {
	return func(o *options) {
		o.prefix = p
	}
}

// WithDurable names the JetStream consumer. A durable consumer starts with
// the oldest retained envelope and resumes where it left off; an unnamed one
// only sees envelopes published after Register.
func WithDurable(name string) Option {
	return func(o *options) {
		o.durable = name
	}
}

func WithInMemory() Option {
	return func(o *options) {
		o.inMemory = true
	}
}

func WithBuffer(n int) Option {
	return func(o *options) {
		o.buffer = n
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}
