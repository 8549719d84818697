package natsstore

import (
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/alekseev-bro/evstore/pkg/codec"
)

type StoreType jetstream.StorageType

const (
	Disk StoreType = iota
	Memory
)

type Option func(*options)

type options struct {
	storeType   StoreType
	dedupe      time.Duration
	checkpoints int
	codec       codec.Codec
	log         *slog.Logger
}

// WithInMemory keeps the stream and the checkpoint bucket in server memory.
func WithInMemory() Option {
	return func(o *options) {
		o.storeType = Memory
	}
}

// WithDeduplication sets the JetStream duplicate window. Every envelope is
// published with a message ID derived from its ID and version.
func WithDeduplication(d time.Duration) Option {
	return func(o *options) {
		o.dedupe = d
	}
}

// WithCheckpoints stores the folded state in a KeyValue bucket once a
// FindByID had to replay at least n envelopes past the last checkpoint.
// Zero disables checkpoints.
func WithCheckpoints(n int) Option {
	return func(o *options) {
		o.checkpoints = n
	}
}

// WithCodec sets the checkpoint encoding. Default is JSON.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}
