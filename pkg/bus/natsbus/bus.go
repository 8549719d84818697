// Package natsbus broadcasts envelopes over NATS, either fire and forget on
// core NATS or through a JetStream stream with acknowledged delivery.
package natsbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/alekseev-bro/evstore/internal/chansub"
	"github.com/alekseev-bro/evstore/pkg/bus"
	"github.com/alekseev-bro/evstore/pkg/event"
	"github.com/alekseev-bro/evstore/pkg/natsconn"
	"github.com/alekseev-bro/evstore/pkg/qos"
)

type Bus[E event.Streamer] struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	stream  jetstream.Stream
	subject string
	opts    options
	log     *slog.Logger
	release natsconn.CloseFunc
}

// New prepares a bus for E on nc. For AtLeastOnce it creates or updates the
// JetStream stream that backs the subject.
func New[E event.Streamer](ctx context.Context, nc *nats.Conn, opts ...Option) (*Bus[E], error) {
	o := options{prefix: defaultPrefix, buffer: defaultBuffer, log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	kind := event.StreamOf[E]()
	b := &Bus[E]{
		nc:      nc,
		subject: fmt.Sprintf("%s.%s", o.prefix, kind),
		opts:    o,
		log:     o.log.With("bus", "nats", "stream", kind, "qos", o.qos.String()),
	}
	if o.qos.Delivery == qos.AtMostOnce {
		return b, nil
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	storage := jetstream.FileStorage
	if o.inMemory {
		storage = jetstream.MemoryStorage
	}
	name := fmt.Sprintf("%s-%s", o.prefix, kind)
	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     name,
		Subjects: []string{b.subject},
		Storage:  storage,
	})
	if err != nil {
		return nil, fmt.Errorf("create stream %q: %w", name, err)
	}
	b.js, b.stream = js, stream
	return b, nil
}

// Dial leases a connection from connect and builds the bus on it. Close
// returns the lease.
func Dial[E event.Streamer](ctx context.Context, connect natsconn.Connector, opts ...Option) (*Bus[E], error) {
	nc, release, err := connect()
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	b, err := New[E](ctx, nc, opts...)
	if err != nil {
		release()
		return nil, err
	}
	b.release = release
	return b, nil
}

// Close releases the connection leased by Dial. Subscriptions on a
// connection that gets closed end with nats.ErrConnectionClosed.
func (b *Bus[E]) Close() error {
	if b.release != nil {
		b.release()
	}
	return nil
}

func (b *Bus[E]) Publish(ctx context.Context, env event.Envelope[E]) error {
	data, err := event.Encode(env)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if b.js == nil {
		if err := b.nc.Publish(b.subject, data); err != nil {
			return fmt.Errorf("publish: %w", err)
		}
		return nil
	}
	info := env.Info()
	if _, err := b.js.Publish(ctx, b.subject, data, jetstream.WithMsgID(fmt.Sprintf("%s-%d", info.ID, info.Version))); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (b *Bus[E]) Register(ctx context.Context) (bus.Subscription[E], error) {
	if b.js == nil {
		return b.subscribeCore()
	}
	return b.subscribeJetStream(ctx)
}

func (b *Bus[E]) subscribeCore() (bus.Subscription[E], error) {
	var ns *nats.Subscription
	sub := chansub.New[E](b.opts.buffer, func() error {
		err := ns.Unsubscribe()
		if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
			return nil
		}
		return err
	})
	ns, err := b.nc.Subscribe(b.subject, func(msg *nats.Msg) {
		env, err := event.Decode[E](msg.Data)
		if err != nil {
			b.log.Error("subscription decode", "error", err)
			sub.SendErr(context.Background(), err)
			return
		}
		sub.Send(context.Background(), env)
	})
	if err != nil {
		return nil, fmt.Errorf("at most once subscribe: %w", err)
	}
	b.failOnClose(sub)
	b.log.Info("subscription created", "subject", b.subject)
	return sub, nil
}

func (b *Bus[E]) subscribeJetStream(ctx context.Context) (bus.Subscription[E], error) {
	maxpend := maxAckPending
	if b.opts.qos.Ordering == qos.Ordered {
		maxpend = 1
	}
	cfg := jetstream.ConsumerConfig{
		FilterSubject:     b.subject,
		DeliverPolicy:     jetstream.DeliverNewPolicy,
		AckPolicy:         jetstream.AckExplicitPolicy,
		MaxAckPending:     maxpend,
		InactiveThreshold: inactiveThreshold,
	}
	if b.opts.durable != "" {
		cfg.Durable = b.opts.durable
		cfg.DeliverPolicy = jetstream.DeliverAllPolicy
		cfg.InactiveThreshold = 0
	}
	cons, err := b.stream.CreateOrUpdateConsumer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}

	var cc jetstream.ConsumeContext
	sub := chansub.New[E](b.opts.buffer, func() error {
		if cc != nil {
			cc.Drain()
		}
		return nil
	})
	cc, err = cons.Consume(func(msg jetstream.Msg) {
		env, err := event.Decode[E](msg.Data())
		if err != nil {
			b.log.Error("subscription decode", "error", err)
			msg.Term()
			sub.SendErr(context.Background(), err)
			return
		}
		if !sub.Send(context.Background(), env) {
			msg.Nak()
			return
		}
		if err := msg.Ack(); err != nil {
			b.log.Warn("ack", "error", err)
		}
	}, jetstream.ConsumeErrHandler(func(_ jetstream.ConsumeContext, err error) {
		if errors.Is(err, jetstream.ErrConnectionClosed) || errors.Is(err, nats.ErrConnectionClosed) {
			sub.Fail(nats.ErrConnectionClosed)
			return
		}
		b.log.Warn("consume", "error", err)
	}))
	if err != nil {
		return nil, fmt.Errorf("subscription consume: %w", err)
	}
	b.failOnClose(sub)
	b.log.Info("subscription created", "subject", b.subject, "durable", b.opts.durable)
	return sub, nil
}

// failOnClose ends sub once the connection is closed for good. Closing the
// connection leaves the status of its subscriptions untouched, so the
// connection status is watched.
func (b *Bus[E]) failOnClose(sub *chansub.Sub[E]) {
	closed := b.nc.StatusChanged(nats.CLOSED)
	if b.nc.IsClosed() {
		sub.Fail(nats.ErrConnectionClosed)
		return
	}
	go func() {
		select {
		case <-closed:
			b.log.Warn("connection closed, ending subscription")
			sub.Fail(nats.ErrConnectionClosed)
		case <-sub.Done():
		}
	}()
}
