// Package membus is an in-process Bus. Envelopes cross it in their
// serialized form, so every subscriber decodes its own copy.
package membus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alekseev-bro/evstore/internal/chansub"
	"github.com/alekseev-bro/evstore/pkg/bus"
	"github.com/alekseev-bro/evstore/pkg/event"
)

const defaultBuffer = 64

type Bus[E event.Streamer] struct {
	sync.RWMutex
	subscriptions map[*chansub.Sub[E]]bool
	buffer        int
	log           *slog.Logger
}

type Option func(*options)

type options struct {
	buffer int
	log    *slog.Logger
}

// WithBuffer sets how many envelopes each subscription holds before Publish blocks.
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

func New[E event.Streamer](opts ...Option) *Bus[E] {
	o := options{buffer: defaultBuffer, log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Bus[E]{
		subscriptions: map[*chansub.Sub[E]]bool{},
		buffer:        o.buffer,
		log:           o.log.With("bus", "memory", "stream", event.StreamOf[E]()),
	}
}

// Publish hands env to every current subscriber, waiting for buffer space.
func (b *Bus[E]) Publish(ctx context.Context, env event.Envelope[E]) error {
	data, err := event.Encode(env)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	b.RLock()
	defer b.RUnlock()
	for sub := range b.subscriptions {
		decoded, err := event.Decode[E](data)
		if err != nil {
			return fmt.Errorf("publish: %w", err)
		}
		if !sub.Send(ctx, decoded) {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("publish: %w", err)
			}
		}
	}
	b.log.Debug("event published", "id", env.Info().ID, "version", env.Info().Version, "subscribers", len(b.subscriptions))
	return nil
}

func (b *Bus[E]) Register(ctx context.Context) (bus.Subscription[E], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.Lock()
	defer b.Unlock()
	var sub *chansub.Sub[E]
	sub = chansub.New[E](b.buffer, func() error {
		b.remove(sub)
		return nil
	})
	b.subscriptions[sub] = true
	b.log.Info("subscription created", "subscribers", len(b.subscriptions))
	return sub, nil
}

func (b *Bus[E]) remove(sub *chansub.Sub[E]) {
	b.Lock()
	defer b.Unlock()
	delete(b.subscriptions, sub)
}

// Close drains every subscription.
func (b *Bus[E]) Close() {
	b.Lock()
	subs := b.subscriptions
	b.subscriptions = map[*chansub.Sub[E]]bool{}
	b.Unlock()
	for sub := range subs {
		sub.Drain()
	}
}
