// Package redisbus broadcasts envelopes over Redis pub/sub. The channel is the
// stream name of E, optionally prefixed.
//
// Redis pub/sub keeps nothing: subscribers only see envelopes published
// while they are subscribed.
package redisbus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/alekseev-bro/evstore/internal/chansub"
	"github.com/alekseev-bro/evstore/internal/config"
	"github.com/alekseev-bro/evstore/pkg/bus"
	"github.com/alekseev-bro/evstore/pkg/event"
)

const defaultBuffer = 64

type Config struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	Prefix   string `env:"EVSTORE_REDIS_PREFIX"`
}

func ConfigFromEnv() (Config, error) {
	return config.FromEnv[Config]()
}

func (c Config) Client() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})
}

type Bus[E event.Streamer] struct {
	client  *redis.Client
	channel string
	buffer  int
	log     *slog.Logger
}

type Option func(*options)

type options struct {
	prefix string
	buffer int
	log    *slog.Logger
}

func WithPrefix(p string) Option {
	return func(o *options) {
		o.prefix = p
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

func New[E event.Streamer](client *redis.Client, opts ...Option) *Bus[E] {
	o := options{buffer: defaultBuffer, log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	channel := o.prefix + event.StreamOf[E]()
	return &Bus[E]{
		client:  client,
		channel: channel,
		buffer:  o.buffer,
		log:     o.log.With("bus", "redis", "channel", channel),
	}
}

// FromConfig opens a client from cfg and builds the bus on it.
func FromConfig[E event.Streamer](cfg Config, opts ...Option) *Bus[E] {
	return New[E](cfg.Client(), append([]Option{WithPrefix(cfg.Prefix)}, opts...)...)
}

func (b *Bus[E]) Publish(ctx context.Context, env event.Envelope[E]) error {
	data, err := event.Encode(env)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Register returns once Redis has confirmed the subscription.
func (b *Bus[E]) Register(ctx context.Context) (bus.Subscription[E], error) {
	ps := b.client.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %q: %w", b.channel, err)
	}
	sub := chansub.New[E](b.buffer, ps.Close)

	go func() {
		for msg := range ps.Channel() {
			env, err := event.Decode[E]([]byte(msg.Payload))
			if err != nil {
				b.log.Error("subscription decode", "error", err)
				if !sub.SendErr(context.Background(), err) {
					return
				}
				continue
			}
			if !sub.Send(context.Background(), env) {
				return
			}
		}
		// The channel only closes once the client or the pub/sub is closed.
		sub.Fail(redis.ErrClosed)
	}()
	b.log.Info("subscription created")
	return sub, nil
}

// Close closes the client. Open subscriptions end with redis.ErrClosed.
func (b *Bus[E]) Close() error {
	return b.client.Close()
}
