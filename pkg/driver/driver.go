// Package driver pairs a Store with a Bus: an append is a save followed by a
// publish, and a registration is a bus subscription.
package driver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/alekseev-bro/evstore/internal/typereg"
	"github.com/alekseev-bro/evstore/pkg/bus"
	"github.com/alekseev-bro/evstore/pkg/event"
	"github.com/alekseev-bro/evstore/pkg/state"
	"github.com/alekseev-bro/evstore/pkg/store"
)

const tracerName = "github.com/alekseev-bro/evstore/pkg/driver"

// Driver holds no state of its own besides its collaborators, so concurrent
// calls for different IDs are independent. Calls for the same ID race unless
// the store detects version conflicts.
type Driver[S any, E event.Event[S]] struct {
	store   store.Store[S, E]
	bus     bus.Bus[E]
	stream  string
	log     *slog.Logger
	metrics *metrics
	tracer  trace.Tracer
}

// New panics if another payload type already claimed the stream name of E.
func New[S any, E event.Event[S]](st store.Store[S, E], b bus.Bus[E], opts ...Option) *Driver[S, E] {
	o := options{log: slog.Default(), tp: noop.NewTracerProvider()}
	for _, opt := range opts {
		opt(&o)
	}
	typereg.MustClaimFor[E]()
	stream := event.StreamOf[E]()
	return &Driver[S, E]{
		store:   st,
		bus:     b,
		stream:  stream,
		log:     o.log.With("stream", stream),
		metrics: newMetrics(o.reg),
		tracer:  o.tp.Tracer(tracerName),
	}
}

// Append saves env and, only if that succeeds, publishes it.
//
// A save error is returned as is and nothing is published. A publish error
// comes back as a *PublishError: the envelope is already stored.
func (d *Driver[S, E]) Append(ctx context.Context, env event.Envelope[E]) (event.ID, error) {
	start := time.Now()
	info := env.Info()
	ctx, span := d.tracer.Start(ctx, "evstore.append", trace.WithAttributes(
		attribute.String("evstore.stream", d.stream),
		attribute.String("evstore.id", info.ID.String()),
		attribute.Int64("evstore.version", int64(info.Version)),
	))
	defer span.End()

	id, err := d.store.Save(ctx, env)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, resultSaveFailed)
		d.metrics.observe(d.stream, resultSaveFailed, start)
		d.log.Warn("save failed", "id", info.ID, "version", info.Version, "error", err)
		return event.NilID, err
	}

	if err := d.bus.Publish(ctx, env); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, resultPublishFailed)
		d.metrics.observe(d.stream, resultPublishFailed, start)
		d.log.Error("publish failed", "id", info.ID, "version", info.Version, "error", err)
		return id, &PublishError{ID: info.ID, Version: info.Version, Stream: info.Stream, Err: err}
	}

	d.metrics.observe(d.stream, resultOK, start)
	d.log.Debug("event appended", "id", id, "version", info.Version)
	return id, nil
}

// Register subscribes to the stream of E on the bus.
func (d *Driver[S, E]) Register(ctx context.Context) (bus.Subscription[E], error) {
	sub, err := d.bus.Register(ctx)
	if err != nil {
		return nil, err
	}
	d.log.Info("subscription created")
	return sub, nil
}

// Load rebuilds the state of id from the store.
func (d *Driver[S, E]) Load(ctx context.Context, id event.ID) (state.State[S, E], error) {
	return d.store.FindByID(ctx, id)
}

// Execute loads id, runs cmd as actor and appends the resulting envelopes in
// order. When id has no history and is not the zero ID, the new stream
// instance takes id; otherwise Handle picks a random one.
//
// The returned state includes every envelope that was saved, so after a
// failed append it reflects what is durable.
func (d *Driver[S, E]) Execute(ctx context.Context, id event.ID, cmd state.Command[S, E], actor event.Actor) (state.State[S, E], error) {
	ctx, span := d.tracer.Start(ctx, "evstore.execute", trace.WithAttributes(
		attribute.String("evstore.stream", d.stream),
		attribute.String("evstore.id", id.String()),
	))
	defer span.End()

	if actor.IsZero() {
		return state.Init[S, E](), event.ErrNoActor
	}
	cur, err := d.store.FindByID(ctx, id)
	if err != nil {
		return cur, err
	}

	envs, err := cur.Handle(cmd, actor)
	if err != nil {
		d.log.Warn("command rejected", "id", id, "error", err)
		return cur, &CommandError{Err: err}
	}
	if len(envs) == 0 {
		return cur, nil
	}

	if cur.IsNone() && !id.IsZero() {
		for i, env := range envs {
			info, payload := env.Take()
			envs[i] = event.NewEnvelope(info.WithID(id), payload)
		}
	}

	for _, env := range envs {
		if _, err := d.Append(ctx, env); err != nil {
			var perr *PublishError
			if errors.As(err, &perr) {
				cur = cur.Apply(env)
			}
			return cur, err
		}
		cur = cur.Apply(env)
	}
	return cur, nil
}
