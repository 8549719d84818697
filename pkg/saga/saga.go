// Package saga reacts to the envelopes of one stream by executing commands
// against another.
package saga

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/alekseev-bro/evstore/pkg/bus"
	"github.com/alekseev-bro/evstore/pkg/driver"
	"github.com/alekseev-bro/evstore/pkg/event"
	"github.com/alekseev-bro/evstore/pkg/state"
)

type Registrar[E any] interface {
	Register(ctx context.Context) (bus.Subscription[E], error)
}

type Executor[S any, E event.Event[S]] interface {
	Execute(ctx context.Context, id event.ID, cmd state.Command[S, E], actor event.Actor) (state.State[S, E], error)
}

// Handler maps a source envelope to the ID and command to run on the target.
// Returning a nil command skips the envelope.
type Handler[E any, S any, TE event.Event[S]] func(env event.Envelope[E]) (event.ID, state.Command[S, TE])

type Option func(*options)

type options struct {
	actor   event.Actor
	log     *slog.Logger
	onError func(error)
}

// WithActor sets who the target commands are attributed to. Default is root.
func WithActor(a event.Actor) Option {
	return func(o *options) {
		o.actor = a
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithErrorHandler is called with every failed decode or command execution.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.onError = fn
	}
}

// Running is a started step.
type Running struct {
	sub  bus.Drainer
	done chan struct{}
	once sync.Once
	err  error
}

// Drain stops the subscription and waits for the step to finish the
// envelope it is working on.
func (r *Running) Drain() error {
	r.once.Do(func() {
		r.err = r.sub.Drain()
	})
	<-r.done
	return r.err
}

// Done is closed when the step has stopped.
func (r *Running) Done() <-chan struct{} {
	return r.done
}

// Step subscribes to from and executes h's command on to for every envelope.
// The step stops when ctx is done, when Drain is called or when the
// subscription fails.
func Step[E event.Streamer, S any, TE event.Event[S]](ctx context.Context, from Registrar[E], to Executor[S, TE], h Handler[E, S, TE], opts ...Option) (*Running, error) {
	o := options{actor: event.RootActor(), log: slog.Default(), onError: func(error) {}}
	for _, opt := range opts {
		opt(&o)
	}
	name := event.StreamOf[E]() + "->" + event.StreamOf[TE]()
	log := o.log.With("saga", name)

	sub, err := from.Register(ctx)
	if err != nil {
		return nil, err
	}
	r := &Running{sub: sub, done: make(chan struct{})}
	stop := context.AfterFunc(ctx, func() {
		if err := r.Drain(); err != nil {
			log.Error("failed to drain saga handler", "error", err)
		}
	})

	go func() {
		defer close(r.done)
		defer stop()
		for env, err := range sub.Events(ctx) {
			if err != nil {
				log.Warn("saga event", "error", err)
				o.onError(err)
				continue
			}
			id, cmd := h(env)
			if cmd == nil {
				continue
			}
			if _, err := to.Execute(ctx, id, cmd, o.actor); err != nil {
				var cerr *driver.CommandError
				if errors.As(err, &cerr) {
					log.Warn("saga command rejected", "id", id, "error", err)
				} else {
					log.Error("saga command", "id", id, "error", err)
				}
				o.onError(err)
			}
		}
	}()
	log.Info("saga started")
	return r, nil
}
