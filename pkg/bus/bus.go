// Package bus defines the broadcast side of the append pipeline.
package bus

import (
	"context"
	"iter"

	"github.com/alekseev-bro/evstore/pkg/event"
)

// Bus delivers envelopes of one stream, the one named by E, to its subscribers.
//
// Publish is best effort. Register subscribes to every instance of the
// stream, not to one ID.
type Bus[E event.Streamer] interface {
	Publish(ctx context.Context, env event.Envelope[E]) error
	Register(ctx context.Context) (Subscription[E], error)
}

// Subscription is an unbounded sequence of envelopes in arrival order.
//
// The sequence returned by Events ends when ctx is done, when Drain is
// called, or after yielding a terminal error from the transport. A non nil
// error paired with a zero envelope that is followed by more envelopes
// reports a message that could not be decoded.
type Subscription[E any] interface {
	Events(ctx context.Context) iter.Seq2[event.Envelope[E], error]
	Drainer
}

// Use to drain all open connections
type Drainer interface {
	Drain() error
}
