// Package chansub is a channel-backed bus subscription.
package chansub

import (
	"context"
	"iter"
	"sync"

	"github.com/alekseev-bro/evstore/pkg/event"
)

type item[E any] struct {
	env event.Envelope[E]
	err error
}

// Sub buffers envelopes pushed by a transport until they are consumed
// through Events. It is safe for concurrent use.
type Sub[E any] struct {
	ch   chan item[E]
	done chan struct{}
	once sync.Once
	stop func() error

	mu       sync.Mutex
	terminal error
	stopErr  error
}

// New returns a subscription with a buffer of size buf. stop is called once,
// on the first Drain or Fail, to release the transport side.
func New[E any](buf int, stop func() error) *Sub[E] {
	if stop == nil {
		stop = func() error { return nil }
	}
	return &Sub[E]{
		ch:   make(chan item[E], buf),
		done: make(chan struct{}),
		stop: stop,
	}
}

// Send queues env. It blocks while the buffer is full and reports false once
// the subscription is drained or ctx is done.
func (s *Sub[E]) Send(ctx context.Context, env event.Envelope[E]) bool {
	return s.push(ctx, item[E]{env: env})
}

// SendErr queues a non terminal error, typically a message that failed to decode.
func (s *Sub[E]) SendErr(ctx context.Context, err error) bool {
	return s.push(ctx, item[E]{err: err})
}

func (s *Sub[E]) push(ctx context.Context, it item[E]) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.ch <- it:
		return true
	case <-s.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Fail ends the subscription with err, which Events yields as its last value.
// It does nothing once the subscription is drained or failed.
func (s *Sub[E]) Fail(err error) {
	s.close(err)
}

func (s *Sub[E]) Drain() error {
	s.close(nil)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopErr
}

func (s *Sub[E]) close(terminal error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.terminal = terminal
		s.mu.Unlock()
		close(s.done)
		err := s.stop()
		s.mu.Lock()
		s.stopErr = err
		s.mu.Unlock()
	})
}

// Done is closed when the subscription is drained or failed.
func (s *Sub[E]) Done() <-chan struct{} {
	return s.done
}

func (s *Sub[E]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminal
}

func (s *Sub[E]) Events(ctx context.Context) iter.Seq2[event.Envelope[E], error] {
	return func(yield func(event.Envelope[E], error) bool) {
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				if err := s.Err(); err != nil {
					yield(event.Envelope[E]{}, err)
				}
				return
			case it := <-s.ch:
				if !yield(it.env, it.err) {
					return
				}
			}
		}
	}
}
