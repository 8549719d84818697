// Package memstore keeps envelopes in memory. It is meant for tests and
// single-process tools.
package memstore

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/alekseev-bro/evstore/pkg/event"
	"github.com/alekseev-bro/evstore/pkg/state"
	"github.com/alekseev-bro/evstore/pkg/store"
)

type Store[S any, E event.Event[S]] struct {
	mu      sync.RWMutex
	log     *slog.Logger
	streams map[event.ID][]event.Envelope[E]
}

type Option func(*options)

type options struct {
	log *slog.Logger
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

func New[S any, E event.Event[S]](opts ...Option) *Store[S, E] {
	o := options{log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[S, E]{
		log:     o.log.With("store", "memory", "stream", event.StreamOf[E]()),
		streams: make(map[event.ID][]event.Envelope[E]),
	}
}

func (s *Store[S, E]) Save(ctx context.Context, env event.Envelope[E]) (event.ID, error) {
	if err := ctx.Err(); err != nil {
		return event.NilID, err
	}
	info := env.Info()

	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.streams[info.ID]
	if err := store.Expect(env, uint64(len(cur))); err != nil {
		s.log.Warn("occ", "id", info.ID, "version", info.Version, "current", len(cur))
		return event.NilID, err
	}
	s.streams[info.ID] = append(cur, env)
	s.log.Debug("event stored", "id", info.ID, "version", info.Version)
	return info.ID, nil
}

func (s *Store[S, E]) FindByID(ctx context.Context, id event.ID) (state.State[S, E], error) {
	if err := ctx.Err(); err != nil {
		return state.State[S, E]{}, err
	}
	s.mu.RLock()
	envs := slices.Clone(s.streams[id])
	s.mu.RUnlock()
	return state.Fold(envs...), nil
}

// Envelopes returns a copy of everything stored for id, oldest first.
func (s *Store[S, E]) Envelopes(id event.ID) []event.Envelope[E] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.streams[id])
}

// Len is the number of envelopes stored across all IDs.
func (s *Store[S, E]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, envs := range s.streams {
		n += len(envs)
	}
	return n
}
