// Package store defines the durable persistence contract for envelopes.
package store

import (
	"context"

	"github.com/alekseev-bro/evstore/pkg/event"
	"github.com/alekseev-bro/evstore/pkg/state"
)

// Store persists envelopes and rebuilds state from them.
//
// Save must be safe for concurrent use with different IDs. Writes for the
// same ID are serialized by the caller; a backend that detects a version gap
// or a duplicate version returns an error matching ErrVersionConflict.
//
// FindByID loads every envelope of id in ascending version order and replays
// them. An unknown id yields the empty state and no error.
type Store[S any, E event.Event[S]] interface {
	Save(ctx context.Context, env event.Envelope[E]) (event.ID, error)
	FindByID(ctx context.Context, id event.ID) (state.State[S, E], error)
}

// Expect checks that env directly follows current, the last stored version of its ID.
func Expect[E any](env event.Envelope[E], current uint64) error {
	if env.Info().Version != current+1 {
		return Conflict(env, current, nil)
	}
	return nil
}
