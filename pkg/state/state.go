// Package state folds event envelopes into materialized state and turns
// commands into new, not yet applied, envelopes.
package state

import (
	"encoding/json"
	"fmt"
	"iter"
	"reflect"
	"slices"

	"github.com/alekseev-bro/evstore/pkg/event"
)

// State is the materialized fold of the envelopes applied so far together
// with the metadata of the last one. The zero value is the empty state.
//
// A State is never changed in place: Apply, Replay and Add return new values.
type State[S any, E event.Event[S]] struct {
	inner *inner[S]
}

type inner[S any] struct {
	info event.Info
	data S
}

// Init returns the empty state.
func Init[S any, E event.Event[S]]() State[S, E] {
	return State[S, E]{}
}

// Fold replays envs over the empty state.
func Fold[S any, E event.Event[S]](envs ...event.Envelope[E]) State[S, E] {
	return Init[S, E]().Replay(slices.Values(envs))
}

func (s State[S, E]) IsNone() bool {
	return s.inner == nil
}

func (s State[S, E]) IsSome() bool {
	return s.inner != nil
}

// Info returns the metadata of the last applied envelope.
func (s State[S, E]) Info() (event.Info, bool) {
	if s.inner == nil {
		return event.Info{}, false
	}
	return s.inner.info, true
}

// Data returns a copy of the materialized value.
func (s State[S, E]) Data() (S, bool) {
	if s.inner == nil {
		var zero S
		return zero, false
	}
	return s.inner.data, true
}

// Version is the version of the last applied envelope, 0 for the empty state.
func (s State[S, E]) Version() uint64 {
	if s.inner == nil {
		return 0
	}
	return s.inner.info.Version
}

// ID is the stream instance ID, the zero ID for the empty state.
func (s State[S, E]) ID() event.ID {
	if s.inner == nil {
		return event.NilID
	}
	return s.inner.info.ID
}

func (s State[S, E]) prev() *S {
	if s.inner == nil {
		return nil
	}
	d := s.inner.data
	return &d
}

// Apply folds one envelope. The result carries the envelope's metadata.
func (s State[S, E]) Apply(env event.Envelope[E]) State[S, E] {
	info, payload := env.Take()
	return State[S, E]{inner: &inner[S]{info: info, data: payload.ApplyTo(s.prev())}}
}

// Add is Apply; s.Add(e1).Add(e2) equals s.Replay of [e1, e2].
func (s State[S, E]) Add(env event.Envelope[E]) State[S, E] {
	return s.Apply(env)
}

// Replay applies envs in the order given. The order is trusted, not checked.
func (s State[S, E]) Replay(envs iter.Seq[event.Envelope[E]]) State[S, E] {
	for env := range envs {
		s = s.Apply(env)
	}
	return s
}

// Handle runs cmd against the current data and wraps each resulting payload
// in an envelope. Versions continue from the current one and every envelope
// carries actor, which must be set. The envelopes are not applied to s.
func (s State[S, E]) Handle(cmd Command[S, E], actor event.Actor) ([]event.Envelope[E], error) {
	if actor.IsZero() {
		return nil, event.ErrNoActor
	}
	payloads, err := cmd.HandleBy(s.prev())
	if err != nil {
		return nil, err
	}

	var last *event.Info
	if s.inner != nil {
		info := s.inner.info
		last = &info
	}
	envs := make([]event.Envelope[E], 0, len(payloads))
	for _, p := range payloads {
		var info event.Info
		if last == nil {
			info = event.NewInfo[E](actor)
		} else {
			info = last.Next(actor)
		}
		envs = append(envs, event.NewEnvelope(info, p))
		last = &info
	}
	return envs, nil
}

// Equal reports whether both states hold equal metadata and equal data.
func (s State[S, E]) Equal(o State[S, E]) bool {
	if s.inner == nil || o.inner == nil {
		return s.inner == nil && o.inner == nil
	}
	return reflect.DeepEqual(s.inner.info, o.inner.info) && reflect.DeepEqual(s.inner.data, o.inner.data)
}

type stateJSON[S any] struct {
	event.Info
	Data S `json:"data"`
}

// MarshalJSON writes null for the empty state, otherwise the metadata fields
// and the data under "data".
func (s State[S, E]) MarshalJSON() ([]byte, error) {
	if s.inner == nil {
		return []byte("null"), nil
	}
	b, err := json.Marshal(stateJSON[S]{Info: s.inner.info, Data: s.inner.data})
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return b, nil
}

func (s *State[S, E]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = State[S, E]{}
		return nil
	}
	var sj stateJSON[S]
	if err := json.Unmarshal(data, &sj); err != nil {
		return fmt.Errorf("unmarshal state: %w", err)
	}
	*s = State[S, E]{inner: &inner[S]{info: sj.Info, data: sj.Data}}
	return nil
}

func (s State[S, E]) String() string {
	if s.inner == nil {
		return "none"
	}
	return fmt.Sprintf("%s/%s@%d", s.inner.info.Stream, s.inner.info.ID, s.inner.info.Version)
}
