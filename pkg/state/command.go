package state

import "github.com/alekseev-bro/evstore/pkg/event"

// Command decides which events follow from an intent and the current state.
//
// HandleBy gets a copy of the current data, nil when nothing was applied yet.
// It must not cause side effects; on error no event is produced.
type Command[S any, E event.Event[S]] interface {
	HandleBy(state *S) ([]E, error)
}

// CommandFunc adapts a plain function to Command.
type CommandFunc[S any, E event.Event[S]] func(state *S) ([]E, error)

func (f CommandFunc[S, E]) HandleBy(state *S) ([]E, error) {
	return f(state)
}
