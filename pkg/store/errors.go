package store

import (
	"errors"
	"fmt"

	"github.com/alekseev-bro/evstore/pkg/event"
)

var (
	ErrVersionConflict = errors.New("version conflict")
	ErrNoEvents        = errors.New("no events")
	ErrNoCheckpoint    = errors.New("no checkpoint")
	ErrClosed          = errors.New("store is closed")
)

// VersionConflictError is returned by Save when the stored history of ID does
// not end right before the envelope's version. Callers may re-read the state
// and re-issue the command.
type VersionConflictError struct {
	ID       event.ID
	Version  uint64 // version of the rejected envelope
	Current  uint64 // last stored version, when the backend knows it
	Stream   string
	Internal error // backend error that signalled the conflict, if any
}

func (e *VersionConflictError) Error() string {
	msg := fmt.Sprintf("%s: %s %s got version %d, stored %d", ErrVersionConflict, e.Stream, e.ID, e.Version, e.Current)
	if e.Internal != nil {
		msg += ": " + e.Internal.Error()
	}
	return msg
}

func (e *VersionConflictError) Is(target error) bool {
	return target == ErrVersionConflict
}

func (e *VersionConflictError) Unwrap() error {
	return e.Internal
}

// Conflict builds a VersionConflictError for env.
func Conflict[E any](env event.Envelope[E], current uint64, internal error) *VersionConflictError {
	info := env.Info()
	return &VersionConflictError{
		ID:       info.ID,
		Version:  info.Version,
		Current:  current,
		Stream:   info.Stream,
		Internal: internal,
	}
}
