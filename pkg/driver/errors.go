package driver

import (
	"errors"
	"fmt"

	"github.com/alekseev-bro/evstore/pkg/event"
)

// ErrPersistedNotPublished matches a PublishError.
var ErrPersistedNotPublished = errors.New("event persisted but not published")

// PublishError is returned by Append when the envelope was saved but the bus
// rejected it. The event is durable; only the notification is missing.
type PublishError struct {
	ID      event.ID
	Version uint64
	Stream  string
	Err     error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("%s: %s %s version %d: %v", ErrPersistedNotPublished, e.Stream, e.ID, e.Version, e.Err)
}

func (e *PublishError) Is(target error) bool {
	return target == ErrPersistedNotPublished
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// CommandError wraps the domain error a command rejected its input with.
type CommandError struct {
	Err error
}

func (e *CommandError) Error() string {
	return e.Err.Error()
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
