// Package event holds the event data model: identifiers, actors, metadata
// and the envelope that wraps a domain payload for storage and transport.
package event

// Streamer names the logical stream of a payload type.
// StreamType is called on the zero value, so it must not depend on fields.
type Streamer interface {
	StreamType() string
}

// Event is a domain payload that folds into state S.
//
// ApplyTo must be pure: the same payload and the same previous state always
// give the same next state. prev is nil when no event was applied before;
// only creation payloads accept a nil prev, others may panic.
type Event[S any] interface {
	Streamer
	ApplyTo(prev *S) S
}

// StreamOf returns the stream name declared by payload type E.
func StreamOf[E Streamer]() string {
	var zero E
	return zero.StreamType()
}
