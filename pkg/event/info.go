package event

import (
	"log/slog"
	"time"
)

// Info is the metadata carried by every envelope.
// Version starts at 1 and grows by one for each envelope of the same ID.
type Info struct {
	ID      ID        `json:"id"`
	Stream  string    `json:"stream"`
	Date    time.Time `json:"date"`
	User    Actor     `json:"user"`
	Version uint64    `json:"version"`
}

var metadataFields = []string{"id", "stream", "date", "user", "version"}

// NewInfo starts a new stream instance of payload type E with a random ID at version 1.
func NewInfo[E Streamer](actor Actor) Info {
	return Info{
		ID:      RandomID(),
		Stream:  StreamOf[E](),
		Date:    now(),
		User:    actor,
		Version: 1,
	}
}

// Next derives the metadata of the following envelope of the same ID.
func (i Info) Next(actor Actor) Info {
	i.User = actor
	i.Date = now()
	i.Version++
	return i
}

// At returns a copy with the date replaced.
func (i Info) At(date time.Time) Info {
	i.Date = date.UTC()
	return i
}

// WithID returns a copy with the ID replaced.
func (i Info) WithID(id ID) Info {
	i.ID = id
	return i
}

func (i Info) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", i.ID.String()),
		slog.String("stream", i.Stream),
		slog.Uint64("version", i.Version),
		slog.String("user", i.User.String()),
	)
}

// UTC without a monotonic reading, so dates compare equal after a store round trip.
func now() time.Time {
	return time.Now().UTC()
}
