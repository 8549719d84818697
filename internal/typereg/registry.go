// Package typereg makes sure a stream name is claimed by a single payload
// type within a process.
package typereg

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/alekseev-bro/evstore/pkg/event"
)

type Registry struct {
	mu      sync.Mutex
	streams map[string]reflect.Type
}

func New() *Registry {
	return &Registry{streams: make(map[string]reflect.Type)}
}

var defaultRegistry = New()

// Claim binds stream to t. Claiming the same pair again is a no-op.
func (r *Registry) Claim(stream string, t reflect.Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if have, ok := r.streams[stream]; ok {
		if have != t {
			return fmt.Errorf("stream %q is already claimed by %v, not %v", stream, have, t)
		}
		return nil
	}
	r.streams[stream] = t
	slog.Debug("stream registered", "stream", stream, "type", t.String())
	return nil
}

// ClaimFor claims the stream of E in the process wide registry.
func ClaimFor[E event.Streamer]() error {
	return defaultRegistry.Claim(event.StreamOf[E](), reflect.TypeFor[E]())
}

// MustClaimFor is ClaimFor that panics on a conflict.
func MustClaimFor[E event.Streamer]() {
	if err := ClaimFor[E](); err != nil {
		panic(err)
	}
}
