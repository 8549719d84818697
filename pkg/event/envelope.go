package event

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Envelope bundles metadata with one payload. It is immutable.
//
// The JSON form is flat: metadata fields and payload fields share one object.
type Envelope[E any] struct {
	info    Info
	payload E
}

func NewEnvelope[E any](info Info, payload E) Envelope[E] {
	return Envelope[E]{info: info, payload: payload}
}

func (e Envelope[E]) Info() Info {
	return e.info
}

func (e Envelope[E]) Payload() E {
	return e.payload
}

func (e Envelope[E]) Take() (Info, E) {
	return e.info, e.payload
}

func (e Envelope[E]) MarshalJSON() ([]byte, error) {
	pb, err := json.Marshal(e.payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(pb, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("marshal payload %T: %w", e.payload, ErrNotAnObject)
	}
	// encoding/json matches keys case-insensitively on decode, so "Version"
	// would be read back as the metadata version.
	for k := range fields {
		for _, m := range metadataFields {
			if strings.EqualFold(k, m) {
				return nil, fmt.Errorf("marshal payload %T field %q: %w", e.payload, k, ErrFieldCollision)
			}
		}
	}

	mb, err := json.Marshal(e.info)
	if err != nil {
		return nil, fmt.Errorf("marshal info: %w", err)
	}
	var meta map[string]json.RawMessage
	if err := json.Unmarshal(mb, &meta); err != nil {
		return nil, fmt.Errorf("marshal info: %w", err)
	}
	for k, v := range meta {
		fields[k] = v
	}
	return json.Marshal(fields)
}

func (e *Envelope[E]) UnmarshalJSON(data []byte) error {
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return fmt.Errorf("unmarshal info: %w", err)
	}
	var payload E
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	e.info = info
	e.payload = payload
	return nil
}

// Decode parses a flat record and checks that it belongs to the stream of E.
func Decode[E Streamer](data []byte) (Envelope[E], error) {
	var env Envelope[E]
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("decode: %w", err)
	}
	if want := StreamOf[E](); env.info.Stream != want {
		return Envelope[E]{}, fmt.Errorf("decode: stream %q, want %q: %w", env.info.Stream, want, ErrStreamMismatch)
	}
	return env, nil
}

// Encode is json.Marshal of the envelope.
func Encode[E any](env Envelope[E]) ([]byte, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return b, nil
}
