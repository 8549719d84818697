// Package codec encodes values stored next to the event log, such as state
// checkpoints.
package codec

import (
	"bytes"
	"encoding/json"
)

type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(b []byte, out any) error
}

var (
	JSON       Codec = jsonCodec{}
	StrictJSON Codec = jsonCodec{strict: true}
)

// jsonCodec with strict set rejects unknown fields, so a value written for
// an older shape of the type fails to decode instead of decoding partially.
type jsonCodec struct {
	strict bool
}

func (j jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (j jsonCodec) Unmarshal(b []byte, out any) error {
	if !j.strict {
		return json.Unmarshal(b, out)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}
