package event

import "errors"

var (
	ErrNoActor        = errors.New("actor is not set")
	ErrFieldCollision = errors.New("payload field collides with metadata field")
	ErrNotAnObject    = errors.New("payload must encode to a json object")
	ErrStreamMismatch = errors.New("envelope stream does not match payload stream")
)
