package natsstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/alekseev-bro/evstore/pkg/codec"
	"github.com/alekseev-bro/evstore/pkg/event"
	"github.com/alekseev-bro/evstore/pkg/state"
	"github.com/alekseev-bro/evstore/pkg/store"
)

// checkpoint is a folded state together with the stream sequence of the
// last envelope it includes.
type checkpoint[S any, E event.Event[S]] struct {
	Seq   uint64            `json:"seq"`
	State state.State[S, E] `json:"state"`
}

type checkpoints[S any, E event.Event[S]] struct {
	kv    jetstream.KeyValue
	codec codec.Codec
}

func newCheckpoints[S any, E event.Event[S]](ctx context.Context, js jetstream.JetStream, bucket string, o options) (*checkpoints[S, E], error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  bucket,
		Storage: jetstream.StorageType(o.storeType),
	})
	if err != nil {
		return nil, fmt.Errorf("create checkpoint bucket %q: %w", bucket, err)
	}
	return &checkpoints[S, E]{kv: kv, codec: o.codec}, nil
}

func (c *checkpoints[S, E]) save(ctx context.Context, id event.ID, cp checkpoint[S, E]) error {
	b, err := c.codec.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if _, err := c.kv.Put(ctx, id.String(), b); err != nil {
		return fmt.Errorf("put checkpoint: %w", err)
	}
	return nil
}

func (c *checkpoints[S, E]) load(ctx context.Context, id event.ID) (checkpoint[S, E], error) {
	var cp checkpoint[S, E]
	v, err := c.kv.Get(ctx, id.String())
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return cp, store.ErrNoCheckpoint
		}
		return cp, fmt.Errorf("get checkpoint: %w", err)
	}
	if err := c.codec.Unmarshal(v.Value(), &cp); err != nil {
		return cp, fmt.Errorf("decode checkpoint: %w", err)
	}
	return cp, nil
}
