// Package natsstore persists envelopes in NATS JetStream.
//
// Each event stream gets its own JetStream stream and every stream instance
// its own subject, so the last subject sequence guards the version chain.
package natsstore

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/synadia-io/orbit.go/jetstreamext"

	"github.com/alekseev-bro/evstore/pkg/codec"
	"github.com/alekseev-bro/evstore/pkg/natsconn"
	"github.com/alekseev-bro/evstore/pkg/event"
	"github.com/alekseev-bro/evstore/pkg/state"
	"github.com/alekseev-bro/evstore/pkg/store"
)

type Store[S any, E event.Event[S]] struct {
	js          jetstream.JetStream
	stream      jetstream.Stream
	name        string
	kind        string
	checkpoints *checkpoints[S, E]
	threshold   int
	log         *slog.Logger
	release     natsconn.CloseFunc
}

// New creates or updates the JetStream stream of E and, when enabled, its
// checkpoint bucket.
func New[S any, E event.Event[S]](ctx context.Context, js jetstream.JetStream, opts ...Option) (*Store[S, E], error) {
	o := options{codec: codec.JSON, log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	kind := event.StreamOf[E]()
	if err := validToken(kind); err != nil {
		return nil, err
	}

	s := &Store[S, E]{
		js:        js,
		name:      "events-" + kind,
		kind:      kind,
		threshold: o.checkpoints,
		log:       o.log.With("store", "nats", "stream", kind),
	}
	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        s.name,
		Subjects:    []string{s.allSubjects()},
		Storage:     jetstream.StorageType(o.storeType),
		Duplicates:  o.dedupe,
		AllowDirect: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create stream %q: %w", s.name, err)
	}
	s.stream = stream

	if o.checkpoints > 0 {
		s.checkpoints, err = newCheckpoints[S, E](ctx, js, "checkpoint-"+kind, o)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Dial leases a connection from connect and builds the store on it. Close
// returns the lease. Pass a natsconn.Shared connector to share one
// connection with other stores and buses.
func Dial[S any, E event.Event[S]](ctx context.Context, connect natsconn.Connector, opts ...Option) (*Store[S, E], error) {
	nc, release, err := connect()
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		release()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	s, err := New[S, E](ctx, js, opts...)
	if err != nil {
		release()
		return nil, err
	}
	s.release = release
	return s, nil
}

// Close releases the connection leased by Dial. It does nothing for a store
// built with New.
func (s *Store[S, E]) Close() error {
	if s.release != nil {
		s.release()
	}
	return nil
}

func validToken(kind string) error {
	if kind == "" || strings.ContainsAny(kind, ".*> \t\r\n") {
		return fmt.Errorf("stream name %q is not a valid subject token", kind)
	}
	return nil
}

func (s *Store[S, E]) subjectForID(id event.ID) string {
	return fmt.Sprintf("%s.%s", s.kind, id)
}

func (s *Store[S, E]) allSubjects() string {
	return s.kind + ".*"
}

func msgID(info event.Info) string {
	return fmt.Sprintf("%s-%d", info.ID, info.Version)
}

// last returns the stream sequence and version of the newest envelope of id,
// both zero when id has none.
func (s *Store[S, E]) last(ctx context.Context, id event.ID) (seq, version uint64, err error) {
	msg, err := s.stream.GetLastMsgForSubject(ctx, s.subjectForID(id))
	if err != nil {
		if errors.Is(err, jetstream.ErrMsgNotFound) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("get last message: %w", err)
	}
	env, err := event.Decode[E](msg.Data)
	if err != nil {
		return 0, 0, err
	}
	return msg.Sequence, env.Info().Version, nil
}

func (s *Store[S, E]) Save(ctx context.Context, env event.Envelope[E]) (event.ID, error) {
	info := env.Info()
	subj := s.subjectForID(info.ID)

	lastSeq, current, err := s.last(ctx, info.ID)
	if err != nil {
		return event.NilID, fmt.Errorf("save: %w", err)
	}
	if err := store.Expect(env, current); err != nil {
		s.log.Warn("occ", "id", info.ID, "version", info.Version, "current", current)
		return event.NilID, err
	}

	data, err := event.Encode(env)
	if err != nil {
		return event.NilID, fmt.Errorf("save: %w", err)
	}
	msg := nats.NewMsg(subj)
	msg.Header.Set(jetstream.MsgIDHeader, msgID(info))
	msg.Data = data

	ack, err := s.js.PublishMsg(ctx, msg, jetstream.WithExpectLastSequencePerSubject(lastSeq))
	if err != nil {
		var apiErr *jetstream.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence {
			s.log.Warn("occ", "id", info.ID, "version", info.Version, "subject", subj)
			return event.NilID, store.Conflict(env, current, err)
		}
		return event.NilID, fmt.Errorf("save: %w", err)
	}
	if ack.Duplicate {
		s.log.Warn("occ", "id", info.ID, "version", info.Version, "duplicate", true)
		return event.NilID, store.Conflict(env, current, nil)
	}
	s.log.Info("event stored", "id", info.ID, "version", info.Version, "seq", ack.Sequence)
	return info.ID, nil
}

func (s *Store[S, E]) FindByID(ctx context.Context, id event.ID) (state.State[S, E], error) {
	cur := state.Init[S, E]()
	var fromSeq uint64
	if s.checkpoints != nil {
		cp, err := s.checkpoints.load(ctx, id)
		switch {
		case err == nil:
			cur, fromSeq = cp.State, cp.Seq
		case errors.Is(err, store.ErrNoCheckpoint):
		default:
			s.log.Warn("checkpoint ignored", "id", id, "error", err)
		}
	}

	replayed, lastSeq := 0, fromSeq
	for msg, err := range s.load(ctx, id, fromSeq+1) {
		if err != nil {
			if errors.Is(err, store.ErrNoEvents) {
				break
			}
			return state.State[S, E]{}, fmt.Errorf("find by id: %w", err)
		}
		env, err := event.Decode[E](msg.Data)
		if err != nil {
			return state.State[S, E]{}, fmt.Errorf("find by id: %w", err)
		}
		cur = cur.Apply(env)
		lastSeq = msg.Sequence
		replayed++
	}

	if s.checkpoints != nil && replayed >= s.threshold {
		if err := s.checkpoints.save(ctx, id, checkpoint[S, E]{Seq: lastSeq, State: cur}); err != nil {
			s.log.Error("checkpoint save", "id", id, "error", err)
		} else {
			s.log.Info("checkpoint saved", "id", id, "version", cur.Version(), "seq", lastSeq)
		}
	}
	return cur, nil
}

// load yields the raw messages of id from stream sequence fromSeq on. A
// subject without messages yields store.ErrNoEvents.
func (s *Store[S, E]) load(ctx context.Context, id event.ID, fromSeq uint64) iter.Seq2[*jetstream.RawStreamMsg, error] {
	return func(yield func(*jetstream.RawStreamMsg, error) bool) {
		msgs, err := jetstreamext.GetBatch(ctx,
			s.js, s.name, math.MaxInt, jetstreamext.GetBatchSubject(s.subjectForID(id)),
			jetstreamext.GetBatchSeq(fromSeq))
		if err != nil {
			yield(nil, fmt.Errorf("get events: %w", err))
			return
		}
		for msg, err := range msgs {
			if err != nil {
				if errors.Is(err, jetstreamext.ErrNoMessages) {
					yield(nil, store.ErrNoEvents)
					return
				}
				yield(nil, fmt.Errorf("get batch: %w", err))
				return
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}

// Checkpoint returns the stored checkpoint of id, or store.ErrNoCheckpoint.
func (s *Store[S, E]) Checkpoint(ctx context.Context, id event.ID) (state.State[S, E], uint64, error) {
	if s.checkpoints == nil {
		return state.State[S, E]{}, 0, store.ErrNoCheckpoint
	}
	cp, err := s.checkpoints.load(ctx, id)
	if err != nil {
		return state.State[S, E]{}, 0, err
	}
	return cp.State, cp.Seq, nil
}
