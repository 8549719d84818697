// Package sqlitestore persists envelopes in a SQLite file.
//
// All payload types may share one file: rows are keyed by stream name, ID
// and version, and the primary key rejects a second envelope with the same
// version.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alekseev-bro/evstore/pkg/event"
	"github.com/alekseev-bro/evstore/pkg/state"
	"github.com/alekseev-bro/evstore/pkg/store"
)

const v1Init = `
CREATE TABLE IF NOT EXISTS events (
	stream  TEXT    NOT NULL,
	id      TEXT    NOT NULL,
	version INTEGER NOT NULL,
	date    TEXT    NOT NULL,
	user    TEXT    NOT NULL,
	data    TEXT    NOT NULL,
	PRIMARY KEY (stream, id, version)
) WITHOUT ROWID;
`

type Store[S any, E event.Event[S]] struct {
	db     *db
	stream string
	log    *slog.Logger
	closed atomic.Bool
}

type Option func(*options)

type options struct {
	log *slog.Logger
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// Open opens the file named by cfg.Path, creating the schema if needed.
func Open[S any, E event.Event[S]](ctx context.Context, cfg Config, opts ...Option) (*Store[S, E], error) {
	o := options{log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	d, err := openDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if _, err := d.writer.ExecContext(ctx, v1Init); err != nil {
		d.close()
		return nil, fmt.Errorf("exec v1 init: %w", err)
	}
	stream := event.StreamOf[E]()
	return &Store[S, E]{
		db:     d,
		stream: stream,
		log:    o.log.With("store", "sqlite", "stream", stream),
	}, nil
}

func (s *Store[S, E]) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.close()
}

func (s *Store[S, E]) Save(ctx context.Context, env event.Envelope[E]) (event.ID, error) {
	if s.closed.Load() {
		return event.NilID, store.ErrClosed
	}
	info := env.Info()
	data, err := event.Encode(env)
	if err != nil {
		return event.NilID, fmt.Errorf("save: %w", err)
	}
	user, err := info.User.MarshalText()
	if err != nil {
		return event.NilID, fmt.Errorf("save: %w", err)
	}

	err = s.db.transact(ctx, func(tx *sql.Tx) error {
		var current uint64
		row := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM events WHERE stream = ? AND id = ?;", s.stream, info.ID)
		if err := row.Scan(&current); err != nil {
			return fmt.Errorf("select version: %w", err)
		}
		if err := store.Expect(env, current); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO events (stream, id, version, date, user, data) VALUES (?, ?, ?, ?, ?, ?);",
			s.stream, info.ID, info.Version, formatTime(info.Date), string(user), string(data),
		)
		if err != nil {
			if isPrimaryKeyViolation(err) {
				return store.Conflict(env, current, err)
			}
			return fmt.Errorf("insert event: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			s.log.Warn("occ", "id", info.ID, "version", info.Version, "error", err)
			return event.NilID, err
		}
		return event.NilID, fmt.Errorf("save: %w", err)
	}
	s.log.Debug("event stored", "id", info.ID, "version", info.Version)
	return info.ID, nil
}

func (s *Store[S, E]) FindByID(ctx context.Context, id event.ID) (state.State[S, E], error) {
	envs, err := s.load(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNoEvents) {
			return state.Init[S, E](), nil
		}
		return state.State[S, E]{}, fmt.Errorf("find by id: %w", err)
	}
	return state.Fold(envs...), nil
}

// Envelopes returns every stored envelope of id in version order.
func (s *Store[S, E]) Envelopes(ctx context.Context, id event.ID) ([]event.Envelope[E], error) {
	envs, err := s.load(ctx, id)
	if errors.Is(err, store.ErrNoEvents) {
		return nil, nil
	}
	return envs, err
}

// IDs lists the stream instances that have at least one envelope.
func (s *Store[S, E]) IDs(ctx context.Context) ([]event.ID, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	rows, err := s.db.reader.QueryContext(ctx, "SELECT DISTINCT id FROM events WHERE stream = ? ORDER BY id;", s.stream)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer rows.Close()

	var ids []event.ID
	for rows.Next() {
		var id event.ID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}
	return ids, nil
}

func (s *Store[S, E]) load(ctx context.Context, id event.ID) ([]event.Envelope[E], error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	rows, err := s.db.reader.QueryContext(ctx,
		"SELECT data FROM events WHERE stream = ? AND id = ? ORDER BY version ASC;",
		s.stream, id,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var envs []event.Envelope[E]
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		env, err := event.Decode[E]([]byte(data))
		if err != nil {
			return nil, err
		}
		envs = append(envs, env)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	if len(envs) == 0 {
		return nil, store.ErrNoEvents
	}
	return envs, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
