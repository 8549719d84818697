package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// db routes writes through a single connection and reads through a pool.
type db struct {
	writer *sql.DB
	reader *sql.DB
}

func openDB(cfg Config) (*db, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	file := filepath.Clean(cfg.Path)
	busy := fmt.Sprintf("_pragma=busy_timeout(%d)", cfg.BusyTimeout.Milliseconds())

	writer, err := open(file, []string{
		"_pragma=journal_mode(WAL)",
		"_pragma=synchronous(NORMAL)",
		busy,
		"_txlock=immediate",
	}, 1)
	if err != nil {
		return nil, fmt.Errorf("setup writer: %w", err)
	}
	readers := cfg.MaxReaders
	if readers <= 0 {
		readers = 1
	}
	reader, err := open(file, []string{busy, "_pragma=query_only(1)"}, readers)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("setup reader: %w", err)
	}
	return &db{writer: writer, reader: reader}, nil
}

func open(file string, params []string, maxConns int) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?%s", file, strings.Join(params, "&"))
	sdb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", file, err)
	}
	sdb.SetMaxOpenConns(maxConns)
	return sdb, nil
}

func (d *db) close() error {
	return errors.Join(d.reader.Close(), d.writer.Close())
}

// transact runs fn in a write transaction and commits when fn succeeds.
func (d *db) transact(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func isPrimaryKeyViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}
