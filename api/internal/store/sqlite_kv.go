package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // sqlite driver
)

// SQLiteKV is a single-file key/value store for the command-line client.
type SQLiteKV struct{ DB *sql.DB }

const kvSchema = `
create table if not exists kv (
    key        text primary key,
    value      text not null,
    updated_at datetime not null default current_timestamp
)`

// OpenSQLiteKV opens (or creates) the store at path.
func OpenSQLiteKV(path string) (*SQLiteKV, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(kvSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteKV{DB: db}, nil
}

func (s *SQLiteKV) Close() error { return s.DB.Close() }

func (s *SQLiteKV) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.DB.QueryRowContext(ctx, `select value from kv where key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *SQLiteKV) Set(ctx context.Context, key, value string) error {
	const q = `
insert into kv(key, value) values (?, ?)
on conflict(key) do update set value = excluded.value, updated_at = current_timestamp`
	_, err := s.DB.ExecContext(ctx, q, key, value)
	return err
}
