// Package store persists client-side state: the credential of the command-line
// client (SQLite) and per-chat credentials of the Telegram client (Postgres).
package store

import (
	"context"
	"database/sql"
	"errors"

	"calorie-lens/api/internal/auth"
)

// ChatCredentials keeps one key/value namespace per Telegram chat.
type ChatCredentials struct{ DB *sql.DB }

func NewChatCredentials(db *sql.DB) *ChatCredentials { return &ChatCredentials{DB: db} }

const chatSchema = `
create table if not exists chat_state (
    chat_id    bigint      not null,
    key        text        not null,
    value      text        not null,
    updated_at timestamptz not null default now(),
    primary key (chat_id, key)
)`

func (r *ChatCredentials) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, chatSchema)
	return err
}

func (r *ChatCredentials) Get(ctx context.Context, chatID int64, key string) (string, bool, error) {
	const q = `select value from chat_state where chat_id = $1 and key = $2`
	var v string
	err := r.DB.QueryRowContext(ctx, q, chatID, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *ChatCredentials) Set(ctx context.Context, chatID int64, key, value string) error {
	const q = `
insert into chat_state(chat_id, key, value) values ($1, $2, $3)
on conflict (chat_id, key) do update set value = excluded.value, updated_at = now()`
	_, err := r.DB.ExecContext(ctx, q, chatID, key, value)
	return err
}

// ForChat scopes the repository to one chat as an auth.Store.
func (r *ChatCredentials) ForChat(chatID int64) auth.Store {
	return chatStore{repo: r, chatID: chatID}
}

type chatStore struct {
	repo   *ChatCredentials
	chatID int64
}

func (c chatStore) Get(ctx context.Context, key string) (string, bool, error) {
	return c.repo.Get(ctx, c.chatID, key)
}

func (c chatStore) Set(ctx context.Context, key, value string) error {
	return c.repo.Set(ctx, c.chatID, key, value)
}
