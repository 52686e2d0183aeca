package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"bienestar/store"
)

var DB *sql.DB

func InitDB(dataSourceName string) error {
	var err error
	DB, err = sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared across callers.
	DB.SetMaxOpenConns(1)

	createTables := `
	CREATE TABLE IF NOT EXISTS records (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS api_sessions (
		token TEXT PRIMARY KEY,
		encrypted_master_key TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		expires_at DATETIME NOT NULL
	);
	`

	if _, err = DB.Exec(createTables); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// RecordBackend stores encrypted records in the records table.
type RecordBackend struct {
	conn *sql.DB
}

func NewRecordBackend(conn *sql.DB) *RecordBackend {
	return &RecordBackend{conn: conn}
}

func (b *RecordBackend) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := b.conn.QueryRowContext(ctx, "SELECT value FROM records WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrNotFound
	}
	return value, err
}

func (b *RecordBackend) Put(ctx context.Context, key, value string) error {
	_, err := b.conn.ExecContext(ctx,
		`INSERT INTO records (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	return err
}

func (b *RecordBackend) Delete(ctx context.Context, key string) error {
	_, err := b.conn.ExecContext(ctx, "DELETE FROM records WHERE key = ?", key)
	return err
}

func (b *RecordBackend) Keys(ctx context.Context) ([]string, error) {
	rows, err := b.conn.QueryContext(ctx, "SELECT key FROM records")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
