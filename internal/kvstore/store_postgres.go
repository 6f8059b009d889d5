package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	s := &PostgresStore{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema() error {
	const q = `
CREATE TABLE IF NOT EXISTS client_state (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	if _, err := s.db.Exec(q); err != nil {
		return fmt.Errorf("ensure client_state schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(key string) (string, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, nil
	}

	var v string
	const q = `SELECT value FROM client_state WHERE key = $1`
	if err := s.db.QueryRow(q, key).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: query client state: %v", ErrUnavailable, err)
	}
	return v, true, nil
}

func (s *PostgresStore) Set(key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("key is required")
	}

	const q = `
INSERT INTO client_state (key, value, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (key) DO UPDATE
SET value = EXCLUDED.value,
	updated_at = NOW()`
	if _, err := s.db.Exec(q, key, value); err != nil {
		return fmt.Errorf("%w: upsert client state: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Remove(key string) error {
	const q = `DELETE FROM client_state WHERE key = $1`
	if _, err := s.db.Exec(q, strings.TrimSpace(key)); err != nil {
		return fmt.Errorf("%w: delete client state: %v", ErrUnavailable, err)
	}
	return nil
}

// WaitForPostgres pings db until it answers or timeout elapses.
func WaitForPostgres(ctx context.Context, db *sql.DB, timeout, every time.Duration) error {
	if every <= 0 {
		every = 2 * time.Second
	}
	deadline := time.Now().Add(timeout)
	for {
		pingCtx, cancel := context.WithTimeout(ctx, every)
		err := db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("postgres not ready within %s: %w", timeout, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(every):
		}
	}
}
