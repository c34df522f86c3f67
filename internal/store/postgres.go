package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is an alternate durable Store backend for operators who
// want the KV abstraction backed by a SQL cluster instead of Redis — same
// Store interface, generalized from the teacher's internal/store.Init
// connection setup and migration style, plus a TTL sweep goroutine
// generalized from internal/cache.StartCleanup.
//
// Everything spec.md describes as KV-resident (probe caches, velocity
// counters, the recent-email window, the job queue, the results store) maps
// onto three tables: kv_entries for values and counters keyed by
// (namespace-prefixed) key, kv_lists for both bounded lists and queues (one
// row per element, ordered by its seq column), and kv_locks for lock tokens.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to connString and ensures the backing schema
// exists.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	const kvTable = `
	CREATE TABLE IF NOT EXISTS kv_entries (
		key         TEXT PRIMARY KEY,
		value       BYTEA,
		counter     BIGINT NOT NULL DEFAULT 0,
		expires_at  TIMESTAMPTZ
	);`

	const listTable = `
	CREATE TABLE IF NOT EXISTS kv_lists (
		key         TEXT NOT NULL,
		seq         BIGSERIAL,
		value       BYTEA NOT NULL,
		PRIMARY KEY (key, seq)
	);`

	const lockTable = `
	CREATE TABLE IF NOT EXISTS kv_locks (
		key         TEXT PRIMARY KEY,
		expires_at  TIMESTAMPTZ NOT NULL
	);`

	if _, err := s.pool.Exec(ctx, kvTable); err != nil {
		return fmt.Errorf("migration failed (kv_entries): %w", err)
	}
	if _, err := s.pool.Exec(ctx, listTable); err != nil {
		return fmt.Errorf("migration failed (kv_lists): %w", err)
	}
	if _, err := s.pool.Exec(ctx, lockTable); err != nil {
		return fmt.Errorf("migration failed (kv_locks): %w", err)
	}
	return nil
}

// StartCleanup launches a background goroutine that sweeps expired
// kv_entries and kv_locks rows on the given interval, generalized from the
// teacher's cache.StartCleanup lifecycle (runs until ctx is cancelled).
func (s *PostgresStore) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_, _ = s.pool.Exec(ctx, `DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at < now()`)
				_, _ = s.pool.Exec(ctx, `DELETE FROM kv_locks WHERE expires_at < now()`)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func expiresAt(ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := time.Now().Add(ttl)
	return &t
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM kv_entries WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`,
		key,
	).Scan(&value)
	if err != nil {
		return nil, false, nil // not found or expired: not an error
	}
	return value, true, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
	`, key, value, expiresAt(ttl))
	if err != nil {
		return fmt.Errorf("postgres upsert kv_entries %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("postgres delete kv_entries %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) IncrWithExpire(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO kv_entries (key, counter, expires_at)
		VALUES ($1, 1, $2)
		ON CONFLICT (key) DO UPDATE SET
			counter = CASE
				WHEN kv_entries.expires_at IS NOT NULL AND kv_entries.expires_at < now()
				THEN 1
				ELSE kv_entries.counter + 1
			END,
			expires_at = CASE
				WHEN kv_entries.expires_at IS NOT NULL AND kv_entries.expires_at < now()
				THEN EXCLUDED.expires_at
				ELSE kv_entries.expires_at
			END
		RETURNING counter
	`, key, expiresAt(ttl)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres incr kv_entries %s: %w", key, err)
	}
	return count, nil
}

func (s *PostgresStore) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO kv_locks (key, expires_at) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET expires_at = EXCLUDED.expires_at
		WHERE kv_locks.expires_at < now()
	`, key, time.Now().Add(ttl))
	if err != nil {
		return false, fmt.Errorf("postgres try-lock %s: %w", key, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Unlock(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM kv_locks WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("postgres unlock %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) ListPushBounded(ctx context.Context, key string, value []byte, maxLen int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres list-push begin %s: %w", key, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `INSERT INTO kv_lists (key, value) VALUES ($1, $2)`, key, value); err != nil {
		return fmt.Errorf("postgres list-push insert %s: %w", key, err)
	}
	if maxLen > 0 {
		_, err := tx.Exec(ctx, `
			DELETE FROM kv_lists WHERE key = $1 AND seq NOT IN (
				SELECT seq FROM kv_lists WHERE key = $1 ORDER BY seq DESC LIMIT $2
			)
		`, key, maxLen)
		if err != nil {
			return fmt.Errorf("postgres list-push trim %s: %w", key, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) ListRange(ctx context.Context, key string) ([][]byte, error) {
	rows, err := s.pool.Query(ctx, `SELECT value FROM kv_lists WHERE key = $1 ORDER BY seq ASC`, key)
	if err != nil {
		return nil, fmt.Errorf("postgres list-range %s: %w", key, err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var v []byte
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("postgres list-range scan %s: %w", key, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) QueuePush(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO kv_lists (key, value) VALUES ($1, $2)`, key, value)
	if err != nil {
		return fmt.Errorf("postgres queue-push %s: %w", key, err)
	}
	return nil
}

// QueuePop polls on a short interval since Postgres has no native blocking
// pop; this is the "store lacks blocking ops" fallback §4.12 anticipates.
func (s *PostgresStore) QueuePop(ctx context.Context, key string, timeout time.Duration) ([]byte, bool, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		v, ok, err := s.tryPop(ctx, key)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return v, true, nil
		}
		if time.Now().After(deadline) {
			return nil, false, nil
		}
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *PostgresStore) tryPop(ctx context.Context, key string) ([]byte, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("postgres queue-pop begin %s: %w", key, err)
	}
	defer tx.Rollback(ctx)

	var seq int64
	var value []byte
	err = tx.QueryRow(ctx, `
		SELECT seq, value FROM kv_lists WHERE key = $1 ORDER BY seq ASC LIMIT 1 FOR UPDATE SKIP LOCKED
	`, key).Scan(&seq, &value)
	if err != nil {
		return nil, false, nil
	}
	if _, err := tx.Exec(ctx, `DELETE FROM kv_lists WHERE key = $1 AND seq = $2`, key, seq); err != nil {
		return nil, false, fmt.Errorf("postgres queue-pop delete %s: %w", key, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("postgres queue-pop commit %s: %w", key, err)
	}
	return value, true, nil
}
