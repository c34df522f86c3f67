// Package store defines the abstract KV/counter store the risk engine and
// its probes depend on (C1). It backs per-probe caches, the velocity
// counters, the bounded recent-email window, the per-domain write lock, and
// the FIFO enrichment job queue + results store.
//
// The interface shape is generalized from the teacher's two storage-facing
// packages (internal/cache's in-memory TTL map and internal/queue's
// go-redis client) plus the outbound Cache port in BbangMxn-worker's
// core/port/out/worker_cache.go, trimmed to exactly the operations this
// spec's components use.
package store

import (
	"context"
	"time"
)

// Store is the one dependency every probe, the velocity counter, the
// pattern detector, and the job queue are built against. Implementations:
// Redis (primary, production), Postgres (alternate durable backend), and an
// in-memory map (tests, local smoke runs).
type Store interface {
	// Get returns the raw bytes for key and whether it was found
	// (unexpired). A miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set writes value at key with the given TTL. ttl <= 0 means "no
	// expiry" and should be used sparingly.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key unconditionally. Deleting a missing key is not an
	// error.
	Delete(ctx context.Context, key string) error

	// IncrWithExpire atomically increments the integer counter at key and,
	// only on the write that creates the key, applies ttl. This is the
	// primitive the velocity counter (C9) is built on: repeated calls
	// within the same hour bucket increment without resetting the TTL
	// clock, exactly matching the teacher's single-key counter semantics
	// generalized from its cache TTL handling.
	IncrWithExpire(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// TryLock attempts to acquire a short-TTL mutual-exclusion token at
	// key. Returns true if acquired. Used to serialize concurrent inserts
	// into a single domain's RecentEmailWindow (§5).
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Unlock releases a token acquired via TryLock. A no-op if the caller
	// no longer holds it (e.g. it already expired).
	Unlock(ctx context.Context, key string) error

	// ListPushBounded appends value to the list at key and trims the list
	// to at most maxLen entries, evicting the oldest first. This backs the
	// bounded, insertion-ordered RecentEmailWindow (§3).
	ListPushBounded(ctx context.Context, key string, value []byte, maxLen int) error

	// ListRange returns every entry currently in the list at key, oldest
	// first.
	ListRange(ctx context.Context, key string) ([][]byte, error)

	// QueuePush appends value to the FIFO queue at key (C11 producer
	// side).
	QueuePush(ctx context.Context, key string, value []byte) error

	// QueuePop blocks up to timeout waiting for an item at the head of the
	// FIFO queue at key, or returns (nil, false, nil) on timeout with no
	// error — callers must treat that as "queue empty right now", not a
	// failure (mirrors the teacher's redis.Nil-on-BLPop-timeout handling).
	QueuePop(ctx context.Context, key string, timeout time.Duration) ([]byte, bool, error)
}

// Closer is implemented by Store backends that hold a live connection and
// need an explicit shutdown hook (Redis pool, Postgres pool).
type Closer interface {
	Close() error
}
