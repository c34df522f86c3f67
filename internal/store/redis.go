package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the primary production Store backend. Connection setup and
// the BLPop-with-timeout idiom are grounded directly on the teacher's
// internal/queue.Init and internal/worker.Start.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to addr and verifies reachability with a bounded
// ping, exactly as the teacher's queue.Init does.
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis GET %s: %w", key, err)
	}
	return val, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis DEL %s: %w", key, err)
	}
	return nil
}

// incrWithExpireScript atomically increments key and, only when the
// increment created the key (new value == 1), applies the TTL in
// milliseconds passed as ARGV[1]. This is what gives the velocity counter
// (C9) its "first write sets the bucket TTL, later writes in the same
// bucket just increment" semantics without a race between INCR and PEXPIRE.
var incrWithExpireScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

func (r *RedisStore) IncrWithExpire(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := incrWithExpireScript.Run(ctx, r.client, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis INCR+EXPIRE %s: %w", key, err)
	}
	return n, nil
}

func (r *RedisStore) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis SETNX %s: %w", key, err)
	}
	return ok, nil
}

func (r *RedisStore) Unlock(ctx context.Context, key string) error {
	return r.Delete(ctx, key)
}

func (r *RedisStore) ListPushBounded(ctx context.Context, key string, value []byte, maxLen int) error {
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, value)
	if maxLen > 0 {
		// LTRIM keeps [-maxLen, -1]: the most recent maxLen entries,
		// oldest-out, matching RecentEmailWindow's eviction rule (§3).
		pipe.LTrim(ctx, key, int64(-maxLen), -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis RPUSH+LTRIM %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) ListRange(ctx context.Context, key string) ([][]byte, error) {
	vals, err := r.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis LRANGE %s: %w", key, err)
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out, nil
}

func (r *RedisStore) QueuePush(ctx context.Context, key string, value []byte) error {
	if err := r.client.RPush(ctx, key, value).Err(); err != nil {
		return fmt.Errorf("redis RPUSH %s: %w", key, err)
	}
	return nil
}

// QueuePop uses BLPop with a bounded timeout rather than blocking forever,
// for the same reason the teacher's worker.Start does: a periodic return
// gives the caller a natural checkpoint to observe ctx cancellation.
func (r *RedisStore) QueuePop(ctx context.Context, key string, timeout time.Duration) ([]byte, bool, error) {
	res, err := r.client.BLPop(ctx, timeout, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, false, fmt.Errorf("redis BLPOP %s: %w", key, err)
	}
	// BLPop returns [key, value].
	return []byte(res[1]), true, nil
}
