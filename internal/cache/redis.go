package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisCachePrefix = "lumen:completion:"

// RedisStore backs the response cache with Redis. TTL is enforced by
// Redis itself; capacity by the server's eviction policy. Failures are
// non-fatal: a miss is returned and the request degrades to a direct
// upstream call.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, fingerprint string) (*Entry, bool) {
	if s.rdb == nil {
		return nil, false
	}
	data, err := s.rdb.Get(ctx, redisCachePrefix+fingerprint).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("cache get failed", "error", err)
		}
		return nil, false
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		slog.Warn("cache entry corrupt", "fingerprint", fingerprint[:12], "error", err)
		return nil, false
	}
	return &entry, true
}

func (s *RedisStore) Put(ctx context.Context, entry *Entry) {
	if s.rdb == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, redisCachePrefix+entry.Fingerprint, data, s.ttl).Err(); err != nil {
		slog.Warn("cache put failed", "error", err)
	}
}
