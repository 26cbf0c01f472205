package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "lumen:session:"

// SessionCache is a short-lived Redis cache of verified principals,
// keyed by credential digest. A nil client disables caching.
type SessionCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSessionCache(rdb *redis.Client, ttl time.Duration) *SessionCache {
	return &SessionCache{rdb: rdb, ttl: ttl}
}

func (c *SessionCache) Get(ctx context.Context, digest string) (*Principal, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, sessionKeyPrefix+digest).Bytes()
	if err != nil {
		return nil, false
	}
	var p Principal
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, false
	}
	if !p.ExpiresAt.IsZero() && time.Now().After(p.ExpiresAt) {
		return nil, false
	}
	return &p, true
}

func (c *SessionCache) Put(ctx context.Context, digest string, p *Principal) {
	if c == nil || c.rdb == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	ttl := c.ttl
	// Never cache past the principal's own expiry.
	if !p.ExpiresAt.IsZero() {
		if remain := time.Until(p.ExpiresAt); remain < ttl {
			ttl = remain
		}
	}
	if ttl <= 0 {
		return
	}
	c.rdb.Set(ctx, sessionKeyPrefix+digest, data, ttl)
}
