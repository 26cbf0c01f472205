package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenUsage is the outcome of a daily token quota check.
type TokenUsage struct {
	Allowed bool
	Used    int64
	Limit   int64
}

// TokenTracker tracks daily token consumption per subject via Redis.
type TokenTracker struct {
	rdb *redis.Client
}

// NewTokenTracker creates a token tracker. If rdb is nil, all checks pass.
func NewTokenTracker(rdb *redis.Client) *TokenTracker {
	return &TokenTracker{rdb: rdb}
}

func dailyTokenKey(subject string) string {
	day := time.Now().UTC().Format("2006-01-02")
	return fmt.Sprintf("lumen:tokens:daily:%s:%s", subject, day)
}

// CheckDailyTokens checks whether the subject is under its daily token
// quota. A limit of zero means unlimited.
func (t *TokenTracker) CheckDailyTokens(ctx context.Context, subject string, limit int64) (TokenUsage, error) {
	if t.rdb == nil || limit <= 0 {
		return TokenUsage{Allowed: true, Limit: limit}, nil
	}

	used, err := t.rdb.Get(ctx, dailyTokenKey(subject)).Int64()
	if err != nil && err != redis.Nil {
		// Fail open on Redis errors
		return TokenUsage{Allowed: true, Limit: limit}, nil
	}

	return TokenUsage{
		Allowed: used < limit,
		Used:    used,
		Limit:   limit,
	}, nil
}

// RecordTokens adds consumed tokens to the subject's daily counter.
func (t *TokenTracker) RecordTokens(ctx context.Context, subject string, tokens int64) error {
	if t.rdb == nil || tokens <= 0 {
		return nil
	}

	key := dailyTokenKey(subject)
	pipe := t.rdb.Pipeline()
	pipe.IncrBy(ctx, key, tokens)
	// Expire at end of day UTC + 1 hour buffer
	now := time.Now().UTC()
	endOfDay := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	ttl := endOfDay.Sub(now) + time.Hour
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}
