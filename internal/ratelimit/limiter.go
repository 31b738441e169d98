// Package ratelimit implements the global fixed-window quota gate shared by
// every enrichment worker. The company registry enforces one limit per API
// consumer, so the counter lives in Redis rather than process memory: all
// workers, across processes, consume from the same window.
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"prospector_backend/platform/logger"
)

const (
	// DefaultQuota is the number of registry lookups allowed per window.
	DefaultQuota = 5
	// DefaultWindow is the quota window length.
	DefaultWindow = 60 * time.Second

	defaultKey          = "ratelimit:registry"
	defaultPollInterval = time.Second
)

// consumeScript atomically increments the window counter, arming the window
// expiry on first use. Returns {allowed, ttl_ms}.
var consumeScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
local ttl = redis.call('PTTL', KEYS[1])
if count > tonumber(ARGV[1]) then
	return {0, ttl}
end
return {1, ttl}
`)

// Status is the read-only view of the limiter exposed to reporting collaborators.
type Status struct {
	Remaining int   `json:"remaining"`
	ResetInMs int64 `json:"resetInMs"`
	Blocked   bool  `json:"blocked"`
}

// Limiter is a Redis-backed fixed-window rate limiter.
type Limiter struct {
	rdb          *redis.Client
	key          string
	quota        int
	window       time.Duration
	pollInterval time.Duration
	log          *logger.Logger
}

// New creates a limiter with the registry quota of 5 lookups per 60 seconds.
func New(rdb *redis.Client, log *logger.Logger) *Limiter {
	return &Limiter{
		rdb:          rdb,
		key:          defaultKey,
		quota:        DefaultQuota,
		window:       DefaultWindow,
		pollInterval: defaultPollInterval,
		log:          log,
	}
}

// TryConsume attempts to take one slot from the current window.
func (l *Limiter) TryConsume(ctx context.Context) (bool, error) {
	res, err := consumeScript.Run(ctx, l.rdb, []string{l.key},
		l.quota, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return false, err
	}
	return res[0] == 1, nil
}

// WaitUntilAvailable parks the calling worker until it has consumed a slot.
// Returning with a slot already consumed means the wait cannot be starved by
// other workers grabbing the freed window first. Polls at least one second
// apart; only the invoking worker blocks.
func (l *Limiter) WaitUntilAvailable(ctx context.Context) error {
	for {
		allowed, err := l.TryConsume(ctx)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if st, err := l.Status(ctx); err == nil && l.log != nil {
			l.log.RateLimitBlocked(st.ResetInMs)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.pollInterval):
		}
	}
}

// Status reports the remaining quota, time to window reset and whether the
// window is currently exhausted.
func (l *Limiter) Status(ctx context.Context) (Status, error) {
	pipe := l.rdb.Pipeline()
	getCmd := pipe.Get(ctx, l.key)
	ttlCmd := pipe.PTTL(ctx, l.key)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return Status{}, err
	}

	count, err := getCmd.Int()
	if err == redis.Nil {
		return Status{Remaining: l.quota}, nil
	}
	if err != nil {
		return Status{}, err
	}

	remaining := l.quota - count
	if remaining < 0 {
		remaining = 0
	}

	resetIn := ttlCmd.Val()
	if resetIn < 0 {
		resetIn = 0
	}

	return Status{
		Remaining: remaining,
		ResetInMs: resetIn.Milliseconds(),
		Blocked:   remaining == 0,
	}, nil
}
