package redis

import (
	"context"
	"time"
)

// Owner-checked lock scripts. A holder whose TTL lapsed must not delete or
// extend a lock that another cron instance now owns.
const (
	compareAndDeleteScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) end return 0`
	compareAndExpireScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("PEXPIRE", KEYS[1], ARGV[2]) end return 0`
)

// CompareAndDelete deletes key only while it still holds value.
func (c *Client) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	return c.evalOwned(ctx, compareAndDeleteScript, key, value)
}

// CompareAndExpire resets the TTL of key only while it still holds value.
func (c *Client) CompareAndExpire(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return c.evalOwned(ctx, compareAndExpireScript, key, value, ttl.Milliseconds())
}

func (c *Client) evalOwned(ctx context.Context, script, key, owner string, extra ...any) (bool, error) {
	store, err := c.conn()
	if err != nil {
		return false, err
	}
	args := append([]any{owner}, extra...)
	n, err := store.Eval(ctx, script, []string{key}, args...).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
