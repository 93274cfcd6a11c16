package redis

import (
	"context"
	"strconv"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/taskmarket/backend/repository"
)

// cursorTTL bounds how long an unrepairable value can linger: if both an
// advance and the follow-up invalidation fail, the key expires on its own
// and readers fall back to the change log.
const cursorTTL = 5 * time.Minute

// advanceScript raises the cursor only when the new value is larger, so two
// writers whose commands land out of order cannot move it backwards.
var advanceScript = redislib.NewScript(`
local cur = tonumber(redis.call("GET", KEYS[1]))
local val = tonumber(ARGV[1])
if cur == nil or val > cur then
	redis.call("SET", KEYS[1], ARGV[1], "EX", ARGV[2])
end
return 0
`)

type syncCursorCache struct {
	client *redislib.Client
	key    string
}

// NewSyncCursorCache creates a Redis-backed cache of the newest change-log
// timestamp. Writers advance it ahead of the log append, so a present value
// is an upper bound on the log; readers fall back to the change log
// whenever the cache errors or is empty.
func NewSyncCursorCache(client *redislib.Client) repository.SyncCursorCache {
	return &syncCursorCache{
		client: client,
		key:    "changelog:latest",
	}
}

func (c *syncCursorCache) Latest(ctx context.Context) (int64, error) {
	result, err := c.client.Get(ctx, c.key).Result()
	if err != nil {
		if err == redislib.Nil {
			return 0, nil
		}
		return 0, err
	}
	millis, err := strconv.ParseInt(result, 10, 64)
	if err != nil {
		return 0, err
	}
	return millis, nil
}

func (c *syncCursorCache) Advance(ctx context.Context, millis int64) error {
	return advanceScript.Run(ctx, c.client,
		[]string{c.key},
		strconv.FormatInt(millis, 10),
		int(cursorTTL.Seconds()),
	).Err()
}

func (c *syncCursorCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}
