package ingest

import (
	"context"
	"time"

	"sms-relay/pkg/utils"

	"github.com/redis/go-redis/v9"
)

const dedupeKeyPrefix = "sms-relay:inbound:"

// RedisDeduper remembers message sids in Redis for a bounded window.
type RedisDeduper struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisDeduper(rdb *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduper{rdb: rdb, ttl: ttl}
}

// Claim reports true the first time a sid is seen within the window.
func (d *RedisDeduper) Claim(ctx context.Context, messageSid string) (bool, error) {
	return utils.ClaimOnce(ctx, d.rdb, dedupeKeyPrefix+messageSid, d.ttl)
}

func (d *RedisDeduper) Release(ctx context.Context, messageSid string) error {
	return utils.ReleaseClaim(ctx, d.rdb, dedupeKeyPrefix+messageSid)
}
