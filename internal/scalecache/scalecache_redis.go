package scalecache

import (
	"context"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

const redisScaleKey = "moderation/site_scale"

// RedisStore shares the snapshot between processes, with a short local tier
// in front of redis.
type RedisStore struct {
	Data *cache.Cache
	TTL  time.Duration
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	local := ttl / 10
	if local < time.Second {
		local = time.Second
	}
	return &RedisStore{
		Data: cache.New(&cache.Options{
			Redis:      rdb,
			LocalCache: cache.NewTinyLFU(16, local),
		}),
		TTL: ttl,
	}
}

func (s *RedisStore) Load(ctx context.Context) (Snapshot, bool, error) {
	var snap Snapshot
	err := s.Data.Get(ctx, redisScaleKey, &snap)
	if err == cache.ErrCacheMiss {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

func (s *RedisStore) Store(ctx context.Context, snap Snapshot) error {
	return s.Data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisScaleKey,
		Value: snap,
		TTL:   s.TTL,
	})
}

func (s *RedisStore) Invalidate(ctx context.Context) error {
	err := s.Data.Delete(ctx, redisScaleKey)
	if err == cache.ErrCacheMiss {
		return nil
	}
	return err
}
