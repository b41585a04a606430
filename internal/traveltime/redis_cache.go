package traveltime

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache caches travel times in Redis so lookups are shared across
// server processes. Cache errors degrade to a straight provider call.
type RedisCache struct {
	next   Provider
	client *redis.Client
	ttl    time.Duration
	ctx    context.Context
}

func NewRedisCache(next Provider, addr, password string, ttl time.Duration) *RedisCache {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisCache{next: next, client: c, ttl: ttl, ctx: context.Background()}
}

func redisKey(from, to string) string { return "traveltime:" + from + "->" + to }

func (r *RedisCache) TravelTimeMinutes(from, to string) (int, error) {
	k := redisKey(from, to)
	if v, err := r.client.Get(r.ctx, k).Result(); err == nil {
		if minutes, err := strconv.Atoi(v); err == nil && minutes > 0 {
			return minutes, nil
		}
	}

	minutes, err := r.next.TravelTimeMinutes(from, to)
	if err != nil {
		return 0, err
	}
	_ = r.client.Set(r.ctx, k, strconv.Itoa(minutes), r.ttl).Err()
	return minutes, nil
}
