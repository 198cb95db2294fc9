package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/koneum/eduwaly/core"
	"github.com/koneum/eduwaly/core/plan"
	"github.com/koneum/eduwaly/services/metrics"
)

const keyPrefix = "eduwaly:plan:"

// RedisPlanCache shares plan catalog rows between API instances.
// Redis failures are logged and treated as misses.
type RedisPlanCache struct {
	client *redis.Client
	ttl    time.Duration
	logger core.Logger
}

var _ plan.Cache = (*RedisPlanCache)(nil) // interface compliance check

func NewRedisClient(conf *core.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: conf.Cache.RedisAddress,
		DB:   conf.Cache.RedisDB,
	})
}

func NewRedisPlanCache(client *redis.Client, ttl time.Duration, logger core.Logger) *RedisPlanCache {
	return &RedisPlanCache{client: client, ttl: ttl, logger: logger}
}

func (c *RedisPlanCache) Get(ctx context.Context, id string) (plan.Plan, bool) {
	data, err := c.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("reading plan cache", err, map[string]interface{}{"plan": id})
		}
		metrics.PlanCacheRequests.WithLabelValues("redis", "miss").Inc()
		return plan.Plan{}, false
	}

	var p plan.Plan
	if err := json.Unmarshal(data, &p); err != nil {
		c.logger.Warn("decoding cached plan", err, map[string]interface{}{"plan": id})
		metrics.PlanCacheRequests.WithLabelValues("redis", "miss").Inc()
		return plan.Plan{}, false
	}
	metrics.PlanCacheRequests.WithLabelValues("redis", "hit").Inc()
	return p, true
}

func (c *RedisPlanCache) Set(ctx context.Context, p plan.Plan) {
	data, err := json.Marshal(p)
	if err != nil {
		c.logger.Warn("encoding plan for cache", err, map[string]interface{}{"plan": p.ID})
		return
	}
	if err := c.client.Set(ctx, keyPrefix+p.ID, data, c.ttl).Err(); err != nil {
		c.logger.Warn("writing plan cache", err, map[string]interface{}{"plan": p.ID})
	}
}

func (c *RedisPlanCache) Invalidate(ctx context.Context, id string) {
	if err := c.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		c.logger.Error("invalidating plan cache", err, map[string]interface{}{"plan": id})
	}
}
