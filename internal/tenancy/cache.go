package tenancy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const featureCachePrefix = "feature:"

// FeatureCache stores feature decisions per organization.
type FeatureCache interface {
	Get(ctx context.Context, orgID int64, key FeatureKey) (Decision, bool, error)
	Set(ctx context.Context, orgID int64, key FeatureKey, decision Decision) error
	Invalidate(ctx context.Context, orgID int64) error
}

// RedisFeatureCache keeps one hash per organization so a plan change drops every
// decision with a single DEL.
type RedisFeatureCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisFeatureCache builds the cache. A non-positive ttl defaults to five minutes.
func NewRedisFeatureCache(client *redis.Client, ttl time.Duration) *RedisFeatureCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisFeatureCache{client: client, ttl: ttl}
}

func featureCacheKey(orgID int64) string {
	return fmt.Sprintf("%s%d", featureCachePrefix, orgID)
}

// Get returns a cached decision.
func (c *RedisFeatureCache) Get(ctx context.Context, orgID int64, key FeatureKey) (Decision, bool, error) {
	if c == nil || c.client == nil {
		return Decision{}, false, nil
	}
	raw, err := c.client.HGet(ctx, featureCacheKey(orgID), string(key)).Result()
	if err == redis.Nil {
		return Decision{}, false, nil
	}
	if err != nil {
		return Decision{}, false, err
	}
	allowed, plan, ok := strings.Cut(raw, ":")
	if !ok {
		return Decision{}, false, nil
	}
	return Decision{Allowed: allowed == "1", Plan: Plan(plan)}, true, nil
}

// Set stores a decision, refreshing the hash expiry.
func (c *RedisFeatureCache) Set(ctx context.Context, orgID int64, key FeatureKey, decision Decision) error {
	if c == nil || c.client == nil {
		return nil
	}
	flag := "0"
	if decision.Allowed {
		flag = "1"
	}
	hashKey := featureCacheKey(orgID)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, hashKey, string(key), flag+":"+string(decision.Plan))
	pipe.Expire(ctx, hashKey, c.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Invalidate drops all decisions of the organization.
func (c *RedisFeatureCache) Invalidate(ctx context.Context, orgID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, featureCacheKey(orgID)).Err()
}
