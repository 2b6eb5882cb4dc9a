package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/davidleathers/dependable-access-control/internal/domain/access"
)

const (
	relationshipKeyPrefix = "access:relationship:"
	defaultNegativeTTL    = 30 * time.Second
)

// RelationshipCache keeps relationship results in Redis. Positive results
// live for ttl; "no relationship" results live for the shorter negative TTL.
// The key is independent of argument order.
type RelationshipCache struct {
	client      redis.Cmdable
	ttl         time.Duration
	negativeTTL time.Duration
	logger      *zap.Logger
}

// CacheOption configures a RelationshipCache
type CacheOption func(*RelationshipCache)

// WithNegativeTTL sets how long a missing relationship is cached. It is
// capped at the positive ttl; non-positive values are ignored.
func WithNegativeTTL(d time.Duration) CacheOption {
	return func(c *RelationshipCache) {
		if d > 0 {
			c.negativeTTL = d
		}
	}
}

// NewRelationshipCache creates a cache over client. A non-positive ttl is rejected.
func NewRelationshipCache(client redis.Cmdable, ttl time.Duration, logger *zap.Logger, opts ...CacheOption) (*RelationshipCache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive, got %s", ttl)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &RelationshipCache{client: client, ttl: ttl, negativeTTL: defaultNegativeTTL, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	c.negativeTTL = min(c.negativeTTL, ttl)
	return c, nil
}

// Get returns the cached result for the pair, or nil on a miss
func (c *RelationshipCache) Get(ctx context.Context, a, b uuid.UUID) (*access.RelationshipResult, error) {
	key := relationshipKey(a, b)
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var result access.RelationshipResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Warn("dropping undecodable relationship cache entry", zap.String("key", key), zap.Error(err))
		c.client.Del(ctx, key)
		return nil, nil
	}
	return &result, nil
}

func (c *RelationshipCache) Set(ctx context.Context, a, b uuid.UUID, result access.RelationshipResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode relationship result: %w", err)
	}
	ttl := c.ttl
	if !result.Exists {
		ttl = c.negativeTTL
	}
	if err := c.client.Set(ctx, relationshipKey(a, b), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func relationshipKey(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if y < x {
		x, y = y, x
	}
	return relationshipKeyPrefix + x + ":" + y
}
