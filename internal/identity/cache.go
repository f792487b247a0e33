package identity

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-tickets/internal/domain"
)

// Cache stores resolved identity snapshots. Implementations treat every
// backend error as a miss.
type Cache interface {
	Get(ctx context.Context, userID string) (domain.Identity, bool)
	Set(ctx context.Context, identity domain.Identity)
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (domain.Identity, bool) { return domain.Identity{}, false }
func (noopCache) Set(context.Context, domain.Identity)               {}

// RedisCache is a read-through cache keyed by user id.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCache returns a no-op cache when client is nil.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) Cache {
	if client == nil {
		return noopCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func cacheKey(userID string) string {
	return "identity:" + userID
}

func (c *RedisCache) Get(ctx context.Context, userID string) (domain.Identity, bool) {
	raw, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug("identity cache read failed", zap.String("user_id", userID), zap.Error(err))
		}
		return domain.Identity{}, false
	}
	var identity domain.Identity
	if err := json.Unmarshal(raw, &identity); err != nil {
		return domain.Identity{}, false
	}
	return identity, identity.Status == domain.IdentityResolved
}

func (c *RedisCache) Set(ctx context.Context, identity domain.Identity) {
	if identity.Degraded() {
		return
	}
	raw, err := json.Marshal(identity)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(identity.ID), raw, c.ttl).Err(); err != nil {
		c.logger.Debug("identity cache write failed", zap.String("user_id", identity.ID), zap.Error(err))
	}
}
