package orgs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hubatlas/backend/internal/models"
	"github.com/hubatlas/backend/pkg/redis"
)

const chainKeyPrefix = "orgchain:"

// ChainCache is a read-through redis cache in front of the repository's
// ancestor-chain fetch. Chains are read on every permission check and every
// escalation, and change only when an org is reparented, so a short TTL plus
// explicit invalidation on reparent keeps them fresh.
type ChainCache struct {
	source ChainSource
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewChainCache wraps source with a redis cache.
func NewChainCache(source ChainSource, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *ChainCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChainCache{source: source, rdb: rdb, ttl: ttl, logger: logger}
}

// AncestorChain returns the cached chain when present, otherwise loads it from
// the source and stores it. Cache failures degrade to source reads.
func (c *ChainCache) AncestorChain(ctx context.Context, orgID int64) (models.AncestorChain, error) {
	key := fmt.Sprintf("%s%d", chainKeyPrefix, orgID)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var chain models.AncestorChain
		if err := json.Unmarshal(raw, &chain); err == nil {
			return chain, nil
		}
		c.logger.Warn("corrupt chain cache entry", zap.String("key", key))
	} else if err != goredis.Nil {
		c.logger.Warn("chain cache read failed", zap.Error(err))
	}

	chain, err := c.source.AncestorChain(ctx, orgID)
	if err != nil {
		return chain, err
	}
	if raw, err := json.Marshal(chain); err == nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.logger.Warn("chain cache write failed", zap.Error(err))
		}
	}
	return chain, nil
}

// Invalidate drops cached chains for the given orgs. Called after reparenting.
func (c *ChainCache) Invalidate(ctx context.Context, orgIDs ...int64) {
	if len(orgIDs) == 0 {
		return
	}
	keys := make([]string, len(orgIDs))
	for i, id := range orgIDs {
		keys[i] = fmt.Sprintf("%s%d", chainKeyPrefix, id)
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("chain cache invalidate failed", zap.Error(err))
	}
}
