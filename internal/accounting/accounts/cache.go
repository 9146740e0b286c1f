package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TreeCache memoises account trees per organization.
type TreeCache interface {
	Fetch(ctx context.Context, orgID int64, loader func(context.Context) ([]*AccountNode, error)) ([]*AccountNode, error)
	Invalidate(ctx context.Context, orgID int64) error
}

// RedisTreeCache stores trees under a per-organization version; bumping the
// version orphans every cached tree of that organization.
type RedisTreeCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTreeCache instantiates the cache helper.
func NewRedisTreeCache(client *redis.Client, ttl time.Duration) *RedisTreeCache {
	return &RedisTreeCache{client: client, ttl: ttl}
}

func versionKey(orgID int64) string {
	return fmt.Sprintf("ledger:coa:version:%d", orgID)
}

func (c *RedisTreeCache) version(ctx context.Context, orgID int64) (int64, error) {
	ver, err := c.client.Get(ctx, versionKey(orgID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return ver, err
}

// Fetch returns the cached tree or builds and stores it with loader.
func (c *RedisTreeCache) Fetch(ctx context.Context, orgID int64, loader func(context.Context) ([]*AccountNode, error)) ([]*AccountNode, error) {
	if loader == nil {
		return nil, errors.New("accounts cache: loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	ver, err := c.version(ctx, orgID)
	if err != nil {
		return loader(ctx)
	}
	key := fmt.Sprintf("ledger:coa:tree:%d:%d", orgID, ver)
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var tree []*AccountNode
		if jsonErr := json.Unmarshal(payload, &tree); jsonErr == nil {
			return tree, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return loader(ctx)
	}
	tree, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(tree)
	if err != nil {
		return nil, err
	}
	_ = c.client.Set(ctx, key, raw, c.ttl).Err()
	return tree, nil
}

// Invalidate bumps the organization version.
func (c *RedisTreeCache) Invalidate(ctx context.Context, orgID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, versionKey(orgID)).Err()
}
