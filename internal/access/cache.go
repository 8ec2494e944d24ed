package access

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRoleTTL bounds how stale a cached effective role may be. Reads
// within the window tolerate eventual consistency; role mutations invalidate
// eagerly.
const DefaultRoleTTL = 5 * time.Minute

const roleKeyPrefix = "access:role:"

// RoleCache stores resolved effective roles in Redis for a bounded interval.
// A nil cache (or nil client) degrades to always-miss.
type RoleCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRoleCache instantiates the cache helper.
func NewRoleCache(client *redis.Client, ttl time.Duration) *RoleCache {
	if ttl <= 0 {
		ttl = DefaultRoleTTL
	}
	return &RoleCache{client: client, ttl: ttl}
}

// Get loads the cached role for a principal. The boolean reports a hit.
func (c *RoleCache) Get(ctx context.Context, principalID string) (Role, bool, error) {
	if c == nil || c.client == nil || principalID == "" {
		return "", false, nil
	}
	value, err := c.client.Get(ctx, roleKeyPrefix+principalID).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	canon, ok := Canonical(Role(value))
	if !ok {
		// Stale or corrupted entry. Treat as a miss so the resolver refetches.
		return "", false, nil
	}
	return canon, true, nil
}

// Put stores the resolved role with the configured TTL.
func (c *RoleCache) Put(ctx context.Context, principalID string, role Role) error {
	if c == nil || c.client == nil || principalID == "" {
		return nil
	}
	return c.client.Set(ctx, roleKeyPrefix+principalID, string(role), c.ttl).Err()
}

// Invalidate drops the cached role after an assignment change or sign-out.
func (c *RoleCache) Invalidate(ctx context.Context, principalID string) error {
	if c == nil || c.client == nil || principalID == "" {
		return nil
	}
	err := c.client.Del(ctx, roleKeyPrefix+principalID).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
