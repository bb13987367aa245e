package perm

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/crewhub/crewhub/pkg/observability"
)

// negativeEntry marks a cached "no such grant" result
const negativeEntry = "-"

// CachedStore decorates a Store with a Redis read-through cache for
// FindGrant. Both hits and misses are cached; writes invalidate the
// affected keys so revocation takes effect immediately rather than
// after TTL expiry.
type CachedStore struct {
	inner   Store
	client  *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewCachedStore wraps a Store with a Redis grant cache
func NewCachedStore(inner Store, client *redis.Client, ttl time.Duration, metrics *observability.Metrics) *CachedStore {
	return &CachedStore{
		inner:   inner,
		client:  client,
		ttl:     ttl,
		metrics: metrics,
	}
}

func grantCacheKey(key GrantKey) string {
	return fmt.Sprintf("perm:grant:%d:%s:%d:%s",
		key.UserID, key.ResourceType, key.ResourceID, key.PermissionType)
}

// FindGrant looks up a grant, consulting Redis first. Cache failures
// degrade to a direct store lookup.
func (c *CachedStore) FindGrant(ctx context.Context, key GrantKey) (*Grant, error) {
	cacheKey := grantCacheKey(key)

	cached, err := c.client.Get(ctx, cacheKey).Result()
	if err == nil {
		c.recordHit()
		if cached == negativeEntry {
			return nil, nil
		}
		var grant Grant
		if err := json.Unmarshal([]byte(cached), &grant); err == nil {
			return &grant, nil
		}
		// Corrupt entry, fall through to the store
	}
	c.recordMiss()

	grant, err := c.inner.FindGrant(ctx, key)
	if err != nil {
		return nil, err
	}

	if grant == nil {
		c.client.Set(ctx, cacheKey, negativeEntry, c.ttl)
		return nil, nil
	}

	if data, err := json.Marshal(grant); err == nil {
		c.client.Set(ctx, cacheKey, data, c.ttl)
	}

	return grant, nil
}

// CreateGrant creates a grant and refreshes its cache entry
func (c *CachedStore) CreateGrant(ctx context.Context, key GrantKey) (*Grant, error) {
	grant, err := c.inner.CreateGrant(ctx, key)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(grant); err == nil {
		c.client.Set(ctx, grantCacheKey(key), data, c.ttl)
	}

	return grant, nil
}

// DeleteGrant deletes a grant and invalidates its cache entry
func (c *CachedStore) DeleteGrant(ctx context.Context, key GrantKey) error {
	if err := c.inner.DeleteGrant(ctx, key); err != nil {
		return err
	}
	c.client.Del(ctx, grantCacheKey(key))
	return nil
}

// DeleteOrganizationGrants deletes a user's organization grants and
// invalidates their cache entries. When the delete runs inside a
// transaction the rows stay visible until commit, so callers must
// invalidate again after committing (Evaluator.InvalidateOrganizationGrantCache).
func (c *CachedStore) DeleteOrganizationGrants(ctx context.Context, tx *sql.Tx, userID, orgID int64) error {
	if err := c.inner.DeleteOrganizationGrants(ctx, tx, userID, orgID); err != nil {
		return err
	}
	c.InvalidateOrganizationGrants(ctx, userID, orgID)
	return nil
}

// InvalidateOrganizationGrants drops every cached entry, positive or
// negative, that a user can hold on an organization. The tuple space is
// small enough to enumerate, which avoids listing rows that may already
// be deleted.
func (c *CachedStore) InvalidateOrganizationGrants(ctx context.Context, userID, orgID int64) {
	keys := make([]string, 0, len(permissionTypes))
	for _, pt := range permissionTypes {
		keys = append(keys, grantCacheKey(GrantKey{
			UserID:         userID,
			ResourceType:   ResourceOrganization,
			ResourceID:     orgID,
			PermissionType: pt,
		}))
	}
	c.client.Del(ctx, keys...)
}

// ListUserGrants always goes to the store; listings aren't cached
func (c *CachedStore) ListUserGrants(ctx context.Context, userID int64) ([]Grant, error) {
	return c.inner.ListUserGrants(ctx, userID)
}

func (c *CachedStore) recordHit() {
	if c.metrics != nil {
		c.metrics.GrantCacheHitsTotal.Inc()
	}
}

func (c *CachedStore) recordMiss() {
	if c.metrics != nil {
		c.metrics.GrantCacheMissesTotal.Inc()
	}
}
