package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/domain/user"
	"github.com/lizTheDeveloper/llm-tutor-sub000/internal/core/ports"
)

// DirectoryCachePrefix namespaces principal role entries in the shared cache.
const DirectoryCachePrefix = "quotacache"

// directoryLoadTimeout bounds one coalesced directory load.
const directoryLoadTimeout = 2 * time.Second

func cacheSetSilently(c ports.Cache, ctx context.Context, key string, v any, ttl time.Duration) {
	if c == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.Set(ctx, key, b, ttl)
}

func cacheGet[T any](c ports.Cache, ctx context.Context, key string) (*T, bool) {
	if c == nil {
		return nil, false
	}
	b, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, false
	}
	return &v, true
}

// CachingPrincipalDirectory decorates a PrincipalDirectory with a shared cache-aside layer.
// Only successful lookups are cached so a directory outage never pins a principal to the
// fallback tier past the outage.
type CachingPrincipalDirectory struct {
	inner ports.PrincipalDirectory
	cache ports.Cache
	ttl   time.Duration
	group singleflight.Group
}

func NewCachingPrincipalDirectory(inner ports.PrincipalDirectory, cache ports.Cache, ttl time.Duration) *CachingPrincipalDirectory {
	return &CachingPrincipalDirectory{inner: inner, cache: cache, ttl: ttl}
}

func principalRoleKey(principalID string) string {
	return "principal:role:" + principalID
}

func (c *CachingPrincipalDirectory) GetRole(ctx context.Context, principalID string) (user.UserRole, error) {
	key := principalRoleKey(principalID)
	if v, ok := cacheGet[user.UserRole](c.cache, ctx, key); ok && v.IsValid() {
		return *v, nil
	}
	// a waiter giving up must not cancel the load the others share
	ch := c.group.DoChan(key, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), directoryLoadTimeout)
		defer cancel()
		role, err := c.inner.GetRole(lctx, principalID)
		if err != nil {
			return user.RoleUnknown, err
		}
		cacheSetSilently(c.cache, lctx, key, role, c.ttl)
		return role, nil
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return user.RoleUnknown, ctx.Err()
	}
	if res.Err != nil {
		return user.RoleUnknown, res.Err
	}
	role, ok := res.Val.(user.UserRole)
	if !ok {
		return user.RoleUnknown, fmt.Errorf("unexpected type from singleflight result")
	}
	return role, nil
}

// Invalidate drops the cached role after a directory change.
func (c *CachingPrincipalDirectory) Invalidate(ctx context.Context, principalID string) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Delete(ctx, principalRoleKey(principalID))
}
