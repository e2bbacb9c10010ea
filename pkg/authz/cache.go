package authz

import (
	"context"
	"strings"
	"time"

	"github.com/michelin/ns4kafka-go/pkg/cache"
	"github.com/michelin/ns4kafka-go/pkg/resource"
)

// DefaultCacheTTL is the default lifetime of a cached decision.
const DefaultCacheTTL = 10 * time.Second

// CachedEngine memoizes decisions of another Authorizer. Any change to a
// Namespace or RoleBinding should be reported through Invalidate.
type CachedEngine struct {
	inner Authorizer
	cache *cache.LRUCache[Decision]
}

// NewCachedEngine wraps inner with a decision cache.
func NewCachedEngine(inner Authorizer, maxSize int, ttl time.Duration) *CachedEngine {
	return &CachedEngine{inner: inner, cache: cache.NewLRUCache[Decision](maxSize, ttl)}
}

// Authorize checks the cache first and delegates on miss.
func (c *CachedEngine) Authorize(ctx context.Context, req Request) Decision {
	if req.Principal == nil {
		return c.inner.Authorize(ctx, req)
	}
	key := cacheKey(req)
	if d, ok := c.cache.Get(key); ok {
		return d
	}
	d := c.inner.Authorize(ctx, req)
	c.cache.Set(key, d)
	return d
}

// Invalidate drops every cached decision when key is a kind that feeds
// decisions. It has the store.ChangeFunc signature.
func (c *CachedEngine) Invalidate(key resource.Key) {
	if key.Kind == resource.KindNamespace || key.Kind == resource.KindRoleBinding {
		c.cache.InvalidateAll()
	}
}

// Stats returns cache hits and misses.
func (c *CachedEngine) Stats() (hits, misses uint64) {
	return c.cache.Stats()
}

func cacheKey(req Request) string {
	p := req.Principal
	return strings.Join([]string{
		p.Username(),
		strings.Join(p.Groups(), ","),
		boolString(p.IsAdmin()),
		strings.ToUpper(req.Method),
		strings.TrimRight(req.Path, "/"),
	}, "\x00")
}

func boolString(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
