package didkey

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultCacheTTL is the default lifetime of a cached DID Document.
const DefaultCacheTTL = 5 * time.Minute

// CachingResolver wraps a Resolver with a process-wide, concurrency-safe,
// TTL-based cache of resolved DID Documents. Caching is purely an
// optimization; a non-positive TTL selects DefaultCacheTTL rather than
// disabling the cache.
type CachingResolver struct {
	inner Resolver
	cache *ttlcache.Cache[string, *DidDocument]
}

// NewCachingResolver wraps inner with a cache of the given TTL (DefaultCacheTTL
// if ttl <= 0) and starts its background eviction loop.
func NewCachingResolver(inner Resolver, ttl time.Duration) *CachingResolver {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	cache := ttlcache.New(ttlcache.WithTTL[string, *DidDocument](ttl))
	go cache.Start()

	return &CachingResolver{inner: inner, cache: cache}
}

// Resolve returns the cached DID Document for did if present and
// unexpired, otherwise resolves it via inner and caches the result. Only
// successful resolutions are cached.
func (c *CachingResolver) Resolve(ctx context.Context, did string) (*DidDocument, error) {
	if item := c.cache.Get(did); item != nil {
		return item.Value(), nil
	}

	doc, err := c.inner.Resolve(ctx, did)
	if err != nil {
		return nil, err
	}

	c.cache.Set(did, doc, ttlcache.DefaultTTL)
	return doc, nil
}

// Invalidate removes a cached DID Document, forcing the next Resolve to
// hit the wrapped resolver.
func (c *CachingResolver) Invalidate(did string) {
	c.cache.Delete(did)
}

// Len returns the number of entries currently cached.
func (c *CachingResolver) Len() int {
	return c.cache.Len()
}

// Stop stops the cache's background eviction goroutine.
func (c *CachingResolver) Stop() {
	c.cache.Stop()
}
