package infra

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// sharedFetchTimeout bounds a collapsed catalog lookup. The lookup runs on
// behalf of every waiter, so it is not tied to the first caller's context.
const sharedFetchTimeout = 10 * time.Second

// CacheStore is the subset of *redis.Client the catalog cache needs.
type CacheStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedCatalog keeps product lookups in redis for a short TTL and
// collapses concurrent lookups of the same product into one request.
// Prices are re-read from the catalog once the TTL lapses.
type CachedCatalog struct {
	next         CatalogClientInterface
	cache        CacheStore
	ttl          time.Duration
	fetchTimeout time.Duration
	group        singleflight.Group
}

func NewCachedCatalog(next CatalogClientInterface, cache CacheStore, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{next: next, cache: cache, ttl: ttl, fetchTimeout: sharedFetchTimeout}
}

func catalogKey(ref string) string {
	return "catalog:product:" + ref
}

func (c *CachedCatalog) GetProduct(ctx context.Context, ref string) (*ProductInfo, error) {
	if p, ok := c.fromCache(ctx, ref); ok {
		return p, nil
	}

	// A caller that goes away stops waiting, but the fetch keeps going
	// for the others.
	ch := c.group.DoChan(ref, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		p, err := c.next.GetProduct(fetchCtx, ref)
		if err != nil || p == nil {
			return p, err
		}
		c.store(fetchCtx, ref, p)
		return p, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	p, _ := res.Val.(*ProductInfo)
	if p == nil {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (c *CachedCatalog) fromCache(ctx context.Context, ref string) (*ProductInfo, bool) {
	raw, err := c.cache.Get(ctx, catalogKey(ref)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("product_ref", ref).Msg("catalog cache read failed")
		}
		return nil, false
	}
	var p ProductInfo
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Warn().Err(err).Str("product_ref", ref).Msg("catalog cache entry unreadable")
		return nil, false
	}
	return &p, true
}

func (c *CachedCatalog) store(ctx context.Context, ref string, p *ProductInfo) {
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, catalogKey(ref), raw, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("product_ref", ref).Msg("catalog cache write failed")
	}
}
