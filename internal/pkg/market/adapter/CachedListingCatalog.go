package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	cacheport "bookmarket-chat/internal/infrastructure/cache/port"
	"bookmarket-chat/internal/pkg/market/port"
)

const listingCacheTTL = 5 * time.Minute

// CachedListingCatalog is a read-through cache in front of a ListingCatalog.
// Room resolution hydrates the same listing on every call; listings change
// rarely, so a short TTL is enough. Cache failures fall back to the inner
// catalog and are never surfaced.
type CachedListingCatalog struct {
	inner port.ListingCatalog
	cache cacheport.Cache
}

func NewCachedListingCatalog(inner port.ListingCatalog, cache cacheport.Cache) *CachedListingCatalog {
	return &CachedListingCatalog{inner: inner, cache: cache}
}

// Ensure interface compliance at compile time
var _ port.ListingCatalog = (*CachedListingCatalog)(nil)

func (r *CachedListingCatalog) FindListingByID(ctx context.Context, id int64) (*port.Listing, error) {
	key := "listing:" + strconv.FormatInt(id, 10)

	if raw, err := r.cache.Get(ctx, key); err == nil {
		var l port.Listing
		if json.Unmarshal([]byte(raw), &l) == nil {
			return &l, nil
		}
	} else if !errors.Is(err, cacheport.ErrMiss) {
		// transport error: skip the cache for this call
	}

	l, err := r.inner.FindListingByID(ctx, id)
	if err != nil || l == nil {
		return l, err
	}

	if raw, err := json.Marshal(l); err == nil {
		_ = r.cache.Set(ctx, key, string(raw), listingCacheTTL)
	}
	return l, nil
}
