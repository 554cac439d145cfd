package directory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"homefoods-delivery/internal/catalog"
	"homefoods-delivery/internal/delivery"
)

const snapshotKey = "snapshot"

// CachedStore serves reads from an in-memory Snapshot that expires after
// ttl. Writes through the store drop the cached copy.
type CachedStore struct {
	Store
	cache *cache.Cache

	// gen counts invalidations. A snapshot is only cached if no write
	// finished while it was loading.
	mu  sync.Mutex
	gen uint64
}

// NewCachedStore wraps s.
func NewCachedStore(s Store, ttl time.Duration) *CachedStore {
	// One key, so no janitor: Get already skips expired entries.
	return &CachedStore{Store: s, cache: cache.New(ttl, 0)}
}

// Invalidate drops the cached snapshot, including one still loading.
func (c *CachedStore) Invalidate() {
	c.mu.Lock()
	c.gen++
	c.cache.Delete(snapshotKey)
	c.mu.Unlock()
}

func (c *CachedStore) Snapshot(ctx context.Context) (Snapshot, error) {
	if v, ok := c.cache.Get(snapshotKey); ok {
		return v.(Snapshot), nil
	}
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	snap, err := Load(ctx, c.Store)
	if err != nil {
		return Snapshot{}, err
	}

	c.mu.Lock()
	if c.gen == gen {
		c.cache.SetDefault(snapshotKey, snap)
	}
	c.mu.Unlock()
	return snap, nil
}

func (c *CachedStore) Locations(ctx context.Context) ([]delivery.Location, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(snap.Locations), nil
}

func (c *CachedStore) FreeDelivery(ctx context.Context) (delivery.FreeDeliverySettings, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return delivery.FreeDeliverySettings{}, err
	}
	return snap.FreeDelivery, nil
}

func (c *CachedStore) Products(ctx context.Context) ([]catalog.Product, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return append([]catalog.Product(nil), snap.Products...), nil
}

func (c *CachedStore) UpsertLocation(ctx context.Context, loc delivery.Location) error {
	defer c.Invalidate()
	return c.Store.UpsertLocation(ctx, loc)
}

func (c *CachedStore) DeleteLocation(ctx context.Context, state, name string) error {
	defer c.Invalidate()
	return c.Store.DeleteLocation(ctx, state, name)
}

func (c *CachedStore) SetFreeDelivery(ctx context.Context, fd delivery.FreeDeliverySettings) error {
	defer c.Invalidate()
	return c.Store.SetFreeDelivery(ctx, fd)
}

func (c *CachedStore) SetAvailableCities(ctx context.Context, productID string, cities []string) error {
	defer c.Invalidate()
	return c.Store.SetAvailableCities(ctx, productID, cities)
}
